package domain

// Outcome of a single item in a batch operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// BatchItem is the per-item result of a batch operation.
type BatchItem struct {
	Item      string        `json:"item"`
	Outcome   Outcome       `json:"outcome"`
	ErrorKind string        `json:"errorKind,omitempty"`
	Message   string        `json:"message,omitempty"`
	Entry     *VirtualEntry `json:"entry,omitempty"`
}

// BatchResult preserves the order of the submitted items.
type BatchResult struct {
	Items []BatchItem `json:"items"`
}

// Succeed records a successful item.
func (r *BatchResult) Succeed(item string, entry *VirtualEntry) {
	r.Items = append(r.Items, BatchItem{Item: item, Outcome: OutcomeSuccess, Entry: entry})
}

// Fail records a failed item; the error is reduced to its code and message.
func (r *BatchResult) Fail(item string, err error) {
	r.Items = append(r.Items, BatchItem{
		Item:      item,
		Outcome:   OutcomeError,
		ErrorKind: ErrorCode(err),
		Message:   err.Error(),
	})
}

// Succeeded counts successful items.
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// Failed counts failed items.
func (r *BatchResult) Failed() int {
	return len(r.Items) - r.Succeeded()
}
