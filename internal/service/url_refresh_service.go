package service

import (
	"context"
	"errors"
	"time"

	"polysynergy/file-manager/internal/s3url"
	"polysynergy/file-manager/internal/storage"

	"github.com/rs/zerolog"
)

// RefreshState is the final state of one detected URL.
type RefreshState string

const (
	StateRefreshed RefreshState = "refreshed"
	StateUnchanged RefreshState = "unchanged" // object missing or not accessible
	StateSkipped   RefreshState = "skipped"   // credentials, network or signing failure
)

// URLOutcome records what happened to one distinct URL.
type URLOutcome struct {
	URL    string       `json:"url"`
	Bucket string       `json:"bucket"`
	Key    string       `json:"key"`
	State  RefreshState `json:"state"`
	Reason string       `json:"reason,omitempty"`
}

// RefreshReport summarises one RefreshText call.
type RefreshReport struct {
	Outcomes           []URLOutcome `json:"outcomes"`
	CredentialsMissing bool         `json:"credentialsMissing"`
}

// Count returns how many distinct URLs ended in state.
func (r RefreshReport) Count(state RefreshState) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// RefreshRecorder receives one call per URL outcome.
type RefreshRecorder interface {
	RecordRefresh(state string)
}

type nopRefreshRecorder struct{}

func (nopRefreshRecorder) RecordRefresh(string) {}

// URLRefresher re-signs object URLs embedded in stored text. It keeps no
// cache: every call probes every URL again.
type URLRefresher struct {
	store    storage.ObjectStore
	scanner  *s3url.Scanner
	ttl      time.Duration
	recorder RefreshRecorder
	log      zerolog.Logger
}

// NewURLRefresher creates a refresher issuing URLs valid for ttl, bounded to
// [1s, 7d]; zero selects one hour.
func NewURLRefresher(store storage.ObjectStore, scanner *s3url.Scanner, ttl time.Duration, recorder RefreshRecorder, log zerolog.Logger) *URLRefresher {
	ttl = storage.ClampExpiry(ttl)
	if ttl < time.Second {
		ttl = time.Second
	}
	if recorder == nil {
		recorder = nopRefreshRecorder{}
	}
	return &URLRefresher{
		store:    store,
		scanner:  scanner,
		ttl:      ttl,
		recorder: recorder,
		log:      log.With().Str("component", "url_refresher").Logger(),
	}
}

// TTL is the lifetime of issued URLs.
func (r *URLRefresher) TTL() time.Duration { return r.ttl }

// RefreshText returns text with every reachable object URL replaced by a
// freshly presigned one. All other bytes are passed through unchanged. When
// credentials are unavailable the input is returned as is.
func (r *URLRefresher) RefreshText(ctx context.Context, text string) (string, RefreshReport) {
	return r.refresh(ctx, text, nil)
}

// RefreshTextIn is RefreshText limited to buckets. URLs into any other
// bucket are reported unchanged without being probed.
func (r *URLRefresher) RefreshTextIn(ctx context.Context, text string, buckets []string) (string, RefreshReport) {
	allowed := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		allowed[b] = true
	}
	return r.refresh(ctx, text, func(bucket string) bool { return allowed[bucket] })
}

func (r *URLRefresher) refresh(ctx context.Context, text string, allow func(bucket string) bool) (string, RefreshReport) {
	var report RefreshReport
	matches := r.scanner.Scan(text)
	if len(matches) == 0 {
		return text, report
	}

	var distinct, foreign []s3url.Match
	for _, m := range s3url.Dedupe(matches) {
		if allow != nil && !allow(m.Bucket) {
			foreign = append(foreign, m)
			continue
		}
		distinct = append(distinct, m)
	}
	for _, m := range foreign {
		report.Outcomes = append(report.Outcomes, URLOutcome{
			URL: m.URL, Bucket: m.Bucket, Key: m.Key, State: StateUnchanged, Reason: "bucket outside caller scope",
		})
		r.recorder.RecordRefresh(string(StateUnchanged))
	}
	if len(distinct) == 0 {
		return text, report
	}

	if err := r.store.CheckCredentials(ctx); err != nil {
		r.log.Warn().Err(err).Int("urls", len(distinct)).Msg("no object store credentials, leaving urls untouched")
		return text, r.skipAll(report, distinct, "credentials unavailable")
	}

	scoped := len(report.Outcomes)
	replacements := make(map[string]string, len(distinct))
	for _, m := range distinct {
		outcome := URLOutcome{URL: m.URL, Bucket: m.Bucket, Key: m.Key}
		fresh, state, err := r.refreshOne(ctx, m)
		if errors.Is(err, storage.ErrCredentialsUnavailable) {
			r.log.Warn().Err(err).Msg("object store credentials rejected, leaving urls untouched")
			report.Outcomes = report.Outcomes[:scoped]
			return text, r.skipAll(report, distinct, "credentials unavailable")
		}
		outcome.State = state
		if err != nil {
			outcome.Reason = err.Error()
		}
		if state == StateRefreshed {
			replacements[m.URL] = fresh
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	for _, o := range report.Outcomes[scoped:] {
		r.recorder.RecordRefresh(string(o.State))
	}
	if len(replacements) == 0 {
		return text, report
	}

	// Rewrite back to front so earlier offsets stay valid.
	out := text
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if fresh, ok := replacements[m.URL]; ok {
			out = out[:m.Start] + fresh + out[m.End:]
		}
	}
	r.log.Debug().Int("refreshed", len(replacements)).Int("detected", len(distinct)).Msg("urls refreshed")
	return out, report
}

func (r *URLRefresher) refreshOne(ctx context.Context, m s3url.Match) (string, RefreshState, error) {
	if err := ctx.Err(); err != nil {
		return "", StateSkipped, err
	}
	ref := storage.Ref{Bucket: m.Bucket, Key: m.Key, Region: m.Region}
	if _, err := r.store.Head(ctx, ref); err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectNotFound),
			errors.Is(err, storage.ErrBucketNotFound),
			errors.Is(err, storage.ErrAccessDenied):
			r.log.Debug().Str("bucket", m.Bucket).Str("key", m.Key).Msg("object not accessible, url kept")
			return "", StateUnchanged, err
		case errors.Is(err, storage.ErrCredentialsUnavailable):
			return "", StateSkipped, err
		default:
			r.log.Warn().Err(err).Str("bucket", m.Bucket).Str("key", m.Key).Msg("url probe failed")
			return "", StateSkipped, err
		}
	}
	fresh, err := r.store.Presign(ctx, ref, r.ttl)
	if err != nil {
		r.log.Warn().Err(err).Str("bucket", m.Bucket).Str("key", m.Key).Msg("presign failed")
		return "", StateSkipped, err
	}
	return fresh, StateRefreshed, nil
}

func (r *URLRefresher) skipAll(report RefreshReport, matches []s3url.Match, reason string) RefreshReport {
	report.CredentialsMissing = true
	for _, m := range matches {
		report.Outcomes = append(report.Outcomes, URLOutcome{
			URL: m.URL, Bucket: m.Bucket, Key: m.Key, State: StateSkipped, Reason: reason,
		})
		r.recorder.RecordRefresh(string(StateSkipped))
	}
	return report
}
