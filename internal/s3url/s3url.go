// Package s3url finds object-store URLs in free text.
package s3url

import (
	"net/url"
	"regexp"
	"strings"
)

// Match is one recognised object URL inside a text. Start and End are byte
// offsets into the scanned text; text[Start:End] == URL.
type Match struct {
	URL    string
	Bucket string
	Key    string
	Region string // empty for global endpoints and custom hosts
	Signed bool
	Start  int
	End    int
}

var (
	// Candidate URLs stop at whitespace, quotes, brackets and commas.
	candidateRe = regexp.MustCompile("https?://[^\\s<>\"'(){}\\[\\],`]+")

	// bucket.s3.amazonaws.com, bucket.s3.eu-west-1.amazonaws.com,
	// bucket.s3-eu-west-1.amazonaws.com, bucket.s3.dualstack.eu-west-1.amazonaws.com
	virtualHostRe = regexp.MustCompile(`^([a-z0-9](?:[a-z0-9.-]*[a-z0-9])?)\.s3(?:\.dualstack)?(?:[.-]([a-z0-9-]+))?\.amazonaws\.com(?:\.cn)?$`)
	// s3.amazonaws.com/bucket/key and its regional forms
	pathHostRe = regexp.MustCompile(`^s3(?:\.dualstack)?(?:[.-]([a-z0-9-]+))?\.amazonaws\.com(?:\.cn)?$`)
)

const trailingPunct = ".,;:!?"

// Scanner recognises AWS endpoints plus a fixed set of custom path-style
// hosts (MinIO, LocalStack). A Scanner is immutable and safe for concurrent use.
type Scanner struct {
	customHosts map[string]bool
}

// NewScanner builds a scanner. customHosts may be bare host[:port] values or
// full endpoint URLs.
func NewScanner(customHosts []string) *Scanner {
	s := &Scanner{customHosts: make(map[string]bool, len(customHosts))}
	for _, h := range customHosts {
		h = strings.TrimSpace(strings.ToLower(h))
		if u, err := url.Parse(h); err == nil && u.Host != "" {
			h = u.Host
		}
		if h != "" {
			s.customHosts[h] = true
		}
	}
	return s
}

// Scan returns every recognised URL in text, in order of appearance.
// Unrecognised or malformed candidates are skipped.
func (s *Scanner) Scan(text string) []Match {
	var matches []Match
	for _, loc := range candidateRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		for end > start && strings.IndexByte(trailingPunct, text[end-1]) >= 0 {
			end--
		}
		m, ok := s.Parse(text[start:end])
		if !ok {
			continue
		}
		m.Start, m.End = start, end
		matches = append(matches, m)
	}
	return matches
}

// Parse recognises a single URL. ok is false for anything that does not
// address an object on a known endpoint.
func (s *Scanner) Parse(raw string) (m Match, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Match{}, false
	}
	host := strings.ToLower(u.Host)
	path := strings.TrimPrefix(u.Path, "/")

	switch {
	case s.customHosts[host]:
		m.Bucket, m.Key, ok = splitPathStyle(path)
	case u.Scheme != "https":
		return Match{}, false
	default:
		if sub := pathHostRe.FindStringSubmatch(host); sub != nil {
			m.Region = region(sub[1])
			m.Bucket, m.Key, ok = splitPathStyle(path)
		} else if sub := virtualHostRe.FindStringSubmatch(host); sub != nil {
			m.Bucket, m.Key, m.Region = sub[1], path, region(sub[2])
			ok = m.Key != ""
		}
	}
	if !ok {
		return Match{}, false
	}

	q := u.Query()
	m.Signed = q.Has("X-Amz-Signature") || q.Has("Signature")
	m.URL = raw
	return m, true
}

func splitPathStyle(path string) (bucket, key string, ok bool) {
	bucket, key, found := strings.Cut(path, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// region maps the legacy "s3-external-1" endpoint onto us-east-1.
func region(r string) string {
	if r == "external-1" {
		return "us-east-1"
	}
	return r
}

// Dedupe returns the distinct URLs of matches in first-seen order.
func Dedupe(matches []Match) []Match {
	seen := make(map[string]bool, len(matches))
	var out []Match
	for _, m := range matches {
		if seen[m.URL] {
			continue
		}
		seen[m.URL] = true
		out = append(out, m)
	}
	return out
}
