// Package record defines the publication record passed between pipeline
// stages and the push-style Handler contract every stage implements.
package record

import (
	"context"
	"sort"
	"strings"
	"time"
)

// DateLayout is the layout of the mdate attribute (day precision).
const DateLayout = "2006-01-02"

// Record is one publication extracted from a bibliography document.
// Venue stays empty until the venue classifier has matched the URL.
type Record struct {
	Key     string   `json:"key"`
	MDate   string   `json:"mdate"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	EE      string   `json:"ee"`
	URL     string   `json:"url"`
	Venue   string   `json:"venue,omitempty"`
}

// Date parses MDate as a calendar date in UTC.
func (r *Record) Date() (time.Time, error) {
	return time.Parse(DateLayout, r.MDate)
}

// AuthorList joins authors the way they are stored and rendered.
func (r *Record) AuthorList() string {
	return strings.Join(r.Authors, ", ")
}

// Handler receives records pushed by an upstream stage.
type Handler interface {
	Handle(ctx context.Context, rec *Record) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec *Record) error

// Handle calls f(ctx, rec).
func (f HandlerFunc) Handle(ctx context.Context, rec *Record) error { return f(ctx, rec) }

// KindSet is the set of venue kinds (e.g. "conf", "journals") to keep.
type KindSet map[string]struct{}

// DefaultKinds are the kinds DBLP feeds are generated for.
var DefaultKinds = []string{"conf", "journals"}

// NewKindSet builds a KindSet from kind names. Blank names are skipped.
func NewKindSet(kinds ...string) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether kind is in the set.
func (s KindSet) Has(kind string) bool {
	_, ok := s[kind]
	return ok
}

// Sorted returns the kinds in lexical order.
func (s KindSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
