package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
)

// RecordInserter stores one classified record. store.Store implements it.
type RecordInserter interface {
	InsertRecord(ctx context.Context, rec *record.Record) error
}

// Persist returns a sink inserting every record through ins.
func Persist(ins RecordInserter) record.Handler {
	return record.HandlerFunc(func(ctx context.Context, rec *record.Record) error {
		if err := ins.InsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("pipeline: persist %q: %w", rec.Key, err)
		}
		return nil
	})
}

// Collection groups records by venue in arrival order. It is owned by the
// caller and lives for one run; there is no eviction.
type Collection struct {
	groups map[string][]record.Record
	total  int
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{groups: make(map[string][]record.Record)}
}

// Handle appends rec to its venue group. It implements record.Handler.
func (c *Collection) Handle(_ context.Context, rec *record.Record) error {
	c.groups[rec.Venue] = append(c.groups[rec.Venue], *rec)
	c.total++
	return nil
}

// Venues returns the collected venue keys in lexical order.
func (c *Collection) Venues() []string {
	keys := make([]string, 0, len(c.groups))
	for k := range c.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records returns the records of one venue in arrival order.
func (c *Collection) Records(venue string) []record.Record {
	return c.groups[venue]
}

// Groups exposes the venue → records mapping. Callers must not modify it.
func (c *Collection) Groups() map[string][]record.Record {
	return c.groups
}

// Len returns the number of collected records.
func (c *Collection) Len() int { return c.total }
