package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
)

// DropReason names the filter that discarded a record.
type DropReason string

const (
	DropIncomplete    DropReason = "incomplete"
	DropTooOld        DropReason = "too_old"
	DropVenueMismatch DropReason = "venue_mismatch"
)

// DropFunc observes discarded records. Dropping is not an error; the hook
// only exists for counting and logging. It may be nil.
type DropFunc func(ctx context.Context, rec *record.Record, reason DropReason)

// IsComplete reports whether rec has authors, an http(s) electronic
// edition, a title and a catalog URL.
func IsComplete(rec *record.Record) bool {
	return len(rec.Authors) > 0 &&
		strings.HasPrefix(rec.EE, "http") &&
		rec.Title != "" &&
		rec.URL != ""
}

// Complete forwards complete records to next and drops the rest.
func Complete(next record.Handler, drop DropFunc) record.Handler {
	return record.HandlerFunc(func(ctx context.Context, rec *record.Record) error {
		if !IsComplete(rec) {
			notify(ctx, drop, rec, DropIncomplete)
			return nil
		}
		return next.Handle(ctx, rec)
	})
}

// Since forwards records modified on or after the calendar day of cutoff.
// An unparseable mdate aborts the run with ErrMalformedDate.
func Since(cutoff time.Time, next record.Handler, drop DropFunc) record.Handler {
	day := startOfDay(cutoff)
	return record.HandlerFunc(func(ctx context.Context, rec *record.Record) error {
		d, err := rec.Date()
		if err != nil {
			return fmt.Errorf("%w: record %q: mdate %q", ErrMalformedDate, rec.Key, rec.MDate)
		}
		if d.Before(day) {
			notify(ctx, drop, rec, DropTooOld)
			return nil
		}
		return next.Handle(ctx, rec)
	})
}

// startOfDay returns midnight UTC of t's calendar date, the same instant
// record.Date produces for that date.
func startOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var venuePattern = regexp.MustCompile(`^db/([^/]*)/([^/]*)/`)

// VenueOf extracts kind and acronym from a catalog path of the form
// db/<kind>/<acronym>/<anything>.
func VenueOf(url string) (kind, acronym string, ok bool) {
	m := venuePattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Classify sets rec.Venue to "<kind>/<acronym>" and forwards records whose
// URL matches and whose kind is in kinds. Everything else is dropped.
func Classify(kinds record.KindSet, next record.Handler, drop DropFunc) record.Handler {
	return record.HandlerFunc(func(ctx context.Context, rec *record.Record) error {
		kind, acronym, ok := VenueOf(rec.URL)
		if !ok || !kinds.Has(kind) {
			notify(ctx, drop, rec, DropVenueMismatch)
			return nil
		}
		rec.Venue = kind + "/" + acronym
		return next.Handle(ctx, rec)
	})
}

func notify(ctx context.Context, drop DropFunc, rec *record.Record, reason DropReason) {
	if drop != nil {
		drop(ctx, rec, reason)
	}
}
