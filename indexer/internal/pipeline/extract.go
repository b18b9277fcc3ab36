package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/event"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
)

// State is the extractor's position in the document.
type State uint8

const (
	// Seeking waits for a record element.
	Seeking State = iota
	// InRecord is inside a record element, between fields.
	InRecord
	// InField accumulates the text of one field element.
	InField
)

func (s State) String() string {
	switch s {
	case Seeking:
		return "seeking"
	case InRecord:
		return "in_record"
	case InField:
		return "in_field"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// recordElements are the element names that open a record.
var recordElements = map[string]bool{
	"article":       true,
	"inproceedings": true,
}

// fieldSetters commit accumulated text into a record, keyed by field
// element name. author is the only multi-valued field: it appends, the
// others overwrite.
var fieldSetters = map[string]func(*record.Record, string){
	"author": func(r *record.Record, v string) { r.Authors = append(r.Authors, v) },
	"ee":     func(r *record.Record, v string) { r.EE = v },
	"title":  func(r *record.Record, v string) { r.Title = v },
	"url":    func(r *record.Record, v string) { r.URL = v },
}

// Extractor is a two-level state machine turning parse events into
// records. It holds at most one record and one field accumulator, so
// memory stays constant regardless of document size.
//
// The source format is assumed flat: a field element is never nested in
// another field element. Elements that are neither record nor field
// elements (e.g. <i> inside a title) are ignored; their text still flows
// into the active field.
type Extractor struct {
	next    record.Handler
	state   State
	rec     *record.Record
	field   string
	text    strings.Builder
	emitted int
}

// NewExtractor creates an Extractor pushing completed records to next.
func NewExtractor(next record.Handler) *Extractor {
	return &Extractor{next: next}
}

// State returns the current state.
func (x *Extractor) State() State { return x.state }

// Emitted returns the number of records pushed downstream so far.
func (x *Extractor) Emitted() int { return x.emitted }

// HandleEvent advances the state machine by one event.
func (x *Extractor) HandleEvent(ctx context.Context, ev event.Event) error {
	switch x.state {
	case Seeking:
		if ev.Kind == event.Start && recordElements[ev.Name] {
			x.rec = &record.Record{Key: ev.Attrs["key"], MDate: ev.Attrs["mdate"]}
			x.state = InRecord
		}

	case InRecord:
		switch {
		case ev.Kind == event.Start && fieldSetters[ev.Name] != nil:
			x.field = ev.Name
			x.text.Reset()
			x.state = InField
		case ev.Kind == event.End && recordElements[ev.Name]:
			rec := x.rec
			x.rec = nil
			x.state = Seeking
			x.emitted++
			return x.next.Handle(ctx, rec)
		}

	case InField:
		switch {
		case ev.Kind == event.Text:
			x.text.WriteString(ev.Text)
		case ev.Kind == event.End && ev.Name == x.field:
			fieldSetters[x.field](x.rec, strings.TrimSpace(x.text.String()))
			x.field = ""
			x.text.Reset()
			x.state = InRecord
		}
	}
	return nil
}
