// Package pipeline turns a bibliography XML stream into filtered records.
//
// Stages are composed by direct synchronous forwarding:
//
//	event.Stream → Extractor → Complete → Since → Classify → sink
//
// The sink is either Persist (row inserts) or a Collection (venue grouping).
// Everything runs on the caller's goroutine; a record is sunk before the
// next token is read.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/event"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
)

// ErrMalformedDate is returned when a record's mdate is not YYYY-MM-DD.
// It aborts the run like a syntax error does.
var ErrMalformedDate = errors.New("pipeline: malformed mdate")

// Options configures a Run.
type Options struct {
	// Cutoff is the earliest modification date kept. Zero keeps everything.
	Cutoff time.Time
	// Kinds are the venue kinds kept. Default: conf, journals.
	Kinds record.KindSet
	// SinkName labels the sink in metrics and logs. Default: "sink".
	SinkName string
	Logger   *slog.Logger
	Metrics  *Metrics
}

func (o *Options) defaults() {
	if len(o.Kinds) == 0 {
		o.Kinds = record.NewKindSet(record.DefaultKinds...)
	}
	if o.SinkName == "" {
		o.SinkName = "sink"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats counts what happened to records during one run.
type Stats struct {
	Extracted     int `json:"extracted"`
	Incomplete    int `json:"incomplete"`
	TooOld        int `json:"too_old"`
	VenueMismatch int `json:"venue_mismatch"`
	Sunk          int `json:"sunk"`
}

// Run is one pipeline instance. It is not safe for concurrent use and
// should process a single document.
type Run struct {
	opts      Options
	extractor *Extractor
	stats     Stats
}

// New wires the extractor and filter chain in front of sink.
func New(opts Options, sink record.Handler) *Run {
	opts.defaults()
	r := &Run{opts: opts}

	var chain record.Handler = record.HandlerFunc(func(ctx context.Context, rec *record.Record) error {
		if err := sink.Handle(ctx, rec); err != nil {
			return err
		}
		r.stats.Sunk++
		if m := r.opts.Metrics; m != nil {
			m.Sunk.WithLabelValues(r.opts.SinkName).Inc()
		}
		return nil
	})
	chain = Classify(opts.Kinds, chain, r.dropped)
	chain = Since(opts.Cutoff, chain, r.dropped)
	chain = Complete(chain, r.dropped)
	chain = r.extracted(chain)

	r.extractor = NewExtractor(chain)
	return r
}

// HandleEvent feeds one event to the extractor. It implements event.Handler.
func (r *Run) HandleEvent(ctx context.Context, ev event.Event) error {
	return r.extractor.HandleEvent(ctx, ev)
}

// Stream parses src and pushes every event through the pipeline.
func (r *Run) Stream(ctx context.Context, src io.Reader, opts ...event.Option) error {
	start := time.Now()
	err := event.Stream(ctx, src, r.extractor, opts...)
	r.opts.Logger.Debug("pipeline: stream done",
		"sink", r.opts.SinkName,
		"extracted", r.stats.Extracted,
		"sunk", r.stats.Sunk,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err)
	return err
}

// Stats returns the counts accumulated so far.
func (r *Run) Stats() Stats { return r.stats }

// State exposes the extractor state (testing, diagnostics).
func (r *Run) State() State { return r.extractor.State() }

func (r *Run) extracted(next record.Handler) record.Handler {
	return record.HandlerFunc(func(ctx context.Context, rec *record.Record) error {
		r.stats.Extracted++
		if m := r.opts.Metrics; m != nil {
			m.Extracted.Inc()
		}
		return next.Handle(ctx, rec)
	})
}

func (r *Run) dropped(ctx context.Context, rec *record.Record, reason DropReason) {
	switch reason {
	case DropIncomplete:
		r.stats.Incomplete++
	case DropTooOld:
		r.stats.TooOld++
	case DropVenueMismatch:
		r.stats.VenueMismatch++
	}
	if m := r.opts.Metrics; m != nil {
		m.Dropped.WithLabelValues(string(reason)).Inc()
	}
	r.opts.Logger.DebugContext(ctx, "pipeline: record dropped", "key", rec.Key, "reason", reason)
}
