// Package indexer builds and serves the DBLP feed index.
//
// It wires the streaming record pipeline to the SQLite store and the
// published artifacts:
//
//	dblp_bht.xml → LoadVenues ─┐
//	dblp.xml.gz  → Ingest ─────┼→ store → BuildFiles → feeds/, index.{html,json,md}
//	OAI chunks   → LoadArxiv ──┘        → ComputeTags → WriteOPML
//
// Collect runs the same pipeline into memory and WriteCollected renders
// the result without touching the record table.
//
// Usage:
//
//	ix, err := indexer.New(cfg, logger)
//	defer ix.Close()
//	ix.LoadVenues(ctx, bht)
//	ix.Ingest(ctx, "dblp.xml.gz", f)
//	ix.BuildFiles(ctx, "feeds", "index.html", "index.json", "")
package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/dblpfeeds/dbopen"
	"github.com/hazyhaar/dblpfeeds/idgen"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/harvest"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/pipeline"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/render"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/store"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/tags"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/venue"
	"github.com/hazyhaar/dblpfeeds/watch"
)

// Sink names accepted by Run.
const (
	SinkPersist = "persist"
	SinkCollect = "collect"
)

// Indexer owns the database and every operation on the index.
type Indexer struct {
	db       *sql.DB
	store    *store.Store
	renderer *render.Renderer
	registry *prometheus.Registry
	metrics  *pipeline.Metrics
	logger   *slog.Logger
	config   *Config
	kinds    record.KindSet
	ids      idgen.Generator
	now      func() time.Time
}

// New opens the database at cfg.DBPath, applies the schema and prepares
// the renderer and metrics.
func New(cfg *Config, logger *slog.Logger) (*Indexer, error) {
	cfg.defaults()
	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithCacheSize(-64000),
		dbopen.WithSchema(store.Schema))
	if err != nil {
		return nil, err
	}
	return newIndexer(cfg, db, logger), nil
}

func newIndexer(cfg *Config, db *sql.DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	return &Indexer{
		db:       db,
		store:    store.NewStore(db),
		renderer: render.New(cfg.Feeds.Config),
		registry: reg,
		metrics:  pipeline.NewMetrics(reg),
		logger:   logger,
		config:   cfg,
		kinds:    record.NewKindSet(cfg.Kinds...),
		ids:      idgen.Run,
		now:      time.Now,
	}
}

// Close closes the database.
func (ix *Indexer) Close() error {
	return ix.db.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (ix *Indexer) Store() *store.Store {
	return ix.store
}

// Config returns the effective configuration.
func (ix *Indexer) Config() *Config {
	return ix.config
}

// Registry exposes the Prometheus registry holding pipeline counters.
func (ix *Indexer) Registry() *prometheus.Registry {
	return ix.registry
}

func (ix *Indexer) cutoff() (time.Time, error) {
	return ix.config.Cutoff(ix.now())
}

func (ix *Indexer) since() (string, error) {
	c, err := ix.cutoff()
	if err != nil {
		return "", err
	}
	return c.Format(record.DateLayout), nil
}

// LoadVenues reads the DBLP venue index and stores its conf and journals
// entries. It returns the number of venues added.
func (ix *Indexer) LoadVenues(ctx context.Context, r io.Reader) (int, error) {
	added := 0
	err := dbopen.InTx(ctx, ix.db, func(tx *sql.Tx) error {
		s := store.NewStore(tx)
		return venue.Parse(ctx, r, ix.kinds, func(v store.Venue) error {
			inserted, err := s.InsertVenue(ctx, &v)
			if err != nil {
				return fmt.Errorf("indexer: insert venue %s: %w", v.Key, err)
			}
			if inserted {
				added++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	ix.logger.Info("indexer: venues loaded", "added", added)
	return added, nil
}

// Run streams r through the pipeline into the named sink. For
// SinkPersist the records are inserted in one transaction, committed only
// if the whole stream was processed; for SinkCollect the returned
// Collection holds them. Every run is recorded in the ingest log.
func (ix *Indexer) Run(ctx context.Context, source, sink string, r io.Reader) (*IngestLog, *pipeline.Collection, error) {
	if sink != SinkPersist && sink != SinkCollect {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownSink, sink)
	}
	cutoff, err := ix.cutoff()
	if err != nil {
		return nil, nil, err
	}

	entry := &store.IngestLog{ID: ix.ids(), Source: source, Sink: sink}
	if err := ix.store.InsertIngestLog(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("indexer: ingest log: %w", err)
	}
	log := ix.logger.With("run", entry.ID, "source", source, "sink", sink)
	log.Info("indexer: run started", "cutoff", cutoff.Format(record.DateLayout))

	opts := pipeline.Options{
		Cutoff:   cutoff,
		Kinds:    ix.kinds,
		SinkName: sink,
		Logger:   log,
		Metrics:  ix.metrics,
	}

	var (
		run        *pipeline.Run
		collection *pipeline.Collection
	)
	start := time.Now()
	switch sink {
	case SinkPersist:
		err = dbopen.InTx(ctx, ix.db, func(tx *sql.Tx) error {
			run = pipeline.New(opts, pipeline.Persist(store.NewStore(tx)))
			return run.Stream(ctx, r)
		})
	case SinkCollect:
		collection = pipeline.NewCollection()
		run = pipeline.New(opts, collection)
		err = run.Stream(ctx, r)
	}

	var stats pipeline.Stats
	if run != nil {
		stats = run.Stats()
	}
	entry.Extracted = stats.Extracted
	entry.Incomplete = stats.Incomplete
	entry.TooOld = stats.TooOld
	entry.VenueMismatch = stats.VenueMismatch
	entry.Sunk = stats.Sunk
	entry.Status = "ok"
	if err != nil {
		entry.Status = "failed"
		entry.ErrorMessage = err.Error()
	}
	// The run outcome is recorded even when ctx was cancelled.
	if ferr := ix.store.FinishIngestLog(context.WithoutCancel(ctx), entry); ferr != nil {
		log.Warn("indexer: finish ingest log", "error", ferr)
	}

	if err != nil {
		log.Error("indexer: run failed", "error", err, "extracted", stats.Extracted)
		return entry, nil, fmt.Errorf("indexer: run %s: %w", entry.ID, err)
	}
	log.Info("indexer: run done",
		"extracted", stats.Extracted,
		"incomplete", stats.Incomplete,
		"too_old", stats.TooOld,
		"venue_mismatch", stats.VenueMismatch,
		"sunk", stats.Sunk,
		"duration_ms", time.Since(start).Milliseconds())
	return entry, collection, nil
}

// Ingest persists the records of r into the record table.
func (ix *Indexer) Ingest(ctx context.Context, source string, r io.Reader) (*IngestLog, error) {
	entry, _, err := ix.Run(ctx, source, SinkPersist, r)
	return entry, err
}

// Collect groups the records of r by venue in memory.
func (ix *Indexer) Collect(ctx context.Context, source string, r io.Reader) (*pipeline.Collection, *IngestLog, error) {
	entry, c, err := ix.Run(ctx, source, SinkCollect, r)
	return c, entry, err
}

// WriteCollected renders one feed per collected venue into dir, in the
// order records arrived. Venue names come from the venue table when
// known. It returns the number of feeds written.
func (ix *Indexer) WriteCollected(ctx context.Context, c *pipeline.Collection, dir string) (int, error) {
	names, err := ix.store.VenueNames(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, key := range c.Venues() {
		kind, acronym, _ := strings.Cut(key, "/")
		v := store.Venue{Key: key, Kind: kind, Acronym: acronym, Name: names[key]}
		if _, err := ix.renderer.WriteFeed(dir, v, render.Rows(c.Records(key))); err != nil {
			return n, err
		}
		n++
	}
	ix.logger.Info("indexer: collected feeds written", "dir", dir, "feeds", n)
	return n, nil
}

// BuildFiles writes one feed per venue with recent records into dir, and
// the TOC to htmlPath, jsonPath and mdPath (empty paths are skipped).
// It returns the number of feeds written.
func (ix *Indexer) BuildFiles(ctx context.Context, dir, htmlPath, jsonPath, mdPath string) (int, error) {
	since, err := ix.since()
	if err != nil {
		return 0, err
	}
	toc, err := ix.store.TOC(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("indexer: toc: %w", err)
	}

	for _, e := range toc {
		rows, err := ix.store.RecordsByVenue(ctx, e.Key, since, 0)
		if err != nil {
			return 0, fmt.Errorf("indexer: records of %s: %w", e.Key, err)
		}
		v := store.Venue{Key: e.Key, Kind: e.Kind, Acronym: e.Acronym, Name: e.Name}
		if _, err := ix.renderer.WriteFeed(dir, v, rows); err != nil {
			return 0, err
		}
	}

	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{htmlPath, func(w io.Writer) error { return ix.renderer.IndexHTML(w, toc) }},
		{jsonPath, func(w io.Writer) error { return render.IndexJSON(w, toc) }},
		{mdPath, func(w io.Writer) error { return ix.renderer.IndexMarkdown(w, toc) }},
	}
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		if err := writeFile(o.path, o.write); err != nil {
			return 0, err
		}
	}
	ix.logger.Info("indexer: files built", "dir", dir, "feeds", len(toc), "since", since)
	return len(toc), nil
}

// BuildConfigured runs BuildFiles with the feed dir and index paths of
// the configuration.
func (ix *Indexer) BuildConfigured(ctx context.Context) (int, error) {
	f := ix.config.Feeds
	return ix.BuildFiles(ctx, f.Dir, f.IndexHTML, f.IndexJSON, f.IndexMarkdown)
}

// WatchRebuild polls the ingest log every interval and calls
// BuildConfigured once finished runs have settled for debounce. It
// returns nil when ctx is done.
func (ix *Indexer) WatchRebuild(ctx context.Context, interval, debounce time.Duration) error {
	w := watch.New(ix.db, watch.Options{
		Interval: interval,
		Debounce: debounce,
		Detector: watch.MaxColumn("ingest_log", "finished_at"),
		Logger:   ix.logger,
	})
	return w.Run(ctx, func(ctx context.Context) error {
		_, err := ix.BuildConfigured(ctx)
		return err
	})
}

// TOC lists venues with records on or after the cutoff.
func (ix *Indexer) TOC(ctx context.Context) ([]*TOCEntry, error) {
	since, err := ix.since()
	if err != nil {
		return nil, err
	}
	return ix.store.TOC(ctx, since)
}

// Feed renders the feed of one venue to w.
func (ix *Indexer) Feed(ctx context.Context, w io.Writer, key string) error {
	v, err := ix.store.GetVenue(ctx, key)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: %s", ErrVenueNotFound, key)
	}
	since, err := ix.since()
	if err != nil {
		return err
	}
	rows, err := ix.store.RecordsByVenue(ctx, key, since, 0)
	if err != nil {
		return err
	}
	return ix.renderer.Feed(w, *v, rows)
}

// LoadArxiv replaces the arXiv table with the entries of every chunk
// below dir and returns how many entries were stored.
func (ix *Indexer) LoadArxiv(ctx context.Context, dir string) (int, error) {
	var entries, files int
	err := dbopen.RunTx(ctx, ix.db, func(tx *sql.Tx) error {
		entries = 0
		s := store.NewStore(tx)
		if err := s.ClearArxiv(ctx); err != nil {
			return err
		}
		var err error
		files, err = tags.ReadDir(ctx, dir, func(e tags.Entry) error {
			entries++
			return s.InsertArxiv(ctx, e.Title, e.Categories)
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("indexer: load arxiv: %w", err)
	}
	ix.logger.Info("indexer: arxiv loaded", "dir", dir, "chunks", files, "entries", entries)
	return entries, nil
}

// ComputeTags matches records against arXiv titles and replaces the tags
// table with the result.
func (ix *Indexer) ComputeTags(ctx context.Context) ([]Tag, error) {
	idx := tags.NewIndex()
	if err := ix.store.EachArxiv(ctx, func(title, categories string) error {
		idx.AddArxiv(title, categories)
		return nil
	}); err != nil {
		return nil, err
	}
	matched := 0
	if err := ix.store.EachRecordTitle(ctx, func(title, venue string) error {
		if idx.AddRecord(title, venue) {
			matched++
		}
		return nil
	}); err != nil {
		return nil, err
	}

	result := idx.Tags()
	if err := dbopen.RunTx(ctx, ix.db, func(tx *sql.Tx) error {
		return store.NewStore(tx).ReplaceTags(ctx, result)
	}); err != nil {
		return nil, fmt.Errorf("indexer: store tags: %w", err)
	}
	ix.logger.Info("indexer: tags computed", "matched", matched, "tags", len(result))
	return result, nil
}

// WriteOPML writes one <code>.opml outline per cs.* tag into dir and
// returns the number of files written. Tagged venues missing from the
// venue table are left out.
func (ix *Indexer) WriteOPML(ctx context.Context, dir string) (int, error) {
	all, err := ix.store.ListTags(ctx)
	if err != nil {
		return 0, err
	}
	var order []string
	byTag := make(map[string][]string)
	for _, t := range all {
		if _, ok := byTag[t.Tag]; !ok {
			order = append(order, t.Tag)
		}
		byTag[t.Tag] = append(byTag[t.Tag], t.Venue)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("indexer: mkdir: %w", err)
	}
	for _, tag := range order {
		code, err := render.OPMLName(tag)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		var venues []store.Venue
		for _, key := range byTag[tag] {
			v, err := ix.store.GetVenue(ctx, key)
			if err != nil {
				return 0, err
			}
			if v != nil {
				venues = append(venues, *v)
			}
		}
		path := filepath.Join(dir, code+".opml")
		if err := writeFile(path, func(w io.Writer) error { return ix.renderer.OPML(w, tag, venues) }); err != nil {
			return 0, err
		}
	}
	ix.logger.Info("indexer: opml written", "dir", dir, "files", len(order))
	return len(order), nil
}

// Harvest downloads OAI-PMH chunks as configured in cfg.Harvest.
func (ix *Indexer) Harvest(ctx context.Context, start HarvestStart, opts ...harvest.Option) (int, error) {
	opts = append([]harvest.Option{harvest.WithLogger(ix.logger)}, opts...)
	return harvest.New(ix.config.Harvest, opts...).Harvest(ctx, start)
}

// Venues lists known venues, optionally of one kind.
func (ix *Indexer) Venues(ctx context.Context, kind string) ([]*Venue, error) {
	return ix.store.ListVenues(ctx, kind)
}

// VenueRecords returns the most recent records of a venue.
func (ix *Indexer) VenueRecords(ctx context.Context, key string, limit int) ([]*Row, error) {
	v, err := ix.store.GetVenue(ctx, key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrVenueNotFound, key)
	}
	return ix.store.RecordsByVenue(ctx, key, "", limit)
}

// IngestLog lists recent pipeline runs.
func (ix *Indexer) IngestLog(ctx context.Context, limit int) ([]*IngestLog, error) {
	return ix.store.ListIngestLog(ctx, limit)
}

// Stats returns index counters.
func (ix *Indexer) Stats(ctx context.Context) (*Stats, error) {
	return ix.store.Stats(ctx)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("indexer: mkdir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("indexer: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("indexer: write %s: %w", path, err)
	}
	return f.Close()
}
