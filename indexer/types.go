package indexer

import (
	"github.com/hazyhaar/dblpfeeds/indexer/internal/event"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/harvest"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/pipeline"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/store"
)

// Re-exported types from internal packages for use by cmd/ and external callers.
type (
	Record       = record.Record
	Venue        = store.Venue
	Row          = store.Row
	TOCEntry     = store.TOCEntry
	Tag          = store.Tag
	IngestLog    = store.IngestLog
	Stats        = store.Stats
	RunStats     = pipeline.Stats
	Collection   = pipeline.Collection
	HarvestStart = harvest.Start
	ChunkError   = harvest.ChunkError
	OAIError     = harvest.OAIError
)

// Errors surfaced by ingestion and harvesting.
var (
	ErrMalformedXML  = event.ErrMalformedXML
	ErrMalformedDate = pipeline.ErrMalformedDate
	ErrExhausted     = harvest.ErrExhausted
)
