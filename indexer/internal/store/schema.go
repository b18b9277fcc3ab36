package store

import (
	"context"
	"database/sql"
)

// Schema is the complete index schema. The venue and record tables keep
// the column layout downstream consumers read: record(title, authors,
// date, link, venue).
const Schema = `
-- Venues known from the DBLP venue index
CREATE TABLE IF NOT EXISTS venue (
    key     TEXT PRIMARY KEY,
    kind    TEXT NOT NULL,
    acronym TEXT NOT NULL,
    name    TEXT NOT NULL
);

-- Publication records that passed the pipeline filters
CREATE TABLE IF NOT EXISTS record (
    title   TEXT NOT NULL,
    authors TEXT NOT NULL,
    date    TEXT NOT NULL,
    link    TEXT NOT NULL,
    venue   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS byvenue ON record (venue);

-- arXiv titles and their cs.* categories, used to tag venues
CREATE TABLE IF NOT EXISTS arxiv (
    title      TEXT NOT NULL,
    categories TEXT NOT NULL
);

-- Computed arXiv category tags per venue
CREATE TABLE IF NOT EXISTS tags (
    venue TEXT NOT NULL,
    tag   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags (tag);

-- One row per pipeline run (observability)
CREATE TABLE IF NOT EXISTS ingest_log (
    id             TEXT PRIMARY KEY,
    source         TEXT NOT NULL,
    sink           TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'running',
    extracted      INTEGER NOT NULL DEFAULT 0,
    incomplete     INTEGER NOT NULL DEFAULT 0,
    too_old        INTEGER NOT NULL DEFAULT 0,
    venue_mismatch INTEGER NOT NULL DEFAULT 0,
    sunk           INTEGER NOT NULL DEFAULT 0,
    error_message  TEXT NOT NULL DEFAULT '',
    started_at     INTEGER NOT NULL,
    finished_at    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_ingest_log_time ON ingest_log (started_at DESC);
`

// ApplySchema creates all tables and indexes (idempotent).
func ApplySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
