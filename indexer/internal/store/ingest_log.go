package store

import (
	"context"
	"fmt"
	"time"
)

// InsertIngestLog records the start of a pipeline run.
func (s *Store) InsertIngestLog(ctx context.Context, e *IngestLog) error {
	if e.StartedAt == 0 {
		e.StartedAt = time.Now().UnixMilli()
	}
	if e.Status == "" {
		e.Status = "running"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO ingest_log (id, source, sink, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.Sink, e.Status, e.StartedAt)
	return err
}

// FinishIngestLog stores the outcome and counters of a run.
func (s *Store) FinishIngestLog(ctx context.Context, e *IngestLog) error {
	now := time.Now().UnixMilli()
	e.FinishedAt = &now
	_, err := s.DB.ExecContext(ctx,
		`UPDATE ingest_log SET status=?, extracted=?, incomplete=?, too_old=?,
		venue_mismatch=?, sunk=?, error_message=?, finished_at=?
		WHERE id=?`,
		e.Status, e.Extracted, e.Incomplete, e.TooOld,
		e.VenueMismatch, e.Sunk, e.ErrorMessage, now, e.ID)
	return err
}

// ListIngestLog returns the most recent runs first.
func (s *Store) ListIngestLog(ctx context.Context, limit int) ([]*IngestLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, source, sink, status, extracted, incomplete, too_old,
		venue_mismatch, sunk, error_message, started_at, finished_at
		FROM ingest_log ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*IngestLog
	for rows.Next() {
		var e IngestLog
		if err := rows.Scan(&e.ID, &e.Source, &e.Sink, &e.Status, &e.Extracted,
			&e.Incomplete, &e.TooOld, &e.VenueMismatch, &e.Sunk, &e.ErrorMessage,
			&e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan ingest log: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
