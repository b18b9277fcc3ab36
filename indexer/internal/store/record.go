package store

import (
	"context"
	"fmt"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
)

// InsertRecord stores one classified record as
// (title, authors joined by ", ", mdate, ee, venue).
func (s *Store) InsertRecord(ctx context.Context, rec *record.Record) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO record (title, authors, date, link, venue) VALUES (?, ?, ?, ?, ?)`,
		rec.Title, rec.AuthorList(), rec.MDate, rec.EE, rec.Venue)
	return err
}

// RecordsByVenue returns the records of a venue dated on or after since,
// newest first. limit <= 0 returns all of them.
func (s *Store) RecordsByVenue(ctx context.Context, venue, since string, limit int) ([]*Row, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT title, authors, date, link, venue FROM record
		WHERE venue = ? AND date >= ?
		ORDER BY date DESC LIMIT ?`, venue, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Title, &r.Authors, &r.Date, &r.Link, &r.Venue); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// EachRecordTitle calls fn with the title and venue of every record.
func (s *Store) EachRecordTitle(ctx context.Context, fn func(title, venue string) error) error {
	rows, err := s.DB.QueryContext(ctx, `SELECT title, venue FROM record`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var title, venue string
		if err := rows.Scan(&title, &venue); err != nil {
			return fmt.Errorf("scan record title: %w", err)
		}
		if err := fn(title, venue); err != nil {
			return err
		}
	}
	return rows.Err()
}
