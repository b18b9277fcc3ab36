package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertVenue adds a venue. A venue whose key already exists is left
// untouched and inserted is false.
func (s *Store) InsertVenue(ctx context.Context, v *Venue) (inserted bool, err error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO venue (key, kind, acronym, name) VALUES (?, ?, ?, ?)`,
		v.Key, v.Kind, v.Acronym, v.Name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetVenue retrieves a venue by key. It returns nil, nil when absent.
func (s *Store) GetVenue(ctx context.Context, key string) (*Venue, error) {
	var v Venue
	err := s.DB.QueryRowContext(ctx,
		`SELECT key, kind, acronym, name FROM venue WHERE key = ?`, key).
		Scan(&v.Key, &v.Kind, &v.Acronym, &v.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVenues returns all venues ordered by kind then name. An empty kind
// lists every kind.
func (s *Store) ListVenues(ctx context.Context, kind string) ([]*Venue, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT key, kind, acronym, name FROM venue
		WHERE ? = '' OR kind = ?
		ORDER BY kind, name`, kind, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []*Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.Key, &v.Kind, &v.Acronym, &v.Name); err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		venues = append(venues, &v)
	}
	return venues, rows.Err()
}

// VenueNames returns key → display name for every venue.
func (s *Store) VenueNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key, name FROM venue`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var key, name string
		if err := rows.Scan(&key, &name); err != nil {
			return nil, fmt.Errorf("scan venue name: %w", err)
		}
		names[key] = name
	}
	return names, rows.Err()
}

// TOC lists venues having at least one record dated on or after since
// (YYYY-MM-DD), with the number of such records, ordered by kind then name.
func (s *Store) TOC(ctx context.Context, since string) ([]*TOCEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT v.key, v.kind, v.acronym, v.name, COUNT(*)
		FROM venue AS v JOIN record AS r ON r.venue = v.key
		WHERE r.date >= ?
		GROUP BY v.key
		ORDER BY v.kind, v.name`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var toc []*TOCEntry
	for rows.Next() {
		var e TOCEntry
		if err := rows.Scan(&e.Key, &e.Kind, &e.Acronym, &e.Name, &e.Count); err != nil {
			return nil, fmt.Errorf("scan toc: %w", err)
		}
		toc = append(toc, &e)
	}
	return toc, rows.Err()
}
