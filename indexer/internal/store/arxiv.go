package store

import (
	"context"
	"fmt"
)

// InsertArxiv stores a normalized arXiv title and its space-separated
// categories.
func (s *Store) InsertArxiv(ctx context.Context, title, categories string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO arxiv (title, categories) VALUES (?, ?)`, title, categories)
	return err
}

// EachArxiv calls fn for every stored arXiv entry.
func (s *Store) EachArxiv(ctx context.Context, fn func(title, categories string) error) error {
	rows, err := s.DB.QueryContext(ctx, `SELECT title, categories FROM arxiv`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var title, categories string
		if err := rows.Scan(&title, &categories); err != nil {
			return fmt.Errorf("scan arxiv: %w", err)
		}
		if err := fn(title, categories); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ReplaceTags removes every tag and stores tags in their place.
func (s *Store) ReplaceTags(ctx context.Context, tags []Tag) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO tags (venue, tag) VALUES (?, ?)`, t.Venue, t.Tag); err != nil {
			return err
		}
	}
	return nil
}

// ListTags returns all tags ordered by tag then venue.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT venue, tag FROM tags ORDER BY tag, venue`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Venue, &t.Tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ClearArxiv removes every arXiv entry before a reload.
func (s *Store) ClearArxiv(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM arxiv`)
	return err
}
