package store

import "context"

// Stats returns aggregate counters for the index.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"venue", &stats.Venues},
		{"record", &stats.Records},
		{"arxiv", &stats.Arxiv},
		{"tags", &stats.Tags},
		{"ingest_log", &stats.Runs},
	}
	for _, c := range counts {
		if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	return &stats, nil
}
