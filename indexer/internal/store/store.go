// Package store provides the SQLite data access layer for the feed index.
//
// A Store runs over a DBTX, so the same methods work on the database and
// inside a transaction: ingest runs insert all records in one transaction
// and commit only when the whole stream was read.
package store

import (
	"context"
	"database/sql"
)

// DBTX is the subset of *sql.DB and *sql.Tx the store needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a database or transaction for index operations.
type Store struct {
	DB DBTX
}

// NewStore creates a Store from an opened database or a transaction.
func NewStore(db DBTX) *Store {
	return &Store{DB: db}
}
