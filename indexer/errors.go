package indexer

import "errors"

var (
	// ErrUnknownSink is returned for a sink name other than persist or collect.
	ErrUnknownSink = errors.New("indexer: unknown sink")
	// ErrVenueNotFound is returned when a venue key is not in the index.
	ErrVenueNotFound = errors.New("indexer: venue not found")
	// ErrInvalidInput marks a malformed argument (key, date, tag).
	ErrInvalidInput = errors.New("indexer: invalid input")
)
