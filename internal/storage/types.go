package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCorrupt means persisted state exists but could not be decoded.
	ErrCorrupt = errors.New("storage corrupt")
	ErrClosed  = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON array file (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the ledger.
//
// Load returns the identities in the order they were appended; a store
// without prior state returns an empty list and no error.
// Append durably adds one identity after the existing ones.
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Append(ctx context.Context, id string) error
	Close() error
}
