package source

import (
	"errors"
	"time"
)

// ErrUnavailable wraps every failure to obtain a batch: transport errors,
// non-2xx statuses and undecodable bodies.
var ErrUnavailable = errors.New("source unavailable")

// Record is one raw database row decoded as a generic JSON tree
// (map[string]any / []any / string / float64 / bool).
type Record struct {
	// ID is the row's page id when the source provides one.
	ID   string
	Data any
}

// Config configures the Notion database query client.
type Config struct {
	BaseURL    string
	Token      string
	DatabaseID string
	Version    string
	Timeout    time.Duration
}
