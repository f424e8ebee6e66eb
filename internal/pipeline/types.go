package pipeline

import (
	"context"
	"time"

	"orderbot/internal/extract"
	"orderbot/internal/source"
	kit "orderbot/internal/transport"
)

// Source yields the current batch of records.
type Source interface {
	Fetch(ctx context.Context) ([]source.Record, error)
}

type Extractor interface {
	Extract(rec source.Record) extract.Normalized
}

// Ledger is the delivered-identity set consulted and updated by a pass.
type Ledger interface {
	Load(ctx context.Context) int
	Contains(id string) bool
	Append(ctx context.Context, id string) error
	Len() int
}

type Notifier interface {
	Notify(ctx context.Context, to kit.ChatTarget, n extract.Normalized) error
}

// Recorder observes finished passes (metrics).
type Recorder interface {
	ObservePass(r Report)
}

// State is the stage a pass is in.
type State int

const (
	StateFetching State = iota
	StateExtracting
	StateFiltering
	StateNotifying
	StatePersisting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateFiltering:
		return "filtering"
	case StateNotifying:
		return "notifying"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Result classifies a finished pass.
type Result string

const (
	ResultOK     Result = "ok"
	ResultNoop   Result = "noop"
	ResultFailed Result = "failed"
)

// Report summarizes one pass.
type Report struct {
	Result   Result
	Started  time.Time
	Duration time.Duration

	Fetched        int
	NoIdentity     int
	Known          int
	Delivered      int
	DeliveryFailed int
	Marked         int
	Unmarked       int
	PersistFailed  int
	LedgerSize     int

	// Err is the pass-fatal error, if any.
	Err error
}

// MarkPolicy decides whether a notified identity is recorded as processed.
type MarkPolicy int

const (
	// MarkAlways records the identity after every attempt, failed or not.
	// A failed delivery is therefore never retried.
	MarkAlways MarkPolicy = iota
	// MarkOnDelivery records the identity only after a confirmed send, so
	// failed deliveries are retried on the next pass.
	MarkOnDelivery
)

// PolicyFor maps the ledger.mark_on_failure setting onto a MarkPolicy.
func PolicyFor(markOnFailure bool) MarkPolicy {
	if markOnFailure {
		return MarkAlways
	}
	return MarkOnDelivery
}

func (p MarkPolicy) String() string {
	if p == MarkOnDelivery {
		return "on-delivery"
	}
	return "always"
}

// shouldMark is the single place deciding what counts as processed.
func (p MarkPolicy) shouldMark(deliveryErr error) bool {
	if p == MarkOnDelivery {
		return deliveryErr == nil
	}
	return true
}
