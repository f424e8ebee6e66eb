// Package ledger remembers which identities were already notified.
//
// The ledger is the only memory shared between invocations. It is loaded
// once per pass, grows in memory as records are processed and is persisted
// after every single append, so a crash mid-pass loses at most the entry
// being written.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"orderbot/internal/storage"
	logx "orderbot/pkg/logx"
)

// ErrPersist wraps failures to write an appended identity to the store.
var ErrPersist = errors.New("ledger persist failed")

// Ledger is an in-memory identity set backed by a storage.Store.
// It is not safe for concurrent use; a pass is single-threaded.
type Ledger struct {
	store storage.Store
	log   logx.Logger

	ids  []string
	seen map[string]struct{}
}

func New(store storage.Store, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{store: store, log: log, seen: map[string]struct{}{}}
}

// Load replaces the in-memory state with the persisted identities and
// returns how many were loaded. Missing state is an empty ledger; unreadable
// or corrupt state is logged and also treated as empty, so the worst case
// is a redundant notification rather than a failed pass.
func (l *Ledger) Load(ctx context.Context) int {
	l.ids = nil
	l.seen = map[string]struct{}{}

	ids, err := l.store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			l.log.Error("ledger state is corrupt; starting empty", logx.Err(err))
		} else {
			l.log.Error("ledger state unreadable; starting empty", logx.Err(err))
		}
		return 0
	}
	for _, id := range ids {
		l.ids = append(l.ids, id)
		l.seen[id] = struct{}{}
	}
	return len(l.ids)
}

// Contains reports whether id was already delivered.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Append records id in memory and persists it. The in-memory entry stays
// even when persisting fails, so the same pass never re-sends it; the error
// (wrapping ErrPersist) tells the caller the entry may be lost on restart.
func (l *Ledger) Append(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, ok := l.seen[id]; ok {
		return nil
	}
	l.ids = append(l.ids, id)
	l.seen[id] = struct{}{}
	if err := l.store.Append(ctx, id); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, id, err)
	}
	return nil
}

// Len returns the number of entries, duplicates from the store included.
func (l *Ledger) Len() int { return len(l.ids) }

// IDs returns a copy of the entries in order.
func (l *Ledger) IDs() []string { return append([]string(nil), l.ids...) }
