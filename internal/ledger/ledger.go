// Package ledger decides whether a deal key has been seen before, backed by
// a durable key-value store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crushthecasino/amzn-price-bot/internal/storage"
)

// ErrUnavailable signals that the durable store could not be reached. The
// orchestrator aborts the cycle on this error rather than risking duplicate
// notifications: at-most-once wins over availability.
var ErrUnavailable = errors.New("dedup ledger unavailable")

// Store is the durable key-value surface the ledger needs. storage.Client
// implements it; tests supply an in-memory map.
type Store interface {
	TryCreateEntry(ctx context.Context, key string, firstSeen time.Time) error
	DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// IsNewAndRecord atomically checks and records the key. Exactly one caller
// observes true for a given key within the retention window, even when two
// cycles race. A storage failure wraps ErrUnavailable.
func (l *Ledger) IsNewAndRecord(ctx context.Context, key string) (bool, error) {
	err := l.store.TryCreateEntry(ctx, key, l.now())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrKeyExists) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// EvictOlderThan purges entries past the retention window. In-flight dedup
// decisions are unaffected; a purge never re-opens a key inside the window.
func (l *Ledger) EvictOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := l.now().Add(-retention)
	deleted, err := l.store.DeleteEntriesBefore(ctx, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return deleted, nil
}
