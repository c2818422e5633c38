package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crushthecasino/amzn-price-bot/internal/storage"
)

type memStore struct {
	entries map[string]time.Time
	failErr error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]time.Time)}
}

func (m *memStore) TryCreateEntry(_ context.Context, key string, firstSeen time.Time) error {
	if m.failErr != nil {
		return m.failErr
	}
	if _, exists := m.entries[key]; exists {
		return storage.ErrKeyExists
	}
	m.entries[key] = firstSeen
	return nil
}

func (m *memStore) DeleteEntriesBefore(_ context.Context, cutoff time.Time) (int, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	deleted := 0
	for key, seen := range m.entries {
		if seen.Before(cutoff) {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func TestIsNewAndRecord_TrueThenFalse(t *testing.T) {
	l := New(newMemStore())
	ctx := context.Background()

	isNew, err := l.IsNewAndRecord(ctx, "deal-1")
	if err != nil {
		t.Fatalf("First call: %v", err)
	}
	if !isNew {
		t.Error("First call should report new")
	}

	isNew, err = l.IsNewAndRecord(ctx, "deal-1")
	if err != nil {
		t.Fatalf("Second call: %v", err)
	}
	if isNew {
		t.Error("Second call should report not new")
	}
}

func TestIsNewAndRecord_StorageFailureIsUnavailable(t *testing.T) {
	store := newMemStore()
	store.failErr = errors.New("connection refused")
	l := New(store)

	_, err := l.IsNewAndRecord(context.Background(), "deal-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
}

func TestEvictOlderThan(t *testing.T) {
	store := newMemStore()
	l := New(store)
	now := time.Now()
	l.now = func() time.Time { return now }

	store.entries["old"] = now.Add(-48 * time.Hour)
	store.entries["fresh"] = now.Add(-1 * time.Hour)

	deleted, err := l.EvictOlderThan(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("EvictOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 eviction, got %d", deleted)
	}
	if _, ok := store.entries["fresh"]; !ok {
		t.Error("Entry inside retention window was evicted")
	}

	// The evicted key is new again; the fresh one is still deduped.
	if isNew, _ := l.IsNewAndRecord(context.Background(), "fresh"); isNew {
		t.Error("Key inside retention should not be new")
	}
	if isNew, _ := l.IsNewAndRecord(context.Background(), "old"); !isNew {
		t.Error("Evicted key should be new again")
	}
}
