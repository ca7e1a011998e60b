package hydrate

import (
	"context"
	"errors"
	"sync"

	"github.com/pulse-dev/pulse/pkg/pulse"
)

// ErrNotFound is returned when no snapshot exists under the given key.
var ErrNotFound = errors.New("hydrate: snapshot not found")

// Store is the interface for snapshot storage backends.
// Implement this interface to use S3, GCS, or other storage.
type Store interface {
	// Save persists a snapshot under key, overwriting any previous one.
	Save(ctx context.Context, key string, snapshot pulse.Snapshot) error

	// Load retrieves the snapshot stored under key.
	// Returns ErrNotFound when the key has never been saved.
	Load(ctx context.Context, key string) (pulse.Snapshot, error)

	// Delete removes the snapshot stored under key.
	// Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemStore keeps snapshots in process memory. Snapshots are copied on
// both Save and Load so callers never share map state with the store.
type MemStore struct {
	mu        sync.RWMutex
	snapshots map[string]pulse.Snapshot
}

// NewMemStore creates an empty in-memory snapshot store.
func NewMemStore() *MemStore {
	return &MemStore{
		snapshots: make(map[string]pulse.Snapshot),
	}
}

// Save stores a copy of the snapshot under key.
func (m *MemStore) Save(_ context.Context, key string, snapshot pulse.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[key] = copySnapshot(snapshot)
	return nil
}

// Load returns a copy of the snapshot stored under key.
func (m *MemStore) Load(_ context.Context, key string) (pulse.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return copySnapshot(snap), nil
}

// Delete removes the snapshot stored under key.
func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, key)
	return nil
}

// Len returns the number of stored snapshots.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

func copySnapshot(in pulse.Snapshot) pulse.Snapshot {
	out := make(pulse.Snapshot, len(in))
	for name, entry := range in {
		out[name] = entry
	}
	return out
}
