package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lockroot/lockroot-go/pkg/merkle"
	"github.com/lockroot/lockroot-go/pkg/persistence"
)

// MemoryStore is an in-memory implementation of ISnapshotStore.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	// Snapshot storage: id -> Snapshot
	snapshots map[string]*persistence.Snapshot

	// Latest snapshot tracking: lockfile path -> snapshot id
	latest map[string]string

	// Closed flag
	closed bool
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*persistence.Snapshot),
		latest:    make(map[string]string),
	}
}

// SaveSnapshot persists a snapshot and marks it latest for its lockfile path.
func (m *MemoryStore) SaveSnapshot(snapshot *persistence.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil Snapshot")
	}
	if snapshot.ID == "" {
		return fmt.Errorf("cannot save Snapshot with empty ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	// Deep copy to prevent external mutation
	m.snapshots[snapshot.ID] = deepCopySnapshot(snapshot)
	m.latest[snapshot.LockfilePath] = snapshot.ID

	return nil
}

// LoadSnapshot retrieves a snapshot by ID.
func (m *MemoryStore) LoadSnapshot(id string) (*persistence.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	snapshot, exists := m.snapshots[id]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return deepCopySnapshot(snapshot), nil
}

// LoadLatestSnapshot retrieves the latest snapshot for a lockfile path.
func (m *MemoryStore) LoadLatestSnapshot(lockfilePath string) (*persistence.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	id, exists := m.latest[lockfilePath]
	if !exists {
		return nil, nil
	}

	snapshot, exists := m.snapshots[id]
	if !exists {
		// Latest pointer refers to a deleted snapshot.
		return nil, nil
	}

	return deepCopySnapshot(snapshot), nil
}

// ListSnapshots returns all snapshots sorted by creation time.
func (m *MemoryStore) ListSnapshots() ([]*persistence.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	result := make([]*persistence.Snapshot, 0, len(m.snapshots))
	for _, snapshot := range m.snapshots {
		result = append(result, deepCopySnapshot(snapshot))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// DeleteSnapshot removes a snapshot by ID.
func (m *MemoryStore) DeleteSnapshot(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	delete(m.snapshots, id)
	return nil
}

// Close shuts down the store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	return nil
}

// deepCopySnapshot copies a snapshot so callers cannot mutate stored state.
func deepCopySnapshot(s *persistence.Snapshot) *persistence.Snapshot {
	if s == nil {
		return nil
	}

	deps := make([]*merkle.Dependency, len(s.Dependencies))
	for i, dep := range s.Dependencies {
		depCopy := *dep
		deps[i] = &depCopy
	}

	return &persistence.Snapshot{
		ID:             s.ID,
		LockfilePath:   s.LockfilePath,
		PackageManager: s.PackageManager,
		Root:           s.Root, // [32]byte is copied by value
		LockfileDigest: s.LockfileDigest,
		LeafCount:      s.LeafCount,
		Dependencies:   deps,
		CreatedAt:      s.CreatedAt,
	}
}
