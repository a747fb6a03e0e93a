package persistence

// ISnapshotStore defines the interface for persisting lockfile commitments.
// All implementations must be thread-safe: snapshots may be written by a
// watcher while the CLI reads them.
//
// The interface supports:
// - Snapshot management (save, load, list, delete)
// - Latest-snapshot tracking per lockfile path (for drift detection)
// - Lifecycle management (close, health check)
type ISnapshotStore interface {
	// SaveSnapshot persists a snapshot and marks it as the latest for its
	// lockfile path. Returns error only on storage failure; saving the same
	// snapshot twice is idempotent.
	SaveSnapshot(snapshot *Snapshot) error

	// LoadSnapshot retrieves a snapshot by ID.
	// Returns nil if the snapshot doesn't exist, error only on storage failure.
	LoadSnapshot(id string) (*Snapshot, error)

	// LoadLatestSnapshot retrieves the most recently saved snapshot for a
	// lockfile path. Returns nil if none exists, error only on storage failure.
	LoadLatestSnapshot(lockfilePath string) (*Snapshot, error)

	// ListSnapshots returns all snapshots sorted by creation time (ascending).
	// Returns empty slice if none exist, error only on storage failure.
	ListSnapshots() ([]*Snapshot, error)

	// DeleteSnapshot removes a snapshot by ID.
	// Idempotent - returns nil if the snapshot doesn't exist.
	DeleteSnapshot(id string) error

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
