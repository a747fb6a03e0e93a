package memory

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lockroot/lockroot-go/pkg/merkle"
	"github.com/lockroot/lockroot-go/pkg/persistence"
)

func testSnapshot(path string, createdAt int64) *persistence.Snapshot {
	return &persistence.Snapshot{
		ID:             uuid.New().String(),
		LockfilePath:   path,
		PackageManager: "npm",
		Root:           [32]byte{1, 2, 3},
		LockfileDigest: [32]byte{4, 5, 6},
		LeafCount:      1,
		Dependencies: []*merkle.Dependency{
			{Name: "a", Version: "1.0.0"},
		},
		CreatedAt: createdAt,
	}
}

func TestMemoryStoreSaveLoad(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	snapshot := testSnapshot("/app/package-lock.json", 100)
	require.NoError(t, store.SaveSnapshot(snapshot))

	loaded, err := store.LoadSnapshot(snapshot.ID)
	require.NoError(t, err)
	require.Equal(t, snapshot, loaded)

	t.Run("missing id returns nil", func(t *testing.T) {
		loaded, err := store.LoadSnapshot("no-such-id")
		require.NoError(t, err)
		require.Nil(t, loaded)
	})

	t.Run("nil snapshot rejected", func(t *testing.T) {
		require.Error(t, store.SaveSnapshot(nil))
	})

	t.Run("empty id rejected", func(t *testing.T) {
		require.Error(t, store.SaveSnapshot(&persistence.Snapshot{}))
	})
}

func TestMemoryStoreLatestTracking(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	first := testSnapshot("/app/package-lock.json", 100)
	second := testSnapshot("/app/package-lock.json", 200)
	other := testSnapshot("/other/requirements.txt", 150)

	require.NoError(t, store.SaveSnapshot(first))
	require.NoError(t, store.SaveSnapshot(other))

	latest, err := store.LoadLatestSnapshot("/app/package-lock.json")
	require.NoError(t, err)
	require.Equal(t, first.ID, latest.ID)

	require.NoError(t, store.SaveSnapshot(second))

	latest, err = store.LoadLatestSnapshot("/app/package-lock.json")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	// Other path unaffected
	latest, err = store.LoadLatestSnapshot("/other/requirements.txt")
	require.NoError(t, err)
	require.Equal(t, other.ID, latest.ID)

	t.Run("unknown path returns nil", func(t *testing.T) {
		latest, err := store.LoadLatestSnapshot("/nowhere")
		require.NoError(t, err)
		require.Nil(t, latest)
	})

	t.Run("deleted latest returns nil", func(t *testing.T) {
		require.NoError(t, store.DeleteSnapshot(second.ID))
		latest, err := store.LoadLatestSnapshot("/app/package-lock.json")
		require.NoError(t, err)
		require.Nil(t, latest)
	})
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	for i := 3; i >= 1; i-- {
		require.NoError(t, store.SaveSnapshot(testSnapshot(fmt.Sprintf("/p%d", i), int64(i*100))))
	}

	snapshots, err := store.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	// Sorted by creation time ascending
	for i := 1; i < len(snapshots); i++ {
		require.LessOrEqual(t, snapshots[i-1].CreatedAt, snapshots[i].CreatedAt)
	}
}

func TestMemoryStoreDeepCopies(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	snapshot := testSnapshot("/app/package-lock.json", 100)
	require.NoError(t, store.SaveSnapshot(snapshot))

	// Mutating the saved value must not affect the store
	snapshot.Dependencies[0].Name = "mutated"

	loaded, err := store.LoadSnapshot(snapshot.ID)
	require.NoError(t, err)
	require.Equal(t, "a", loaded.Dependencies[0].Name)

	// Mutating a loaded value must not affect the store either
	loaded.Dependencies[0].Version = "9.9.9"

	reloaded, err := store.LoadSnapshot(snapshot.ID)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", reloaded.Dependencies[0].Version)
}

func TestMemoryStoreClose(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.HealthCheck())
	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // idempotent

	require.Error(t, store.HealthCheck())
	require.Error(t, store.SaveSnapshot(testSnapshot("/p", 1)))

	_, err := store.LoadSnapshot("x")
	require.Error(t, err)

	_, err = store.ListSnapshots()
	require.Error(t, err)
}
