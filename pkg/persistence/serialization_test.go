package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockroot/lockroot-go/pkg/merkle"
)

func TestSnapshotSerializationRoundTrip(t *testing.T) {
	snapshot := &Snapshot{
		ID:             "b1946ac9-4932-4c21-9d07-2f1b6f3e8d11",
		LockfilePath:   "/app/package-lock.json",
		PackageManager: "npm",
		Root:           [32]byte{0xaa, 0xbb, 0xcc},
		LockfileDigest: [32]byte{0x11, 0x22},
		LeafCount:      2,
		Dependencies: []*merkle.Dependency{
			{Name: "a", Version: "1.0.0", Integrity: "sha512-a"},
			{Name: "b", Version: "2.0.0", Resolved: "https://registry.npmjs.org/b.tgz"},
		},
		CreatedAt: 1724700000,
	}

	data, err := MarshalSnapshot(snapshot)
	require.NoError(t, err)

	decoded, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, snapshot, decoded)
}

func TestSnapshotSerializationErrors(t *testing.T) {
	t.Run("nil snapshot", func(t *testing.T) {
		_, err := MarshalSnapshot(nil)
		require.Error(t, err)
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := UnmarshalSnapshot(nil)
		require.Error(t, err)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := UnmarshalSnapshot([]byte("{broken"))
		require.Error(t, err)
	})
}

func TestSnapshotHexRendering(t *testing.T) {
	snapshot := &Snapshot{
		Root:           [32]byte{0xde, 0xad},
		LockfileDigest: [32]byte{0xbe, 0xef},
	}

	require.Equal(t, "dead", snapshot.RootHex()[:4])
	require.Equal(t, "beef", snapshot.LockfileDigestHex()[:4])
	require.Len(t, snapshot.RootHex(), 64)
}
