package integration

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lockroot/lockroot-go/internal/tests"
	"github.com/lockroot/lockroot-go/pkg/merkle"
	"github.com/lockroot/lockroot-go/pkg/persistence"
	"github.com/lockroot/lockroot-go/pkg/persistence/badger"
	"github.com/lockroot/lockroot-go/pkg/persistence/memory"
	"github.com/lockroot/lockroot-go/pkg/snapshot"
)

// storeFactories builds each store backend under test.
var storeFactories = map[string]func(t *testing.T) persistence.ISnapshotStore{
	"memory": func(t *testing.T) persistence.ISnapshotStore {
		store := memory.NewMemoryStore()
		t.Cleanup(func() { _ = store.Close() })
		return store
	},
	"badger": func(t *testing.T) persistence.ISnapshotStore {
		store, err := badger.NewBadgerStore(t.TempDir(), zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	},
}

// TestCommitProveVerifyFlow runs the full pipeline against every backend:
// parse -> commit -> prove each dependency -> verify against the stored root.
func TestCommitProveVerifyFlow(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			svc := snapshot.NewService(newStore(t), zap.NewNop())

			path := tests.WriteLockfile(t, t.TempDir(), "package-lock.json", tests.SampleNpmLockfile)

			result, err := svc.Commit(path)
			require.NoError(t, err)
			require.Equal(t, "npm", result.Snapshot.PackageManager)
			require.Equal(t, 3, result.Snapshot.LeafCount)

			for _, dep := range result.Snapshot.Dependencies {
				proof, snap, ok, err := svc.Prove(path, dep)
				require.NoError(t, err)
				require.True(t, ok, "proof for %s", dep.Name)

				require.True(t, svc.Verify(dep, proof, snap.Root))

				// A proof for one dependency must not verify another.
				other := &merkle.Dependency{Name: dep.Name + "-evil", Version: dep.Version}
				require.False(t, svc.Verify(other, proof, snap.Root))
			}
		})
	}
}

// TestDriftDetectionFlow commits, mutates the lockfile and recommits.
func TestDriftDetectionFlow(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			svc := snapshot.NewService(newStore(t), zap.NewNop())
			dir := t.TempDir()

			path := tests.WriteLockfile(t, dir, "requirements.txt", tests.SamplePipRequirements)

			first, err := svc.Commit(path)
			require.NoError(t, err)
			require.Nil(t, first.Previous)

			// Identical recommit is reproducible
			second, err := svc.Commit(path)
			require.NoError(t, err)
			require.True(t, second.Reproducible)

			// Bump one pinned version
			tampered := strings.Replace(tests.SamplePipRequirements, "requests==2.31.0", "requests==2.32.0", 1)
			tests.WriteLockfile(t, dir, "requirements.txt", tampered)

			third, err := svc.Commit(path)
			require.NoError(t, err)
			require.False(t, third.Reproducible)
			require.NotEqual(t, second.Snapshot.Root, third.Snapshot.Root)
		})
	}
}

// TestProofPortability verifies a proof generated by one service instance
// against nothing but the dependency, proof and root.
func TestProofPortability(t *testing.T) {
	store := memory.NewMemoryStore()
	defer store.Close()
	svc := snapshot.NewService(store, zap.NewNop())

	path := tests.WriteLockfile(t, t.TempDir(), "package-lock.json", tests.SampleNpmLockfile)

	result, err := svc.Commit(path)
	require.NoError(t, err)

	dep := result.Snapshot.Dependencies[1]
	proof, snap, ok, err := svc.Prove(path, dep)
	require.NoError(t, err)
	require.True(t, ok)
	root := snap.Root

	// A fresh verifier with no store and no tree agrees.
	verifier := snapshot.NewService(nil, zap.NewNop())
	require.True(t, verifier.Verify(dep, proof, root))
}

// TestConcurrentProofGeneration exercises read-only sharing of one immutable
// tree across goroutines.
func TestConcurrentProofGeneration(t *testing.T) {
	deps := make([]*merkle.Dependency, 64)
	for i := range deps {
		deps[i] = &merkle.Dependency{
			Name:    strings.Repeat("x", i%7+1),
			Version: strings.Repeat("1.", i) + "0",
		}
	}

	tree, err := merkle.BuildFromDependencies(deps)
	require.NoError(t, err)
	root := tree.RootDigest()

	var wg sync.WaitGroup
	var failures atomic.Int32

	for _, dep := range deps {
		wg.Add(1)
		go func(dep *merkle.Dependency) {
			defer wg.Done()
			proof, ok := tree.GenerateProof(dep)
			if !ok || !merkle.VerifyProof(merkle.HashDependency(dep), proof, root) {
				failures.Add(1)
			}
		}(dep)
	}

	wg.Wait()
	require.Zero(t, failures.Load())
}
