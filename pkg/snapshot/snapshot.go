// Package snapshot turns lockfiles into stored Merkle commitments and checks
// later builds against them. The merkle package stays pure; all I/O
// (lockfile reads, store access, logging) lives here.
package snapshot

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/lockroot/lockroot-go/pkg/lockfile"
	"github.com/lockroot/lockroot-go/pkg/merkle"
	"github.com/lockroot/lockroot-go/pkg/persistence"
)

// Service commits lockfiles to snapshots and generates/verifies inclusion
// proofs against them.
type Service struct {
	store  persistence.ISnapshotStore
	logger *zap.Logger
}

// NewService creates a snapshot service on top of a store.
func NewService(store persistence.ISnapshotStore, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// CommitResult reports the outcome of committing a lockfile.
type CommitResult struct {
	// Snapshot is the newly stored snapshot
	Snapshot *persistence.Snapshot

	// Previous is the snapshot that was latest for this path before the
	// commit, nil on first commit
	Previous *persistence.Snapshot

	// Reproducible is true when a previous snapshot existed and its root
	// matches the new one
	Reproducible bool
}

// Commit parses a lockfile, builds its dependency commitment and stores it
// as the latest snapshot for the path. Dependencies are sorted into
// canonical order before hashing so the commitment does not depend on
// lockfile iteration order.
func (s *Service) Commit(path string) (*CommitResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read lockfile %s", path)
	}

	deps, parser, err := lockfile.ParseFile(path)
	if err != nil {
		return nil, err
	}

	sorted := lockfile.SortDependencies(deps)

	tree, err := merkle.BuildFromDependencies(sorted)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build commitment for %s", path)
	}

	previous, err := s.store.LoadLatestSnapshot(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load previous snapshot")
	}

	snapshot := &persistence.Snapshot{
		ID:             uuid.New().String(),
		LockfilePath:   path,
		PackageManager: parser.PackageManager(),
		Root:           tree.RootDigest(),
		LockfileDigest: blake2b.Sum256(raw),
		LeafCount:      tree.LeafCount(),
		Dependencies:   sorted,
		CreatedAt:      time.Now().Unix(),
	}

	if err := s.store.SaveSnapshot(snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to save snapshot")
	}

	result := &CommitResult{
		Snapshot:     snapshot,
		Previous:     previous,
		Reproducible: previous != nil && previous.Root == snapshot.Root,
	}

	switch {
	case previous == nil:
		s.logger.Sugar().Infow("Committed first snapshot",
			"path", path,
			"packageManager", snapshot.PackageManager,
			"dependencies", snapshot.LeafCount,
			"root", snapshot.RootHex())
	case result.Reproducible:
		s.logger.Sugar().Infow("Dependency set is reproducible",
			"path", path,
			"dependencies", snapshot.LeafCount,
			"root", snapshot.RootHex())
	default:
		s.logger.Sugar().Warnw("Dependency set changed since last snapshot",
			"path", path,
			"previousRoot", previous.RootHex(),
			"root", snapshot.RootHex(),
			"previousDependencies", previous.LeafCount,
			"dependencies", snapshot.LeafCount)
	}

	return result, nil
}

// Root computes a lockfile's commitment without touching the store.
func (s *Service) Root(path string) ([32]byte, int, error) {
	deps, _, err := lockfile.ParseFile(path)
	if err != nil {
		return [32]byte{}, 0, err
	}

	tree, err := merkle.BuildFromDependencies(lockfile.SortDependencies(deps))
	if err != nil {
		return [32]byte{}, 0, errors.Wrapf(err, "failed to build commitment for %s", path)
	}

	return tree.RootDigest(), tree.LeafCount(), nil
}

// Prove generates an inclusion proof for a dependency against the latest
// snapshot of a lockfile path. The tree is rebuilt from the snapshot's
// stored dependency sequence; determinism of the builder guarantees the
// same root. The boolean is false when the dependency is not part of the
// snapshot (a negative result, not an error).
func (s *Service) Prove(path string, dep *merkle.Dependency) (*merkle.InclusionProof, *persistence.Snapshot, bool, error) {
	snapshot, err := s.store.LoadLatestSnapshot(path)
	if err != nil {
		return nil, nil, false, errors.Wrap(err, "failed to load latest snapshot")
	}
	if snapshot == nil {
		return nil, nil, false, errors.Errorf("no snapshot exists for %s", path)
	}

	tree, err := merkle.BuildFromDependencies(snapshot.Dependencies)
	if err != nil {
		return nil, nil, false, errors.Wrap(err, "failed to rebuild tree from snapshot")
	}

	if tree.RootDigest() != snapshot.Root {
		// Stored dependencies no longer reproduce the stored root; the
		// snapshot record itself has been corrupted or tampered with.
		return nil, nil, false, errors.Errorf("snapshot %s is inconsistent: rebuilt root does not match stored root", snapshot.ID)
	}

	proof, ok := tree.GenerateProof(dep)
	if !ok {
		return nil, snapshot, false, nil
	}

	return proof, snapshot, true, nil
}

// Verify checks an inclusion proof for a dependency against a claimed root.
// Pure delegation to the merkle core; false is a normal outcome.
func (s *Service) Verify(dep *merkle.Dependency, proof *merkle.InclusionProof, root [32]byte) bool {
	return merkle.VerifyProof(merkle.HashDependency(dep), proof, root)
}
