package persistence

import (
	"github.com/lockroot/lockroot-go/pkg/merkle"
	"github.com/lockroot/lockroot-go/pkg/util"
)

// Snapshot is a stored commitment of a lockfile's dependency set.
// It carries everything needed to rebuild the tree (the ordered dependency
// records) alongside the root it committed to, so inclusion proofs can be
// generated later without re-reading the lockfile.
type Snapshot struct {
	// ID is a UUID assigned when the snapshot is created
	ID string `json:"id"`

	// LockfilePath is the path the lockfile was read from
	LockfilePath string `json:"lockfilePath"`

	// PackageManager is the lockfile format ("npm", "pip")
	PackageManager string `json:"packageManager"`

	// Root is the Merkle root committing to the ordered dependency set
	Root [32]byte `json:"root"`

	// LockfileDigest is the BLAKE2b-256 digest of the raw lockfile bytes.
	// It detects any textual change, including ones that do not affect the
	// parsed dependency set (formatting, comments).
	LockfileDigest [32]byte `json:"lockfileDigest"`

	// LeafCount is the number of dependencies committed
	LeafCount int `json:"leafCount"`

	// Dependencies is the ordered dependency sequence the tree was built over
	Dependencies []*merkle.Dependency `json:"dependencies"`

	// CreatedAt is the Unix timestamp when the snapshot was taken
	CreatedAt int64 `json:"createdAt"`
}

// RootHex returns the root digest as a lowercase hex string.
func (s *Snapshot) RootHex() string {
	return util.EncodeDigest(s.Root)
}

// LockfileDigestHex returns the lockfile content digest as a lowercase hex string.
func (s *Snapshot) LockfileDigestHex() string {
	return util.EncodeDigest(s.LockfileDigest)
}
