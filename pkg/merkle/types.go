package merkle

// Dependency is a single locked dependency as reported by a package manager.
// Integrity and Resolved are optional; an empty string means the lockfile did
// not carry the field. The canonical hash covers every present field, so two
// dependencies with the same name+version but different integrity or resolved
// values commit to different leaves.
type Dependency struct {
	// Name is the package name as it appears in the lockfile
	Name string `json:"name"`

	// Version is the locked version string
	Version string `json:"version"`

	// Integrity is the package-manager-supplied digest (e.g. "sha512-..."), if any
	Integrity string `json:"integrity,omitempty"`

	// Resolved is the source URL the package was fetched from, if any
	Resolved string `json:"resolved,omitempty"`
}

// ProofSide says which operand position the sibling digest takes when the
// verifier re-hashes a proof step.
type ProofSide string

const (
	// SideLeft means the sibling is the left operand: H(sibling || current)
	SideLeft ProofSide = "left"

	// SideRight means the sibling is the right operand: H(current || sibling)
	SideRight ProofSide = "right"
)

// ProofStep is one level of an inclusion proof: the digest of the sibling
// subtree and the side it sits on relative to the path being proven.
type ProofStep struct {
	Sibling [32]byte  `json:"sibling"`
	Side    ProofSide `json:"side"`
}

// InclusionProof proves that a leaf digest is part of a committed tree.
// Steps are ordered from the leaf's immediate sibling up to the digest
// combined directly under the root, so its length equals the leaf's depth.
// A proof carries no reference back to the tree it was generated from.
type InclusionProof struct {
	// LeafIndex is the position of the proven leaf in the original ordered sequence
	LeafIndex int `json:"leafIndex"`

	// Leaf is the canonical digest of the dependency being proven
	Leaf [32]byte `json:"leaf"`

	// Steps are the (sibling, side) pairs from leaf to root
	Steps []ProofStep `json:"steps"`
}

// MerkleNode is an internal tree node. A node with no children is a leaf and
// carries a leaf digest unchanged; a node with children carries
// SHA256(left.Digest || right.Digest). The tree exclusively owns its nodes.
type MerkleNode struct {
	Digest [32]byte
	Left   *MerkleNode
	Right  *MerkleNode
}

// MerkleTree commits an ordered sequence of leaf digests to a single root.
// It is immutable after construction: rebuilding replaces the whole
// structure, so a built tree is safe for unsynchronized concurrent reads.
type MerkleTree struct {
	root   *MerkleNode
	leaves [][32]byte
}

// RootDigest returns the 32-byte root committing to the whole leaf sequence.
func (mt *MerkleTree) RootDigest() [32]byte {
	return mt.root.Digest
}

// LeafCount returns the number of leaves the tree was built from.
func (mt *MerkleTree) LeafCount() int {
	return len(mt.leaves)
}

// Leaves returns a copy of the ordered leaf digests.
func (mt *MerkleTree) Leaves() [][32]byte {
	out := make([][32]byte, len(mt.leaves))
	copy(out, mt.leaves)
	return out
}
