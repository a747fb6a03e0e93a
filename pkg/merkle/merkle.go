package merkle

import (
	"crypto/sha256"
	"errors"
)

// ErrEmptyInput is returned when a tree is requested over zero leaves.
// An empty dependency set has no meaningful commitment; callers must not be
// handed a default root they could mistake for a valid empty one.
var ErrEmptyInput = errors.New("cannot build merkle tree from empty leaf list")

// HashDependency computes the canonical 32-byte leaf digest of a dependency.
//
// The byte encoding is name || ":" || version, followed by ":" || integrity
// and ":" || resolved when those fields are present. This encoding must be
// reproduced exactly by any interoperating implementation. It is pure and
// always succeeds.
func HashDependency(dep *Dependency) [32]byte {
	buf := make([]byte, 0, len(dep.Name)+len(dep.Version)+len(dep.Integrity)+len(dep.Resolved)+3)
	buf = append(buf, dep.Name...)
	buf = append(buf, ':')
	buf = append(buf, dep.Version...)

	if dep.Integrity != "" {
		buf = append(buf, ':')
		buf = append(buf, dep.Integrity...)
	}

	if dep.Resolved != "" {
		buf = append(buf, ':')
		buf = append(buf, dep.Resolved...)
	}

	return sha256.Sum256(buf)
}

// HashDependencies maps an ordered dependency slice to its leaf digests.
func HashDependencies(deps []*Dependency) [][32]byte {
	leaves := make([][32]byte, len(deps))
	for i, dep := range deps {
		leaves[i] = HashDependency(dep)
	}
	return leaves
}

// BuildMerkleTree constructs a tree over an ordered sequence of leaf digests.
//
// The tree is shaped by contiguous-range bisection: a range of length n >= 2
// splits at mid = ceil(n/2), the left subtree covering [0, mid) and the right
// [mid, n). A range of length 1 becomes a leaf node carrying the leaf digest
// unchanged. The shape is fully determined by n, so two builds over the same
// ordered sequence always agree bit for bit; permuting the input changes the
// root. Returns ErrEmptyInput for an empty sequence.
func BuildMerkleTree(leaves [][32]byte) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	// Copy so later mutation of the caller's slice cannot reach the tree.
	owned := make([][32]byte, len(leaves))
	copy(owned, leaves)

	return &MerkleTree{
		root:   buildRange(owned),
		leaves: owned,
	}, nil
}

// BuildFromDependencies hashes an ordered dependency slice and builds the
// tree over the resulting leaf digests.
func BuildFromDependencies(deps []*Dependency) (*MerkleTree, error) {
	return BuildMerkleTree(HashDependencies(deps))
}

// buildRange recursively constructs the subtree over a contiguous leaf range.
// Recursion depth is bounded by ceil(log2(n)).
func buildRange(leaves [][32]byte) *MerkleNode {
	if len(leaves) == 1 {
		return &MerkleNode{Digest: leaves[0]}
	}

	// Ceiling split. mid < len(leaves) for n >= 2, so both halves are non-empty.
	mid := (len(leaves) + 1) / 2
	left := buildRange(leaves[:mid])
	right := buildRange(leaves[mid:])

	return &MerkleNode{
		Digest: hashPair(left.Digest, right.Digest),
		Left:   left,
		Right:  right,
	}
}

// GenerateProof creates an inclusion proof for the given dependency.
//
// The second return value is false when the dependency's canonical digest is
// not among the tree's leaves; absence is a negative result, not an error.
// If the same digest appears more than once, the first occurrence is proven.
func (mt *MerkleTree) GenerateProof(dep *Dependency) (*InclusionProof, bool) {
	return mt.GenerateLeafProof(HashDependency(dep))
}

// GenerateLeafProof creates an inclusion proof for a raw leaf digest.
//
// The proof path retraces the same range bisection used during construction:
// at each internal node the leaf's index falls in either the left or right
// half, and the opposite child's digest is recorded together with its side.
// Steps come out ordered leaf to root.
func (mt *MerkleTree) GenerateLeafProof(leaf [32]byte) (*InclusionProof, bool) {
	index := -1
	for i, l := range mt.leaves {
		if l == leaf {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, false
	}

	// Walk top-down, collecting (sibling, side) root-first.
	steps := make([]ProofStep, 0)
	node := mt.root
	lo, hi := 0, len(mt.leaves)

	for hi-lo > 1 {
		mid := lo + (hi-lo+1)/2
		if index < mid {
			// Leaf is in the left half; the right subtree is the sibling.
			steps = append(steps, ProofStep{Sibling: node.Right.Digest, Side: SideRight})
			node = node.Left
			hi = mid
		} else {
			steps = append(steps, ProofStep{Sibling: node.Left.Digest, Side: SideLeft})
			node = node.Right
			lo = mid
		}
	}

	// Reverse into leaf-to-root order.
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}

	return &InclusionProof{
		LeafIndex: index,
		Leaf:      leaf,
		Steps:     steps,
	}, true
}

// VerifyProof checks an inclusion proof against a claimed root.
//
// Starting from the leaf digest, each step re-hashes with the sibling in the
// operand position named by its side: H(current || sibling) for a right
// sibling, H(sibling || current) for a left one. The side indicator is
// mandatory; folding with a fixed operand order produces false negatives for
// leaves that sit on the right side of any split. A false return is a normal
// outcome; the caller decides whether a failed verification is fatal.
func VerifyProof(leaf [32]byte, proof *InclusionProof, root [32]byte) bool {
	if proof == nil {
		return false
	}

	current := leaf
	for _, step := range proof.Steps {
		switch step.Side {
		case SideRight:
			current = hashPair(current, step.Sibling)
		case SideLeft:
			current = hashPair(step.Sibling, current)
		default:
			return false
		}
	}

	return current == root
}

// hashPair computes SHA256(left || right) for two 32-byte digests.
func hashPair(left, right [32]byte) [32]byte {
	data := make([]byte, 64)
	copy(data[0:32], left[:])
	copy(data[32:64], right[:])
	return sha256.Sum256(data)
}
