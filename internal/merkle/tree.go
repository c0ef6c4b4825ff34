// tree.go - Incremental MiMC Merkle tree over commitments.
//
// The pool itself never computes tree arithmetic; this package is the
// off-ledger side of the protocol. Wallets use it to derive the new root
// submitted with a deposit, and indexers use it to reconstruct the tree
// from the emitted (commitment, leaf_index) sequence.

package merkle

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// ErrTreeFull is returned by AddLeaf when all 2^depth slots are occupied.
var ErrTreeFull = errors.New("merkle tree is full")

// HashNode hashes two child nodes into their parent using MiMC over BN254.
// Inputs are reduced into the scalar field before hashing so arbitrary
// 32-byte values are accepted.
func HashNode(left, right [32]byte) [32]byte {
	var l, r fr.Element
	l.SetBytes(left[:])
	r.SetBytes(right[:])
	lb := l.Bytes()
	rb := r.Bytes()
	h := mimc.NewMiMC()
	h.Write(lb[:])
	h.Write(rb[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ZeroHashes returns the chain of empty-subtree hashes for each level:
// zeros[0] is the empty leaf, zeros[depth] the empty-tree root.
func ZeroHashes(depth int) [][32]byte {
	zeros := make([][32]byte, depth+1)
	for i := 0; i < depth; i++ {
		zeros[i+1] = HashNode(zeros[i], zeros[i])
	}
	return zeros
}

// EmptyRoot returns the root of a tree of the given depth with no leaves.
func EmptyRoot(depth int) [32]byte {
	return ZeroHashes(depth)[depth]
}

// Tree is an append-only Merkle tree over 32-byte leaves. Leaves are
// inserted left to right; vacant slots are empty-subtree hashes.
type Tree struct {
	depth  int
	zeros  [][32]byte
	sub    [][32]byte // filled-subtree frontier, one node per level
	leaves [][32]byte
}

// NewTree creates an empty tree of the given depth (2^depth leaf slots).
func NewTree(depth int) *Tree {
	zeros := ZeroHashes(depth)
	sub := make([][32]byte, depth+1)
	copy(sub, zeros)
	return &Tree{
		depth:  depth,
		zeros:  zeros,
		sub:    sub,
		leaves: make([][32]byte, 0),
	}
}

// Depth returns the tree depth.
func (t *Tree) Depth() int { return t.depth }

// LeafCount returns the number of leaves inserted so far.
func (t *Tree) LeafCount() int { return len(t.leaves) }

// Root returns the current root.
func (t *Tree) Root() [32]byte { return t.sub[t.depth] }

// Leaf returns the leaf at the given index.
func (t *Tree) Leaf(index int) ([32]byte, error) {
	if index < 0 || index >= len(t.leaves) {
		return [32]byte{}, errors.New("leaf index out of range")
	}
	return t.leaves[index], nil
}

// AddLeaf appends a leaf and updates the root, returning the leaf index.
func (t *Tree) AddLeaf(leaf [32]byte) (int, error) {
	if len(t.leaves) >= 1<<t.depth {
		return 0, ErrTreeFull
	}
	t.leaves = append(t.leaves, leaf)
	index := len(t.leaves) - 1
	current := leaf
	idx := index
	for i := 0; i < t.depth; i++ {
		var left, right [32]byte
		if idx&1 == 0 {
			t.sub[i] = current
			left, right = current, t.zeros[i]
		} else {
			left, right = t.sub[i], current
		}
		current = HashNode(left, right)
		idx >>= 1
	}
	t.sub[t.depth] = current
	return index, nil
}

// Witness returns the sibling path and direction bits for the leaf at the
// given index. bits[i] is 1 when the node at level i is a right child.
func (t *Tree) Witness(index int) (path [][32]byte, bits []int, err error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, nil, errors.New("leaf index out of range")
	}
	path = make([][32]byte, t.depth)
	bits = make([]int, t.depth)

	level := make([][32]byte, len(t.leaves))
	copy(level, t.leaves)
	idx := index
	for i := 0; i < t.depth; i++ {
		if len(level)%2 == 1 {
			level = append(level, t.zeros[i])
		}
		if idx&1 == 0 {
			path[i] = level[idx+1]
			bits[i] = 0
		} else {
			path[i] = level[idx-1]
			bits[i] = 1
		}
		next := make([][32]byte, len(level)/2)
		for j := 0; j < len(level); j += 2 {
			next[j/2] = HashNode(level[j], level[j+1])
		}
		level = next
		idx >>= 1
	}
	return path, bits, nil
}

// VerifyWitness recomputes the root from a leaf and its witness.
func VerifyWitness(leaf [32]byte, index int, path [][32]byte, root [32]byte) bool {
	current := leaf
	idx := index
	for i := 0; i < len(path); i++ {
		if idx&1 == 0 {
			current = HashNode(current, path[i])
		} else {
			current = HashNode(path[i], current)
		}
		idx >>= 1
	}
	return current == root
}
