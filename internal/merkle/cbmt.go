// Package merkle implements the Complete Binary Merkle Tree used for
// transaction commitments and inclusion proofs.
//
// The tree is a complete binary tree: every level is filled left to right and
// only the last may be short. With N leaves the nodes occupy indices
// [0, 2N-1); an internal node at index i has children at 2i+1 and 2i+2, the
// leaves sit at [N-1, 2N-1) and the root at 0. Leaves are hashed by the
// caller; internal nodes are blake2b-256 over left || right.
package merkle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JiadongZhao/ckb/internal/types"
	"github.com/JiadongZhao/ckb/pkg/util"
)

var (
	// ErrEmptyProof is returned for proofs over no leaves.
	ErrEmptyProof = errors.New("merkle: proof covers no leaves")

	// ErrCorruptedProof is returned when a proof cannot reconstruct a root:
	// a missing sibling, an exhausted lemma queue, or leftover material.
	ErrCorruptedProof = errors.New("merkle: corrupted proof")
)

// Proof is a compact inclusion proof for a subset of leaves.
//
// Indices are the tree positions of the proved leaves, deepest and rightmost
// first — the order the peel consumes them. Lemmas are the sibling hashes in
// the order the peel needs them; this ordering is part of the wire contract.
type Proof struct {
	Indices []uint32     `json:"indices"`
	Lemmas  []types.H256 `json:"lemmas"`
}

func hashPair(left, right types.H256) types.H256 {
	return types.H256(util.Blake256Concat(left, right))
}

// CombinedRoot commits a pair of roots as hash(left || right). It is a fixed
// arity-2 construction, distinct from a two-leaf CBMT only in intent: the
// outer transactions root must use exactly this composition.
func CombinedRoot(left, right types.H256) types.H256 {
	return hashPair(left, right)
}

// Root computes the CBMT root over the leaves. The root of zero leaves is
// the zero hash; the root of a single leaf is the leaf itself.
func Root(leaves []types.H256) types.H256 {
	n := len(leaves)
	if n == 0 {
		return types.ZeroHash
	}
	if n == 1 {
		return leaves[0]
	}
	nodes := make([]types.H256, 2*n-1)
	copy(nodes[n-1:], leaves)
	for i := n - 2; i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}
	return nodes[0]
}

// sibling returns the tree index of the other child of pos's parent.
func sibling(pos uint32) uint32 {
	return ((pos + 1) ^ 1) - 1
}

func parent(pos uint32) uint32 {
	return (pos - 1) >> 1
}

// BuildProof produces a proof for the leaves at the given indices, which
// must be ascending, distinct and in range. A verifier knowing only those
// leaves and the lemmas can recompute the root.
func BuildProof(leaves []types.H256, leafIndices []uint32) (*Proof, error) {
	n := len(leaves)
	if n == 0 || len(leafIndices) == 0 {
		return nil, ErrEmptyProof
	}
	for i, idx := range leafIndices {
		if int(idx) >= n {
			return nil, fmt.Errorf("merkle: leaf index %d out of range for %d leaves", idx, n)
		}
		if i > 0 && idx <= leafIndices[i-1] {
			return nil, fmt.Errorf("merkle: leaf indices must be ascending and distinct")
		}
	}

	nodes := make([]types.H256, 2*n-1)
	copy(nodes[n-1:], leaves)
	for i := n - 2; i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}

	// Seed the peel queue with the leaf tree positions, deepest first.
	queue := make([]uint32, len(leafIndices))
	for i, idx := range leafIndices {
		queue[i] = idx + uint32(n) - 1
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] > queue[j] })

	indices := make([]uint32, len(queue))
	copy(indices, queue)

	var lemmas []types.H256
	for len(queue) > 0 {
		pos := queue[0]
		queue = queue[1:]
		if pos == 0 {
			break
		}
		sib := sibling(pos)
		if len(queue) > 0 && queue[0] == sib {
			// The sibling is itself proved; pair them without a lemma.
			queue = queue[1:]
		} else {
			lemmas = append(lemmas, nodes[sib])
		}
		queue = append(queue, parent(pos))
	}

	return &Proof{Indices: indices, Lemmas: lemmas}, nil
}

// Root reconstructs the tree root from the proved leaves, given in the same
// order as the proof's indices. It fails if any sibling is missing, any
// index duplicated, or material is left over.
func (p *Proof) Root(leaves []types.H256) (types.H256, error) {
	if len(p.Indices) == 0 {
		return types.H256{}, ErrEmptyProof
	}
	if len(leaves) != len(p.Indices) {
		return types.H256{}, fmt.Errorf("merkle: expected %d leaves, got %d", len(p.Indices), len(leaves))
	}

	type node struct {
		pos  uint32
		hash types.H256
	}
	queue := make([]node, len(leaves))
	for i := range leaves {
		queue[i] = node{pos: p.Indices[i], hash: leaves[i]}
	}
	// Reestablish the peel order regardless of the order indices arrived in.
	sort.Slice(queue, func(i, j int) bool { return queue[i].pos > queue[j].pos })
	for i := 1; i < len(queue); i++ {
		if queue[i].pos == queue[i-1].pos {
			return types.H256{}, ErrCorruptedProof
		}
	}

	lemmaIdx := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.pos == 0 {
			if len(queue) != 0 || lemmaIdx != len(p.Lemmas) {
				return types.H256{}, ErrCorruptedProof
			}
			return cur.hash, nil
		}

		sib := sibling(cur.pos)
		var sibHash types.H256
		if len(queue) > 0 && queue[0].pos == sib {
			sibHash = queue[0].hash
			queue = queue[1:]
		} else {
			if lemmaIdx >= len(p.Lemmas) {
				return types.H256{}, ErrCorruptedProof
			}
			sibHash = p.Lemmas[lemmaIdx]
			lemmaIdx++
		}

		var merged types.H256
		if cur.pos&1 == 1 {
			// Odd positions are left children.
			merged = hashPair(cur.hash, sibHash)
		} else {
			merged = hashPair(sibHash, cur.hash)
		}
		queue = append(queue, node{pos: parent(cur.pos), hash: merged})
	}
	return types.H256{}, ErrCorruptedProof
}

// Verify reconstructs the root from the proved leaves and compares it to the
// claimed root.
func (p *Proof) Verify(leaves []types.H256, root types.H256) bool {
	got, err := p.Root(leaves)
	return err == nil && got == root
}

// RetrieveLeaves picks out the proved leaves from the full leaf set, in the
// order the proof's indices appear. It fails when a proof index does not
// name a leaf position of a tree with len(allLeaves) leaves.
func RetrieveLeaves(allLeaves []types.H256, p *Proof) ([]types.H256, error) {
	n := uint32(len(allLeaves))
	if n == 0 || len(p.Indices) == 0 {
		return nil, ErrEmptyProof
	}
	leaves := make([]types.H256, len(p.Indices))
	for i, pos := range p.Indices {
		if pos < n-1 || pos >= 2*n-1 {
			return nil, fmt.Errorf("merkle: index %d is not a leaf position for %d leaves", pos, n)
		}
		leaves[i] = allLeaves[pos-(n-1)]
	}
	return leaves, nil
}
