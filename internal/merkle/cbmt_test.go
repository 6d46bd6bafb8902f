package merkle

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JiadongZhao/ckb/internal/types"
	"github.com/JiadongZhao/ckb/pkg/util"
)

func makeLeaves(n int) []types.H256 {
	leaves := make([]types.H256, n)
	for i := range leaves {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(i)+1)
		leaves[i] = types.H256(util.Blake256(buf[:]))
	}
	return leaves
}

func TestRootEmpty(t *testing.T) {
	if got := Root(nil); got != types.ZeroHash {
		t.Errorf("Root(nil) = %s, want zero hash", got)
	}
}

func TestRootSingleLeaf(t *testing.T) {
	leaves := makeLeaves(1)
	if got := Root(leaves); got != leaves[0] {
		t.Errorf("Root of one leaf = %s, want the leaf itself", got)
	}
}

func TestRootTwoLeaves(t *testing.T) {
	leaves := makeLeaves(2)
	want := types.H256(util.Blake256Concat(leaves[0], leaves[1]))
	if got := Root(leaves); got != want {
		t.Errorf("Root of two leaves = %s, want hash(l||r) = %s", got, want)
	}
}

func TestRootFiveLeaves(t *testing.T) {
	// Hand-build the 9-node complete tree: leaves at positions 4..8.
	leaves := makeLeaves(5)
	n3 := types.H256(util.Blake256Concat(leaves[3], leaves[4]))
	n1 := types.H256(util.Blake256Concat(n3, leaves[0]))
	n2 := types.H256(util.Blake256Concat(leaves[1], leaves[2]))
	want := types.H256(util.Blake256Concat(n1, n2))
	if got := Root(leaves); got != want {
		t.Errorf("Root of five leaves = %s, want %s", got, want)
	}
}

// TestProofRoundTripAllSizes covers every leaf count in [1, 16] with several
// index subsets each, since the tree-index arithmetic must be exact for
// cross-implementation interoperability.
func TestProofRoundTripAllSizes(t *testing.T) {
	for n := 1; n <= 16; n++ {
		leaves := makeLeaves(n)
		root := Root(leaves)

		var subsets [][]uint32
		subsets = append(subsets, []uint32{0})
		subsets = append(subsets, []uint32{uint32(n) - 1})
		if n > 1 {
			subsets = append(subsets, []uint32{0, uint32(n) - 1})
		}
		if n > 2 {
			subsets = append(subsets, []uint32{1, uint32(n)/2 + 1})
		}
		full := make([]uint32, n)
		for i := range full {
			full[i] = uint32(i)
		}
		subsets = append(subsets, full)

		for _, indices := range subsets {
			proof, err := BuildProof(leaves, indices)
			require.NoError(t, err, "n=%d indices=%v", n, indices)

			proved, err := RetrieveLeaves(leaves, proof)
			require.NoError(t, err, "n=%d indices=%v", n, indices)

			got, err := proof.Root(proved)
			require.NoError(t, err, "n=%d indices=%v", n, indices)
			require.Equal(t, root, got, "n=%d indices=%v", n, indices)
		}
	}
}

// TestProofFourLeaves pins the concrete shape for N=4, indices [1,3]:
// two lemmas, one per proved leaf's sibling.
func TestProofFourLeaves(t *testing.T) {
	leaves := makeLeaves(4)
	root := Root(leaves)

	proof, err := BuildProof(leaves, []uint32{1, 3})
	require.NoError(t, err)

	// Leaves sit at tree positions 3..6; indices come out deepest first.
	require.Equal(t, []uint32{6, 4}, proof.Indices)
	require.Len(t, proof.Lemmas, 2)
	require.Equal(t, leaves[2], proof.Lemmas[0])
	require.Equal(t, leaves[0], proof.Lemmas[1])

	require.True(t, proof.Verify([]types.H256{leaves[3], leaves[1]}, root))

	// Flipping a single lemma byte must break verification.
	proof.Lemmas[0][5] ^= 0xff
	require.False(t, proof.Verify([]types.H256{leaves[3], leaves[1]}, root))
}

func TestBuildProofRejectsBadIndices(t *testing.T) {
	leaves := makeLeaves(4)

	if _, err := BuildProof(leaves, nil); err == nil {
		t.Error("expected error for empty indices")
	}
	if _, err := BuildProof(nil, []uint32{0}); err == nil {
		t.Error("expected error for empty leaves")
	}
	if _, err := BuildProof(leaves, []uint32{1, 1}); err == nil {
		t.Error("expected error for duplicated indices")
	}
	if _, err := BuildProof(leaves, []uint32{2, 1}); err == nil {
		t.Error("expected error for descending indices")
	}
	if _, err := BuildProof(leaves, []uint32{4}); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestProofRootRejectsTampering(t *testing.T) {
	leaves := makeLeaves(8)
	proof, err := BuildProof(leaves, []uint32{2, 5})
	require.NoError(t, err)

	proved, err := RetrieveLeaves(leaves, proof)
	require.NoError(t, err)

	// Wrong leaf count.
	if _, err := proof.Root(proved[:1]); err == nil {
		t.Error("expected error for leaf count mismatch")
	}

	// Truncated lemmas.
	truncated := &Proof{Indices: proof.Indices, Lemmas: proof.Lemmas[:len(proof.Lemmas)-1]}
	if _, err := truncated.Root(proved); err == nil {
		t.Error("expected error for missing lemma")
	}

	// Extra lemma.
	padded := &Proof{Indices: proof.Indices, Lemmas: append(append([]types.H256{}, proof.Lemmas...), types.H256{0x01})}
	if _, err := padded.Root(proved); err == nil {
		t.Error("expected error for leftover lemma")
	}

	// Duplicated position.
	dup := &Proof{Indices: []uint32{9, 9}, Lemmas: proof.Lemmas}
	if _, err := dup.Root(proved); err == nil {
		t.Error("expected error for duplicated position")
	}
}

func TestRetrieveLeavesRejectsNonLeafPositions(t *testing.T) {
	leaves := makeLeaves(4)
	// Position 2 is an internal node for a 4-leaf tree.
	p := &Proof{Indices: []uint32{2}}
	if _, err := RetrieveLeaves(leaves, p); err == nil {
		t.Error("expected error for internal-node position")
	}
	// Position 7 is past the end.
	p = &Proof{Indices: []uint32{7}}
	if _, err := RetrieveLeaves(leaves, p); err == nil {
		t.Error("expected error for out-of-range position")
	}
}
