package types

import (
	"bytes"

	"github.com/JiadongZhao/ckb/pkg/util"
)

// H256 is a 32-byte opaque identifier. Hashes are totally ordered by
// lexicographic byte order.
type H256 [32]byte

// ZeroHash is the all-zero hash. By convention it denotes "none" only as the
// parent of the genesis block.
var ZeroHash H256

// String returns the hash as a hex string.
func (h H256) String() string {
	return util.HashToHex(h)
}

// IsZero reports whether the hash is all zeroes.
func (h H256) IsZero() bool {
	return h == ZeroHash
}

// Cmp compares two hashes lexicographically, returning -1, 0 or 1.
func (h H256) Cmp(other H256) int {
	return bytes.Compare(h[:], other[:])
}

// HashFromHex parses a hex string into an H256.
func HashFromHex(s string) (H256, error) {
	raw, err := util.HexToHash(s)
	if err != nil {
		return H256{}, err
	}
	return H256(raw), nil
}
