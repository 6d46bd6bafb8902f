package util

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Blake256 computes the blake2b-256 digest of data, the hash function used
// for every commitment in the chain (headers, transactions, merkle nodes).
func Blake256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// Blake256Concat computes blake2b-256 over left || right. Internal merkle
// nodes and the combined transactions root are derived this way.
func Blake256Concat(left, right [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return blake2b.Sum256(buf[:])
}

// HashToHex returns the hash as a hex string.
func HashToHex(hash [32]byte) string {
	return hex.EncodeToString(hash[:])
}

// HexToHash converts a hex string back to a [32]byte hash.
func HexToHash(s string) ([32]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, err
	}
	if len(b) != 32 {
		return [32]byte{}, hex.ErrLength
	}
	var h [32]byte
	copy(h[:], b)
	return h, nil
}
