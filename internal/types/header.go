package types

import (
	"encoding/binary"
	"math/big"

	"github.com/JiadongZhao/ckb/pkg/util"
)

// Nonce is the 128-bit PoW nonce, little-endian.
type Nonce [16]byte

// NonceFromUint64 widens a uint64 into the low bytes of a Nonce.
func NonceFromUint64(v uint64) Nonce {
	var n Nonce
	binary.LittleEndian.PutUint64(n[:8], v)
	return n
}

// Header is a fixed-size block header. Its identity is the hash over the
// canonical serialization.
type Header struct {
	Version         uint32   `json:"version"`
	ParentHash      H256     `json:"parent_hash"`
	Timestamp       uint64   `json:"timestamp"` // unix millis
	Number          uint64   `json:"number"`
	TxsCommit       H256     `json:"txs_commit"`
	WitnessesCommit H256     `json:"witnesses_commit"`
	Difficulty      *big.Int `json:"difficulty"`
	Nonce           Nonce    `json:"nonce"`
	Proof           []byte   `json:"proof"`

	hash *H256
}

// serialize produces the canonical header serialization the identity hash
// covers. The difficulty is encoded as 32 big-endian bytes.
func (h *Header) serialize() []byte {
	buf := make([]byte, 0, 160+len(h.Proof))
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], h.Version)
	buf = append(buf, scratch[:4]...)
	buf = append(buf, h.ParentHash[:]...)
	binary.LittleEndian.PutUint64(scratch[:], h.Timestamp)
	buf = append(buf, scratch[:]...)
	binary.LittleEndian.PutUint64(scratch[:], h.Number)
	buf = append(buf, scratch[:]...)
	buf = append(buf, h.TxsCommit[:]...)
	buf = append(buf, h.WitnessesCommit[:]...)

	var diff [32]byte
	if h.Difficulty != nil {
		h.Difficulty.FillBytes(diff[:])
	}
	buf = append(buf, diff[:]...)
	buf = append(buf, h.Nonce[:]...)
	buf = append(buf, util.WriteVarInt(uint64(len(h.Proof)))...)
	buf = append(buf, h.Proof...)
	return buf
}

// Hash returns the header's identity hash. Cached after first computation.
func (h *Header) Hash() H256 {
	if h.hash != nil {
		return *h.hash
	}
	digest := H256(util.Blake256(h.serialize()))
	h.hash = &digest
	return digest
}

// TransactionsRoot is the combined commitment hash(txs_commit ||
// witnesses_commit). It is a fixed-arity pair hash, not a CBMT root, and
// lets a verifier prove transaction inclusion without seeing witnesses.
func (h *Header) TransactionsRoot() H256 {
	return H256(util.Blake256Concat(h.TxsCommit, h.WitnessesCommit))
}

// IsGenesis reports whether this is the genesis header.
func (h *Header) IsGenesis() bool {
	return h.Number == 0
}
