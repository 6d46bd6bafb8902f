package types

import (
	"encoding/binary"
	"math"

	"github.com/JiadongZhao/ckb/pkg/util"
)

// ScriptHashType selects how a script's code hash is resolved.
type ScriptHashType uint8

const (
	// HashTypeData matches the code hash against cell data.
	HashTypeData ScriptHashType = 0
	// HashTypeType matches the code hash against a type script hash.
	HashTypeType ScriptHashType = 1
)

// Script locks a cell or attaches type rules to it.
type Script struct {
	CodeHash H256           `json:"code_hash"`
	HashType ScriptHashType `json:"hash_type"`
	Args     []byte         `json:"args"`
}

// Hash returns the script's identity hash over its canonical serialization.
func (s Script) Hash() H256 {
	buf := make([]byte, 0, 33+len(s.Args)+9)
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, byte(s.HashType))
	buf = append(buf, util.WriteVarInt(uint64(len(s.Args)))...)
	buf = append(buf, s.Args...)
	return H256(util.Blake256(buf))
}

// OutPoint identifies a cell by its creating transaction and output index.
type OutPoint struct {
	TxHash H256   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// CellInput consumes the cell identified by PreviousOutput.
type CellInput struct {
	PreviousOutput OutPoint `json:"previous_output"`
	Since          uint64   `json:"since"`
}

// CellOutput creates a new cell carrying capacity, a lock script, an
// optional type script and a data payload.
type CellOutput struct {
	Capacity Capacity `json:"capacity"`
	Lock     Script   `json:"lock"`
	Type     *Script  `json:"type"`
	Data     []byte   `json:"data"`
}

// Transaction moves capacity between cells. The identity hash covers the
// non-witness serialization; witnesses are committed separately.
type Transaction struct {
	Version   uint32       `json:"version"`
	Inputs    []CellInput  `json:"inputs"`
	Outputs   []CellOutput `json:"outputs"`
	Witnesses [][]byte     `json:"witnesses"`

	hash        *H256
	witnessHash *H256
}

// NewCellbaseInput returns the conventional null input that marks a cellbase.
func NewCellbaseInput(blockNumber uint64) CellInput {
	return CellInput{
		PreviousOutput: OutPoint{TxHash: ZeroHash, Index: math.MaxUint32},
		Since:          blockNumber,
	}
}

// serializeForHash produces the canonical non-witness serialization.
func (tx *Transaction) serializeForHash() []byte {
	var buf []byte
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], tx.Version)
	buf = append(buf, scratch[:4]...)

	buf = append(buf, util.WriteVarInt(uint64(len(tx.Inputs)))...)
	for _, in := range tx.Inputs {
		buf = append(buf, in.PreviousOutput.TxHash[:]...)
		binary.LittleEndian.PutUint32(scratch[:4], in.PreviousOutput.Index)
		buf = append(buf, scratch[:4]...)
		binary.LittleEndian.PutUint64(scratch[:], in.Since)
		buf = append(buf, scratch[:]...)
	}

	buf = append(buf, util.WriteVarInt(uint64(len(tx.Outputs)))...)
	for _, out := range tx.Outputs {
		binary.LittleEndian.PutUint64(scratch[:], uint64(out.Capacity))
		buf = append(buf, scratch[:]...)
		buf = appendScript(buf, &out.Lock)
		if out.Type != nil {
			buf = append(buf, 1)
			buf = appendScript(buf, out.Type)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, util.WriteVarInt(uint64(len(out.Data)))...)
		buf = append(buf, out.Data...)
	}

	return buf
}

func appendScript(buf []byte, s *Script) []byte {
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, byte(s.HashType))
	buf = append(buf, util.WriteVarInt(uint64(len(s.Args)))...)
	buf = append(buf, s.Args...)
	return buf
}

// Hash returns the transaction's stable identity hash over its non-witness
// bytes. Cached after first computation.
func (tx *Transaction) Hash() H256 {
	if tx.hash != nil {
		return *tx.hash
	}
	h := H256(util.Blake256(tx.serializeForHash()))
	tx.hash = &h
	return h
}

// WitnessHash returns the hash over the transaction's witness bytes. A
// transaction without witnesses (the cellbase, typically) hashes to its
// identity hash so it still occupies a leaf in the witnesses tree.
func (tx *Transaction) WitnessHash() H256 {
	if tx.witnessHash != nil {
		return *tx.witnessHash
	}
	if len(tx.Witnesses) == 0 {
		h := tx.Hash()
		tx.witnessHash = &h
		return h
	}
	buf := util.WriteVarInt(uint64(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		buf = append(buf, util.WriteVarInt(uint64(len(w)))...)
		buf = append(buf, w...)
	}
	h := H256(util.Blake256(buf))
	tx.witnessHash = &h
	return h
}

// IsCellbase reports whether the transaction is a cellbase: a single input
// referencing the null out-point.
func (tx *Transaction) IsCellbase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	prev := tx.Inputs[0].PreviousOutput
	return prev.Index == math.MaxUint32 && prev.TxHash.IsZero()
}
