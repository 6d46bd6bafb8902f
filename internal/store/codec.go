package store

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/JiadongZhao/ckb/internal/types"
)

// Storage records use cbor with integer keys for compact persistent
// encodings. Difficulties are stored as big-endian bytes.

type storedHeader struct {
	Version         uint32   `cbor:"1,keyasint"`
	ParentHash      [32]byte `cbor:"2,keyasint"`
	Timestamp       uint64   `cbor:"3,keyasint"`
	Number          uint64   `cbor:"4,keyasint"`
	TxsCommit       [32]byte `cbor:"5,keyasint"`
	WitnessesCommit [32]byte `cbor:"6,keyasint"`
	Difficulty      []byte   `cbor:"7,keyasint"`
	Nonce           [16]byte `cbor:"8,keyasint"`
	Proof           []byte   `cbor:"9,keyasint"`
}

type storedScript struct {
	CodeHash [32]byte `cbor:"1,keyasint"`
	HashType uint8    `cbor:"2,keyasint"`
	Args     []byte   `cbor:"3,keyasint"`
}

type storedInput struct {
	TxHash [32]byte `cbor:"1,keyasint"`
	Index  uint32   `cbor:"2,keyasint"`
	Since  uint64   `cbor:"3,keyasint"`
}

type storedOutput struct {
	Capacity uint64        `cbor:"1,keyasint"`
	Lock     storedScript  `cbor:"2,keyasint"`
	Type     *storedScript `cbor:"3,keyasint,omitempty"`
	Data     []byte        `cbor:"4,keyasint"`
}

type storedTransaction struct {
	Version   uint32         `cbor:"1,keyasint"`
	Inputs    []storedInput  `cbor:"2,keyasint"`
	Outputs   []storedOutput `cbor:"3,keyasint"`
	Witnesses [][]byte       `cbor:"4,keyasint"`
}

type storedBlock struct {
	Header       storedHeader        `cbor:"1,keyasint"`
	Transactions []storedTransaction `cbor:"2,keyasint"`
}

type storedEpoch struct {
	Number          uint64 `cbor:"1,keyasint"`
	StartNumber     uint64 `cbor:"2,keyasint"`
	Length          uint64 `cbor:"3,keyasint"`
	BaseBlockReward uint64 `cbor:"4,keyasint"`
	RemainderReward uint64 `cbor:"5,keyasint"`
	Difficulty      []byte `cbor:"6,keyasint"`
}

type storedTxInfo struct {
	BlockHash   [32]byte `cbor:"1,keyasint"`
	BlockNumber uint64   `cbor:"2,keyasint"`
	Index       uint32   `cbor:"3,keyasint"`
}

type storedTxMeta struct {
	Cellbase bool   `cbor:"1,keyasint"`
	DeadMask []bool `cbor:"2,keyasint"`
}

type storedBlockExt struct {
	TxsFees []uint64 `cbor:"1,keyasint"`
}

func encodeHeader(h *types.Header) ([]byte, error) {
	rec := storedHeader{
		Version:         h.Version,
		ParentHash:      h.ParentHash,
		Timestamp:       h.Timestamp,
		Number:          h.Number,
		TxsCommit:       h.TxsCommit,
		WitnessesCommit: h.WitnessesCommit,
		Nonce:           h.Nonce,
		Proof:           h.Proof,
	}
	if h.Difficulty != nil {
		rec.Difficulty = h.Difficulty.Bytes()
	}
	return cbor.Marshal(&rec)
}

func decodeHeader(data []byte) (*types.Header, error) {
	var rec storedHeader
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &types.Header{
		Version:         rec.Version,
		ParentHash:      rec.ParentHash,
		Timestamp:       rec.Timestamp,
		Number:          rec.Number,
		TxsCommit:       rec.TxsCommit,
		WitnessesCommit: rec.WitnessesCommit,
		Difficulty:      new(big.Int).SetBytes(rec.Difficulty),
		Nonce:           rec.Nonce,
		Proof:           rec.Proof,
	}, nil
}

func toStoredScript(s *types.Script) storedScript {
	return storedScript{CodeHash: s.CodeHash, HashType: uint8(s.HashType), Args: s.Args}
}

func fromStoredScript(s *storedScript) types.Script {
	return types.Script{CodeHash: s.CodeHash, HashType: types.ScriptHashType(s.HashType), Args: s.Args}
}

func toStoredTx(tx *types.Transaction) storedTransaction {
	rec := storedTransaction{
		Version:   tx.Version,
		Inputs:    make([]storedInput, len(tx.Inputs)),
		Outputs:   make([]storedOutput, len(tx.Outputs)),
		Witnesses: tx.Witnesses,
	}
	for i, in := range tx.Inputs {
		rec.Inputs[i] = storedInput{
			TxHash: in.PreviousOutput.TxHash,
			Index:  in.PreviousOutput.Index,
			Since:  in.Since,
		}
	}
	for i, out := range tx.Outputs {
		rec.Outputs[i] = storedOutput{
			Capacity: uint64(out.Capacity),
			Lock:     toStoredScript(&out.Lock),
			Data:     out.Data,
		}
		if out.Type != nil {
			t := toStoredScript(out.Type)
			rec.Outputs[i].Type = &t
		}
	}
	return rec
}

func fromStoredTx(rec *storedTransaction) *types.Transaction {
	tx := &types.Transaction{
		Version:   rec.Version,
		Inputs:    make([]types.CellInput, len(rec.Inputs)),
		Outputs:   make([]types.CellOutput, len(rec.Outputs)),
		Witnesses: rec.Witnesses,
	}
	for i, in := range rec.Inputs {
		tx.Inputs[i] = types.CellInput{
			PreviousOutput: types.OutPoint{TxHash: in.TxHash, Index: in.Index},
			Since:          in.Since,
		}
	}
	for i, out := range rec.Outputs {
		tx.Outputs[i] = types.CellOutput{
			Capacity: types.Capacity(out.Capacity),
			Lock:     fromStoredScript(&out.Lock),
			Data:     out.Data,
		}
		if out.Type != nil {
			t := fromStoredScript(out.Type)
			tx.Outputs[i].Type = &t
		}
	}
	return tx
}

func encodeBlock(b *types.Block) ([]byte, error) {
	rec := storedBlock{
		Transactions: make([]storedTransaction, len(b.Transactions)),
	}
	rec.Header = storedHeader{
		Version:         b.Header.Version,
		ParentHash:      b.Header.ParentHash,
		Timestamp:       b.Header.Timestamp,
		Number:          b.Header.Number,
		TxsCommit:       b.Header.TxsCommit,
		WitnessesCommit: b.Header.WitnessesCommit,
		Nonce:           b.Header.Nonce,
		Proof:           b.Header.Proof,
	}
	if b.Header.Difficulty != nil {
		rec.Header.Difficulty = b.Header.Difficulty.Bytes()
	}
	for i, tx := range b.Transactions {
		rec.Transactions[i] = toStoredTx(tx)
	}
	return cbor.Marshal(&rec)
}

func decodeBlock(data []byte) (*types.Block, error) {
	var rec storedBlock
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	block := &types.Block{
		Header: types.Header{
			Version:         rec.Header.Version,
			ParentHash:      rec.Header.ParentHash,
			Timestamp:       rec.Header.Timestamp,
			Number:          rec.Header.Number,
			TxsCommit:       rec.Header.TxsCommit,
			WitnessesCommit: rec.Header.WitnessesCommit,
			Difficulty:      new(big.Int).SetBytes(rec.Header.Difficulty),
			Nonce:           rec.Header.Nonce,
			Proof:           rec.Header.Proof,
		},
		Transactions: make([]*types.Transaction, len(rec.Transactions)),
	}
	for i := range rec.Transactions {
		block.Transactions[i] = fromStoredTx(&rec.Transactions[i])
	}
	return block, nil
}

func encodeEpoch(e *types.EpochExt) ([]byte, error) {
	rec := storedEpoch{
		Number:          e.Number,
		StartNumber:     e.StartNumber,
		Length:          e.Length,
		BaseBlockReward: uint64(e.BaseBlockReward),
		RemainderReward: uint64(e.RemainderReward),
	}
	if e.Difficulty != nil {
		rec.Difficulty = e.Difficulty.Bytes()
	}
	return cbor.Marshal(&rec)
}

func decodeEpoch(data []byte) (*types.EpochExt, error) {
	var rec storedEpoch
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &types.EpochExt{
		Number:          rec.Number,
		StartNumber:     rec.StartNumber,
		Length:          rec.Length,
		BaseBlockReward: types.Capacity(rec.BaseBlockReward),
		RemainderReward: types.Capacity(rec.RemainderReward),
		Difficulty:      new(big.Int).SetBytes(rec.Difficulty),
	}, nil
}

func encodeTxInfo(info *types.TransactionInfo) ([]byte, error) {
	return cbor.Marshal(&storedTxInfo{
		BlockHash:   info.BlockHash,
		BlockNumber: info.BlockNumber,
		Index:       info.Index,
	})
}

func decodeTxInfo(data []byte) (*types.TransactionInfo, error) {
	var rec storedTxInfo
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &types.TransactionInfo{
		BlockHash:   rec.BlockHash,
		BlockNumber: rec.BlockNumber,
		Index:       rec.Index,
	}, nil
}

func encodeTxMeta(meta *types.TxMeta) ([]byte, error) {
	return cbor.Marshal(&storedTxMeta{Cellbase: meta.Cellbase, DeadMask: meta.DeadMask})
}

func decodeTxMeta(data []byte) (*types.TxMeta, error) {
	var rec storedTxMeta
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &types.TxMeta{Cellbase: rec.Cellbase, DeadMask: rec.DeadMask}, nil
}

func encodeBlockExt(ext *types.BlockExt) ([]byte, error) {
	rec := storedBlockExt{TxsFees: make([]uint64, len(ext.TxsFees))}
	for i, fee := range ext.TxsFees {
		rec.TxsFees[i] = uint64(fee)
	}
	return cbor.Marshal(&rec)
}

func decodeBlockExt(data []byte) (*types.BlockExt, error) {
	var rec storedBlockExt
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	ext := &types.BlockExt{TxsFees: make([]types.Capacity, len(rec.TxsFees))}
	for i, fee := range rec.TxsFees {
		ext.TxsFees[i] = types.Capacity(fee)
	}
	return ext, nil
}
