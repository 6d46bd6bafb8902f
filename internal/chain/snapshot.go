// Package chain provides the immutable snapshot readers share and the
// atomic holder writers publish through.
package chain

import (
	"sort"

	"github.com/JiadongZhao/ckb/internal/consensus"
	"github.com/JiadongZhao/ckb/internal/types"
)

// ChainStore is the snapshot-capable lookup surface the core reads from.
// Implementations must serve consistent data for the lifetime of the
// snapshot that wraps them.
type ChainStore interface {
	GetBlock(hash types.H256) (*types.Block, bool)
	GetHeader(hash types.H256) (*types.Header, bool)
	// GetBlockHash resolves a main-chain number to its block hash.
	GetBlockHash(number uint64) (types.H256, bool)
	// GetBlockNumber resolves a main-chain block hash to its number.
	GetBlockNumber(hash types.H256) (uint64, bool)
	// GetTransaction returns a committed transaction and the hash of the
	// block that carries it.
	GetTransaction(hash types.H256) (*types.Transaction, types.H256, bool)
	GetTransactionInfo(hash types.H256) (*types.TransactionInfo, bool)
	GetTxMeta(hash types.H256) (*types.TxMeta, bool)
	GetBlockExt(hash types.H256) (*types.BlockExt, bool)
	GetBlockEpochIndex(hash types.H256) (types.H256, bool)
	GetEpochExt(index types.H256) (*types.EpochExt, bool)
	GetEpochIndex(number uint64) (types.H256, bool)
}

// Snapshot is an immutable, internally consistent view of the chain at a
// specific tip. It is shared by any number of readers and never mutated
// after construction; the writer publishes a fresh snapshot per tip change.
type Snapshot struct {
	tipHeader *types.Header
	epoch     *types.EpochExt
	consensus *consensus.Consensus
	store     ChainStore
}

// NewSnapshot wraps a store at the given tip.
func NewSnapshot(tip *types.Header, epoch *types.EpochExt, cons *consensus.Consensus, store ChainStore) *Snapshot {
	return &Snapshot{tipHeader: tip, epoch: epoch, consensus: cons, store: store}
}

// TipHeader returns the snapshot's tip header.
func (s *Snapshot) TipHeader() *types.Header {
	return s.tipHeader
}

// TipNumber returns the tip block number.
func (s *Snapshot) TipNumber() uint64 {
	return s.tipHeader.Number
}

// TipHash returns the tip block hash.
func (s *Snapshot) TipHash() types.H256 {
	return s.tipHeader.Hash()
}

// Consensus returns the chain parameters.
func (s *Snapshot) Consensus() *consensus.Consensus {
	return s.consensus
}

// EpochExt returns the epoch of the tip.
func (s *Snapshot) EpochExt() *types.EpochExt {
	return s.epoch
}

// IsMainChain reports whether the block hash is on the canonical chain of
// this snapshot.
func (s *Snapshot) IsMainChain(hash types.H256) bool {
	number, ok := s.store.GetBlockNumber(hash)
	if !ok || number > s.tipHeader.Number {
		return false
	}
	indexed, ok := s.store.GetBlockHash(number)
	return ok && indexed == hash
}

// GetBlock looks up a block by hash.
func (s *Snapshot) GetBlock(hash types.H256) (*types.Block, bool) {
	return s.store.GetBlock(hash)
}

// GetBlockHeader looks up a header by hash.
func (s *Snapshot) GetBlockHeader(hash types.H256) (*types.Header, bool) {
	return s.store.GetHeader(hash)
}

// GetBlockHash resolves a main-chain number to its hash. Numbers past the
// snapshot's tip are unknown even when the store has since grown: the
// snapshot keeps answering for the tip it was created at.
func (s *Snapshot) GetBlockHash(number uint64) (types.H256, bool) {
	if number > s.tipHeader.Number {
		return types.H256{}, false
	}
	return s.store.GetBlockHash(number)
}

// GetBlockNumber resolves a block hash to its main-chain number.
func (s *Snapshot) GetBlockNumber(hash types.H256) (uint64, bool) {
	return s.store.GetBlockNumber(hash)
}

// GetTransaction returns a committed transaction and its block hash.
func (s *Snapshot) GetTransaction(hash types.H256) (*types.Transaction, types.H256, bool) {
	return s.store.GetTransaction(hash)
}

// GetTransactionInfo locates a committed transaction.
func (s *Snapshot) GetTransactionInfo(hash types.H256) (*types.TransactionInfo, bool) {
	return s.store.GetTransactionInfo(hash)
}

// GetTxMeta returns the liveness meta of a committed transaction.
func (s *Snapshot) GetTxMeta(hash types.H256) (*types.TxMeta, bool) {
	return s.store.GetTxMeta(hash)
}

// GetBlockExt returns the writer's per-block bookkeeping.
func (s *Snapshot) GetBlockExt(hash types.H256) (*types.BlockExt, bool) {
	return s.store.GetBlockExt(hash)
}

// GetBlockEpochIndex returns the epoch index a block belongs to.
func (s *Snapshot) GetBlockEpochIndex(hash types.H256) (types.H256, bool) {
	return s.store.GetBlockEpochIndex(hash)
}

// GetEpochExt returns the epoch parameters stored under an epoch index.
func (s *Snapshot) GetEpochExt(index types.H256) (*types.EpochExt, bool) {
	return s.store.GetEpochExt(index)
}

// GetEpochIndex resolves an epoch number to its index.
func (s *Snapshot) GetEpochIndex(number uint64) (types.H256, bool) {
	return s.store.GetEpochIndex(number)
}

// GetEpochForBlock resolves the epoch a block belongs to.
func (s *Snapshot) GetEpochForBlock(hash types.H256) (*types.EpochExt, bool) {
	index, ok := s.GetBlockEpochIndex(hash)
	if !ok {
		return nil, false
	}
	return s.GetEpochExt(index)
}

// BlockMedianTime returns the median timestamp over the most recent
// ancestors ending at the given block, per the consensus window size.
func (s *Snapshot) BlockMedianTime(hash types.H256) (uint64, bool) {
	header, ok := s.store.GetHeader(hash)
	if !ok {
		return 0, false
	}
	count := s.consensus.MedianTimeBlockCount
	timestamps := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		timestamps = append(timestamps, header.Timestamp)
		if header.IsGenesis() {
			break
		}
		header, ok = s.store.GetHeader(header.ParentHash)
		if !ok {
			return 0, false
		}
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[len(timestamps)/2], true
}

// Cell resolves an out-point to its current liveness, optionally attaching
// the cell data.
func (s *Snapshot) Cell(op types.OutPoint, withData bool) types.CellWithStatus {
	meta, ok := s.store.GetTxMeta(op.TxHash)
	if !ok {
		return types.CellWithStatus{Status: types.CellStatusUnknown}
	}
	dead, inRange := meta.IsDead(op.Index)
	if !inRange {
		return types.CellWithStatus{Status: types.CellStatusUnknown}
	}
	if dead {
		return types.CellWithStatus{Status: types.CellStatusDead}
	}

	tx, _, ok := s.store.GetTransaction(op.TxHash)
	if !ok {
		return types.CellWithStatus{Status: types.CellStatusUnknown}
	}
	output := tx.Outputs[op.Index]
	info := &types.CellInfo{Output: output}
	if withData {
		info.Data = output.Data
	}
	return types.CellWithStatus{Cell: info, Status: types.CellStatusLive}
}
