package testutil

import (
	"encoding/binary"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/JiadongZhao/ckb/internal/chain"
	"github.com/JiadongZhao/ckb/internal/consensus"
	"github.com/JiadongZhao/ckb/internal/merkle"
	"github.com/JiadongZhao/ckb/internal/store"
	"github.com/JiadongZhao/ckb/internal/types"
	"github.com/JiadongZhao/ckb/pkg/util"
)

// TestConsensus returns small parameters that keep fixtures readable:
// an 11-block median window and a finalization delay of 11.
func TestConsensus() *consensus.Consensus {
	return &consensus.Consensus{
		MedianTimeBlockCount:    11,
		FinalizationDelayLength: 11,
		SecondaryEpochReward:    1_000_000,
		ProposerRewardRatio:     consensus.RewardRatio{Numer: 4, Denom: 10},
	}
}

// DefaultLock is the lock script fixtures pay the miner with.
func DefaultLock() types.Script {
	return types.Script{CodeHash: types.H256{0x11}, HashType: types.HashTypeType, Args: []byte{0x01}}
}

// EpochIndexFor derives a stable epoch index for tests.
func EpochIndexFor(number uint64) types.H256 {
	var buf [13]byte
	copy(buf[:5], "epoch")
	binary.LittleEndian.PutUint64(buf[5:], number)
	return types.H256(util.Blake256(buf[:]))
}

// CellbaseTx builds the conventional first transaction of a block, paying
// the given lock.
func CellbaseTx(number uint64, lock types.Script, capacity types.Capacity) *types.Transaction {
	return &types.Transaction{
		Version: 1,
		Inputs:  []types.CellInput{types.NewCellbaseInput(number)},
		Outputs: []types.CellOutput{{Capacity: capacity, Lock: lock}},
	}
}

// TransferTx builds a transaction spending prev into a single output.
func TransferTx(prev types.OutPoint, lock types.Script, capacity types.Capacity) *types.Transaction {
	return &types.Transaction{
		Version:   1,
		Inputs:    []types.CellInput{{PreviousOutput: prev}},
		Outputs:   []types.CellOutput{{Capacity: capacity, Lock: lock, Data: []byte{0xca, 0xfe}}},
		Witnesses: [][]byte{{0x01, 0x02}},
	}
}

// ChainBuilder grows a main chain inside a bolt store, one attached block
// at a time, and hands out snapshots of it.
type ChainBuilder struct {
	T         *testing.T
	Store     *store.BoltStore
	Consensus *consensus.Consensus
	Epoch     *types.EpochExt
	Genesis   *types.Block
	Tip       *types.Header

	epochIndex types.H256
	timestamp  uint64
}

// NewChainBuilder opens a fresh store, installs epoch 0 and attaches the
// genesis block.
func NewChainBuilder(t *testing.T) *ChainBuilder {
	t.Helper()

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "chain.db"), Logger())
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	epoch := &types.EpochExt{
		Number:          0,
		StartNumber:     0,
		Length:          1000,
		BaseBlockReward: 1000,
		RemainderReward: 3,
		Difficulty:      big.NewInt(100),
	}
	index := EpochIndexFor(0)
	if err := st.PutEpoch(index, epoch); err != nil {
		t.Fatalf("PutEpoch: %v", err)
	}

	b := &ChainBuilder{
		T:          t,
		Store:      st,
		Consensus:  TestConsensus(),
		Epoch:      epoch,
		epochIndex: index,
		timestamp:  1_000_000,
	}
	b.Genesis = b.AddBlock()
	return b
}

// BlockAt fetches a main-chain block by number, failing the test when it is
// missing.
func (b *ChainBuilder) BlockAt(number uint64) *types.Block {
	b.T.Helper()
	hash, ok := b.Store.GetBlockHash(number)
	if !ok {
		b.T.Fatalf("no main-chain block %d", number)
	}
	block, ok := b.Store.GetBlock(hash)
	if !ok {
		b.T.Fatalf("block %d indexed but missing", number)
	}
	return block
}

// AddBlock attaches the next main-chain block carrying the given
// transactions after the cellbase. Fees defaults to one zero fee per
// transaction (the cellbase included).
func (b *ChainBuilder) AddBlock(txs ...*types.Transaction) *types.Block {
	return b.AddBlockWithFees(nil, txs...)
}

// AddBlockWithFees attaches the next block recording the given tx fees in
// the block ext.
func (b *ChainBuilder) AddBlockWithFees(fees []types.Capacity, txs ...*types.Transaction) *types.Block {
	b.T.Helper()

	var number uint64
	var parentHash types.H256
	if b.Tip != nil {
		number = b.Tip.Number + 1
		parentHash = b.Tip.Hash()
	}
	b.timestamp += 1000

	transactions := append([]*types.Transaction{CellbaseTx(number, DefaultLock(), b.Epoch.BaseBlockReward)}, txs...)
	block := &types.Block{
		Header: types.Header{
			Version:    1,
			ParentHash: parentHash,
			Timestamp:  b.timestamp,
			Number:     number,
			Difficulty: new(big.Int).Set(b.Epoch.Difficulty),
			Nonce:      types.NonceFromUint64(number),
		},
		Transactions: transactions,
	}
	block.Header.TxsCommit = merkle.Root(block.TxHashes())
	block.Header.WitnessesCommit = merkle.Root(block.WitnessHashes())

	if fees == nil {
		fees = make([]types.Capacity, len(transactions))
	}
	if err := b.Store.AttachBlock(block, &types.BlockExt{TxsFees: fees}, b.epochIndex); err != nil {
		b.T.Fatalf("AttachBlock %d: %v", number, err)
	}
	b.Tip = &block.Header
	return block
}

// ExtendTo attaches empty blocks until the tip reaches the given number.
func (b *ChainBuilder) ExtendTo(number uint64) {
	for b.Tip.Number < number {
		b.AddBlock()
	}
}

// Snapshot captures the current chain state.
func (b *ChainBuilder) Snapshot() *chain.Snapshot {
	return chain.NewSnapshot(b.Tip, b.Epoch, b.Consensus, b.Store)
}

// Holder publishes the current snapshot through an atomic holder.
func (b *ChainBuilder) Holder() *chain.Holder {
	return chain.NewHolder(b.Snapshot(), Logger())
}
