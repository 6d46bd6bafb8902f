package chain

import (
	"math/big"
	"testing"

	"go.uber.org/zap"

	"github.com/JiadongZhao/ckb/internal/consensus"
	"github.com/JiadongZhao/ckb/internal/types"
)

// memStore is an in-memory ChainStore for snapshot tests.
type memStore struct {
	headers map[types.H256]*types.Header
	blocks  map[types.H256]*types.Block
	index   map[uint64]types.H256
	numbers map[types.H256]uint64
	txs     map[types.H256]*types.Transaction
	txBlock map[types.H256]types.H256
	txInfos map[types.H256]*types.TransactionInfo
	txMetas map[types.H256]*types.TxMeta
	exts    map[types.H256]*types.BlockExt
	epochOf map[types.H256]types.H256
	epochs  map[types.H256]*types.EpochExt
	epochIx map[uint64]types.H256
}

func newMemStore() *memStore {
	return &memStore{
		headers: make(map[types.H256]*types.Header),
		blocks:  make(map[types.H256]*types.Block),
		index:   make(map[uint64]types.H256),
		numbers: make(map[types.H256]uint64),
		txs:     make(map[types.H256]*types.Transaction),
		txBlock: make(map[types.H256]types.H256),
		txInfos: make(map[types.H256]*types.TransactionInfo),
		txMetas: make(map[types.H256]*types.TxMeta),
		exts:    make(map[types.H256]*types.BlockExt),
		epochOf: make(map[types.H256]types.H256),
		epochs:  make(map[types.H256]*types.EpochExt),
		epochIx: make(map[uint64]types.H256),
	}
}

func (m *memStore) GetBlock(hash types.H256) (*types.Block, bool) {
	b, ok := m.blocks[hash]
	return b, ok
}

func (m *memStore) GetHeader(hash types.H256) (*types.Header, bool) {
	h, ok := m.headers[hash]
	return h, ok
}

func (m *memStore) GetBlockHash(number uint64) (types.H256, bool) {
	h, ok := m.index[number]
	return h, ok
}

func (m *memStore) GetBlockNumber(hash types.H256) (uint64, bool) {
	n, ok := m.numbers[hash]
	return n, ok
}

func (m *memStore) GetTransaction(hash types.H256) (*types.Transaction, types.H256, bool) {
	tx, ok := m.txs[hash]
	if !ok {
		return nil, types.H256{}, false
	}
	return tx, m.txBlock[hash], true
}

func (m *memStore) GetTransactionInfo(hash types.H256) (*types.TransactionInfo, bool) {
	info, ok := m.txInfos[hash]
	return info, ok
}

func (m *memStore) GetTxMeta(hash types.H256) (*types.TxMeta, bool) {
	meta, ok := m.txMetas[hash]
	return meta, ok
}

func (m *memStore) GetBlockExt(hash types.H256) (*types.BlockExt, bool) {
	ext, ok := m.exts[hash]
	return ext, ok
}

func (m *memStore) GetBlockEpochIndex(hash types.H256) (types.H256, bool) {
	ix, ok := m.epochOf[hash]
	return ix, ok
}

func (m *memStore) GetEpochExt(index types.H256) (*types.EpochExt, bool) {
	e, ok := m.epochs[index]
	return e, ok
}

func (m *memStore) GetEpochIndex(number uint64) (types.H256, bool) {
	ix, ok := m.epochIx[number]
	return ix, ok
}

// addChain appends numbered headers with the given timestamps, linking
// parents, and returns the headers.
func (m *memStore) addChain(timestamps []uint64) []*types.Header {
	headers := make([]*types.Header, len(timestamps))
	var parent types.H256
	for i, ts := range timestamps {
		header := &types.Header{
			Number:     uint64(i),
			ParentHash: parent,
			Timestamp:  ts,
			Difficulty: big.NewInt(100),
		}
		hash := header.Hash()
		m.headers[hash] = header
		m.index[uint64(i)] = hash
		m.numbers[hash] = uint64(i)
		headers[i] = header
		parent = hash
	}
	return headers
}

func testConsensus() *consensus.Consensus {
	return &consensus.Consensus{
		MedianTimeBlockCount:    11,
		FinalizationDelayLength: 11,
		SecondaryEpochReward:    1_000_000,
		ProposerRewardRatio:     consensus.RewardRatio{Numer: 4, Denom: 10},
	}
}

func TestSnapshotMainChainMembership(t *testing.T) {
	store := newMemStore()
	headers := m5Timestamps(store)
	tip := headers[len(headers)-1]
	snap := NewSnapshot(tip, nil, testConsensus(), store)

	for _, h := range headers {
		if !snap.IsMainChain(h.Hash()) {
			t.Errorf("block %d should be on the main chain", h.Number)
		}
	}
	if snap.IsMainChain(types.H256{0x42}) {
		t.Error("unknown hash reported as main chain")
	}
}

func m5Timestamps(store *memStore) []*types.Header {
	return store.addChain([]uint64{1_000_000, 1_001_000, 1_002_000, 1_003_000, 1_004_000})
}

func TestSnapshotDoesNotSeePastItsTip(t *testing.T) {
	store := newMemStore()
	headers := m5Timestamps(store)

	// Snapshot taken at block 2, store later grows to block 4.
	snap := NewSnapshot(headers[2], nil, testConsensus(), store)

	if got := snap.TipNumber(); got != 2 {
		t.Fatalf("TipNumber = %d, want 2", got)
	}
	if _, ok := snap.GetBlockHash(3); ok {
		t.Error("snapshot sees block 3 past its tip")
	}
	if snap.IsMainChain(headers[4].Hash()) {
		t.Error("snapshot reports post-tip block as main chain")
	}
	if _, ok := snap.GetBlockHash(2); !ok {
		t.Error("snapshot lost its own tip")
	}
}

func TestBlockMedianTime(t *testing.T) {
	store := newMemStore()
	headers := m5Timestamps(store)
	snap := NewSnapshot(headers[4], nil, testConsensus(), store)

	// Five ancestors fit inside the 11-block window: median of
	// 1_000_000..1_004_000 is 1_002_000.
	median, ok := snap.BlockMedianTime(headers[4].Hash())
	if !ok {
		t.Fatal("median time not available")
	}
	if median != 1_002_000 {
		t.Errorf("median = %d, want 1002000", median)
	}

	// A single block chain medians to its own timestamp.
	median, ok = snap.BlockMedianTime(headers[0].Hash())
	if !ok || median != 1_000_000 {
		t.Errorf("genesis median = %d ok=%v, want 1000000", median, ok)
	}

	if _, ok := snap.BlockMedianTime(types.H256{0x42}); ok {
		t.Error("median for unknown block should not resolve")
	}
}

func TestBlockMedianTimeWindowsTruncate(t *testing.T) {
	store := newMemStore()
	// 15 blocks, timestamps ascending by 1000. Window is 11: ancestors of
	// the tip are blocks 4..14, median is block 9's timestamp.
	timestamps := make([]uint64, 15)
	for i := range timestamps {
		timestamps[i] = 1_000_000 + uint64(i)*1000
	}
	headers := store.addChain(timestamps)
	snap := NewSnapshot(headers[14], nil, testConsensus(), store)

	median, ok := snap.BlockMedianTime(headers[14].Hash())
	if !ok {
		t.Fatal("median time not available")
	}
	if want := timestamps[9]; median != want {
		t.Errorf("median = %d, want %d", median, want)
	}
}

func TestSnapshotCell(t *testing.T) {
	store := newMemStore()
	headers := m5Timestamps(store)
	snap := NewSnapshot(headers[4], nil, testConsensus(), store)

	tx := &types.Transaction{
		Version: 1,
		Inputs:  []types.CellInput{types.NewCellbaseInput(1)},
		Outputs: []types.CellOutput{
			{Capacity: 700, Lock: types.Script{CodeHash: types.H256{0x01}}, Data: []byte{0x0a, 0x0b}},
			{Capacity: 300, Lock: types.Script{CodeHash: types.H256{0x02}}},
		},
	}
	txHash := tx.Hash()
	store.txs[txHash] = tx
	store.txBlock[txHash] = headers[1].Hash()
	meta := types.NewTxMeta(2, true)
	meta.SetDead(1)
	store.txMetas[txHash] = meta

	live := snap.Cell(types.OutPoint{TxHash: txHash, Index: 0}, true)
	if live.Status != types.CellStatusLive {
		t.Fatalf("status = %s, want live", live.Status)
	}
	if live.Cell == nil || live.Cell.Output.Capacity != 700 {
		t.Error("live cell output missing")
	}
	if string(live.Cell.Data) != string([]byte{0x0a, 0x0b}) {
		t.Error("with_data did not attach cell data")
	}

	noData := snap.Cell(types.OutPoint{TxHash: txHash, Index: 0}, false)
	if noData.Cell == nil || noData.Cell.Data != nil {
		t.Error("cell data attached without with_data")
	}

	dead := snap.Cell(types.OutPoint{TxHash: txHash, Index: 1}, false)
	if dead.Status != types.CellStatusDead {
		t.Errorf("status = %s, want dead", dead.Status)
	}

	outOfRange := snap.Cell(types.OutPoint{TxHash: txHash, Index: 9}, false)
	if outOfRange.Status != types.CellStatusUnknown {
		t.Errorf("status = %s, want unknown", outOfRange.Status)
	}

	unknown := snap.Cell(types.OutPoint{TxHash: types.H256{0x42}, Index: 0}, false)
	if unknown.Status != types.CellStatusUnknown {
		t.Errorf("status = %s, want unknown", unknown.Status)
	}
}

func TestHolderSwapAndSubscribe(t *testing.T) {
	store := newMemStore()
	headers := m5Timestamps(store)

	holder := NewHolder(NewSnapshot(headers[2], nil, testConsensus(), store), zap.NewNop())
	events := holder.Subscribe()

	old := holder.Snapshot()
	if old.TipNumber() != 2 {
		t.Fatalf("initial tip = %d, want 2", old.TipNumber())
	}

	holder.Swap(NewSnapshot(headers[4], nil, testConsensus(), store))

	if got := holder.Snapshot().TipNumber(); got != 4 {
		t.Errorf("tip after swap = %d, want 4", got)
	}
	// The old reference keeps answering for its own tip.
	if got := old.TipNumber(); got != 2 {
		t.Errorf("old snapshot tip = %d, want 2", got)
	}

	select {
	case event := <-events:
		if event.Number != 4 || event.Hash != headers[4].Hash() {
			t.Errorf("event = %+v, want tip 4", event)
		}
	default:
		t.Error("no tip event delivered")
	}
}
