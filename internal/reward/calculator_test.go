package reward

import (
	"errors"
	"testing"

	"github.com/JiadongZhao/ckb/internal/chain"
	"github.com/JiadongZhao/ckb/internal/types"
	"github.com/JiadongZhao/ckb/testutil"
)

func TestBlockRewardForTarget(t *testing.T) {
	builder := testutil.NewChainBuilder(t)

	// Block 1 carries one transfer paying a 100 shannon fee.
	genesisCellbase := types.OutPoint{TxHash: builder.Genesis.Transactions[0].Hash(), Index: 0}
	transfer := testutil.TransferTx(genesisCellbase, testutil.DefaultLock(), 900)
	builder.AddBlockWithFees([]types.Capacity{0, 100}, transfer)
	builder.ExtendTo(12)

	snapshot := builder.Snapshot()
	target := headerAt(t, snapshot, 1)

	calc := NewCalculator(builder.Consensus, snapshot)
	lock, blockReward, err := calc.BlockRewardForTarget(target)
	if err != nil {
		t.Fatalf("BlockRewardForTarget: %v", err)
	}

	// Epoch: base 1000, remainder 3 -> block 1 earns 1001 primary.
	if blockReward.Primary != 1001 {
		t.Errorf("primary = %d, want 1001", blockReward.Primary)
	}
	// Secondary: 1_000_000 over 1000 blocks, no remainder -> 1000.
	if blockReward.Secondary != 1000 {
		t.Errorf("secondary = %d, want 1000", blockReward.Secondary)
	}
	// Fee 100 at ratio 4/10: proposal 40, committed 60.
	if blockReward.Proposal != 40 || blockReward.Committed != 60 {
		t.Errorf("fee split = {proposal %d, committed %d}, want {40, 60}", blockReward.Proposal, blockReward.Committed)
	}
	if want := types.Capacity(1001 + 1000 + 40 + 60); blockReward.Total != want {
		t.Errorf("total = %d, want %d", blockReward.Total, want)
	}

	wantLock := testutil.DefaultLock()
	if lock == nil || lock.Hash() != wantLock.Hash() {
		t.Error("miner lock is not the cellbase output lock")
	}
}

func TestBlockRewardToFinalize(t *testing.T) {
	builder := testutil.NewChainBuilder(t)
	builder.ExtendTo(12)
	snapshot := builder.Snapshot()
	calc := NewCalculator(builder.Consensus, snapshot)

	// parent at 11 finalizes block 11 + 1 - 11 = 1.
	parent := headerAt(t, snapshot, 11)
	_, blockReward, err := calc.BlockRewardToFinalize(parent)
	if err != nil {
		t.Fatalf("BlockRewardToFinalize: %v", err)
	}
	if blockReward.Primary != 1001 {
		t.Errorf("primary = %d, want 1001 for block 1", blockReward.Primary)
	}

	// Below the finalization delay there is nothing to settle yet.
	early := headerAt(t, snapshot, 10)
	if _, _, err := calc.BlockRewardToFinalize(early); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("got %v, want ErrNotFinalized", err)
	}
}

func TestRemainderRewardStops(t *testing.T) {
	builder := testutil.NewChainBuilder(t)
	builder.ExtendTo(15)
	snapshot := builder.Snapshot()
	calc := NewCalculator(builder.Consensus, snapshot)

	// Remainder reward covers blocks 0..2 only; block 3 is back to base.
	target := headerAt(t, snapshot, 3)
	_, blockReward, err := calc.BlockRewardForTarget(target)
	if err != nil {
		t.Fatalf("BlockRewardForTarget: %v", err)
	}
	if blockReward.Primary != 1000 {
		t.Errorf("primary = %d, want 1000 past the remainder", blockReward.Primary)
	}
}

func headerAt(t *testing.T, snapshot *chain.Snapshot, number uint64) *types.Header {
	t.Helper()
	hash, ok := snapshot.GetBlockHash(number)
	if !ok {
		t.Fatalf("no main-chain block %d", number)
	}
	header, ok := snapshot.GetBlockHeader(hash)
	if !ok {
		t.Fatalf("header %d missing", number)
	}
	return header
}
