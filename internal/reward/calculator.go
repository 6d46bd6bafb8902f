// Package reward computes block rewards and issuance for finalized blocks.
package reward

import (
	"errors"
	"fmt"

	"github.com/JiadongZhao/ckb/internal/chain"
	"github.com/JiadongZhao/ckb/internal/consensus"
	"github.com/JiadongZhao/ckb/internal/types"
)

// ErrNotFinalized is returned when the target block is not yet eligible for
// reward settlement.
var ErrNotFinalized = errors.New("reward: block not yet finalized")

// Calculator derives the reward owed for a block. It is a deterministic
// function of the consensus parameters, the snapshot and the target header.
type Calculator struct {
	consensus *consensus.Consensus
	snapshot  *chain.Snapshot
}

// NewCalculator binds a calculator to one snapshot.
func NewCalculator(cons *consensus.Consensus, snapshot *chain.Snapshot) *Calculator {
	return &Calculator{consensus: cons, snapshot: snapshot}
}

// BlockRewardToFinalize returns the reward owed for the block that `parent + 1`
// finalizes, together with the lock script it is owed to. It fails unless
// parent.number has reached the finalization delay.
func (c *Calculator) BlockRewardToFinalize(parent *types.Header) (*types.Script, *types.BlockReward, error) {
	delay := c.consensus.FinalizationDelayLength
	if parent.Number < delay {
		return nil, nil, ErrNotFinalized
	}
	targetNumber := parent.Number + 1 - delay
	targetHash, ok := c.snapshot.GetBlockHash(targetNumber)
	if !ok {
		return nil, nil, fmt.Errorf("reward: main chain has no block %d", targetNumber)
	}
	target, ok := c.snapshot.GetBlockHeader(targetHash)
	if !ok {
		return nil, nil, fmt.Errorf("reward: header %s missing", targetHash)
	}
	return c.BlockRewardForTarget(target)
}

// BlockRewardForTarget itemizes the reward for the given finalized header.
// All capacity arithmetic is checked; overflow surfaces as an error.
func (c *Calculator) BlockRewardForTarget(target *types.Header) (*types.Script, *types.BlockReward, error) {
	targetHash := target.Hash()

	epoch, ok := c.snapshot.GetEpochForBlock(targetHash)
	if !ok {
		return nil, nil, fmt.Errorf("reward: no epoch for block %s", targetHash)
	}
	primary, err := epoch.BlockReward(target.Number)
	if err != nil {
		return nil, nil, err
	}
	secondary, err := epoch.SecondaryBlockIssuance(target.Number, c.consensus.SecondaryEpochReward)
	if err != nil {
		return nil, nil, err
	}

	proposal, committed, err := c.feeSplit(targetHash)
	if err != nil {
		return nil, nil, err
	}

	total := primary
	for _, part := range []types.Capacity{secondary, proposal, committed} {
		total, err = total.SafeAdd(part)
		if err != nil {
			return nil, nil, err
		}
	}

	lock, err := c.minerLock(targetHash)
	if err != nil {
		return nil, nil, err
	}

	return lock, &types.BlockReward{
		Primary:   primary,
		Secondary: secondary,
		Proposal:  proposal,
		Committed: committed,
		Total:     total,
	}, nil
}

// feeSplit divides each transaction fee of the target block between the
// proposal share and the committed share using the consensus ratio. The
// integer remainder of the proposal cut stays with the committer.
func (c *Calculator) feeSplit(targetHash types.H256) (types.Capacity, types.Capacity, error) {
	ext, ok := c.snapshot.GetBlockExt(targetHash)
	if !ok {
		return 0, 0, fmt.Errorf("reward: no block ext for %s", targetHash)
	}
	ratio := c.consensus.ProposerRewardRatio

	var proposal, committed types.Capacity
	for _, fee := range ext.TxsFees {
		scaled, err := fee.SafeMul(ratio.Numer)
		if err != nil {
			return 0, 0, err
		}
		proposalPart := scaled / types.Capacity(ratio.Denom)
		committedPart, err := fee.SafeSub(proposalPart)
		if err != nil {
			return 0, 0, err
		}
		if proposal, err = proposal.SafeAdd(proposalPart); err != nil {
			return 0, 0, err
		}
		if committed, err = committed.SafeAdd(committedPart); err != nil {
			return 0, 0, err
		}
	}
	return proposal, committed, nil
}

// minerLock returns the lock script the target block's cellbase pays to.
func (c *Calculator) minerLock(targetHash types.H256) (*types.Script, error) {
	block, ok := c.snapshot.GetBlock(targetHash)
	if !ok {
		return nil, fmt.Errorf("reward: block %s missing", targetHash)
	}
	cellbase := block.Cellbase()
	if cellbase == nil || !cellbase.IsCellbase() || len(cellbase.Outputs) == 0 {
		return nil, fmt.Errorf("reward: block %s has no cellbase output", targetHash)
	}
	lock := cellbase.Outputs[0].Lock
	return &lock, nil
}
