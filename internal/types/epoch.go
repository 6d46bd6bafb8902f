package types

import (
	"fmt"
	"math/big"
)

// EpochExt carries the immutable per-epoch consensus parameters. Each block
// maps to exactly one epoch by number range.
type EpochExt struct {
	Number          uint64   `json:"number"`
	StartNumber     uint64   `json:"start_number"`
	Length          uint64   `json:"length"`
	BaseBlockReward Capacity `json:"base_block_reward"`
	RemainderReward Capacity `json:"remainder_reward"`
	Difficulty      *big.Int `json:"difficulty"`
}

// Contains reports whether the block number falls inside this epoch.
func (e *EpochExt) Contains(number uint64) bool {
	return number >= e.StartNumber && number < e.StartNumber+e.Length
}

// BlockReward returns the primary issuance for a block of this epoch. The
// epoch's remainder reward is paid out one shannon at a time to the earliest
// blocks of the epoch on top of the base reward.
func (e *EpochExt) BlockReward(number uint64) (Capacity, error) {
	if !e.Contains(number) {
		return 0, fmt.Errorf("block %d is not in epoch %d", number, e.Number)
	}
	index := number - e.StartNumber
	if index < uint64(e.RemainderReward) {
		return e.BaseBlockReward.SafeAdd(1)
	}
	return e.BaseBlockReward, nil
}

// SecondaryBlockIssuance splits the per-epoch secondary issuance evenly
// across the epoch, with the division remainder going one shannon at a time
// to the earliest blocks.
func (e *EpochExt) SecondaryBlockIssuance(number uint64, secondaryEpochReward Capacity) (Capacity, error) {
	if !e.Contains(number) {
		return 0, fmt.Errorf("block %d is not in epoch %d", number, e.Number)
	}
	if e.Length == 0 {
		return 0, fmt.Errorf("epoch %d has zero length", e.Number)
	}
	base := secondaryEpochReward / Capacity(e.Length)
	remainder := uint64(secondaryEpochReward % Capacity(e.Length))
	index := number - e.StartNumber
	if index < remainder {
		return base.SafeAdd(1)
	}
	return base, nil
}
