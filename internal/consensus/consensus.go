// Package consensus holds the chain-wide parameters every component consults.
// Parameters are carried explicitly through constructors, never via globals.
package consensus

import (
	"github.com/JiadongZhao/ckb/internal/types"
)

// RewardRatio is an exact fraction used for fee splits.
type RewardRatio struct {
	Numer uint64
	Denom uint64
}

// Consensus bundles the parameters that govern validation and rewards.
type Consensus struct {
	// MedianTimeBlockCount is how many recent ancestors feed the
	// median-time lower bound on header timestamps.
	MedianTimeBlockCount int

	// FinalizationDelayLength is how many blocks must extend beyond a
	// block before its economic state is final.
	FinalizationDelayLength uint64

	// SecondaryEpochReward is the secondary issuance per epoch.
	SecondaryEpochReward types.Capacity

	// ProposerRewardRatio is the share of each transaction fee paid for
	// proposing; the rest is paid for committing.
	ProposerRewardRatio RewardRatio

	// GenesisHash anchors the chain this configuration belongs to.
	GenesisHash types.H256
}

// Default returns the mainnet parameter set.
func Default() *Consensus {
	return &Consensus{
		MedianTimeBlockCount:    37,
		FinalizationDelayLength: 11,
		SecondaryEpochReward:    613_698_63013698, // shannons per epoch
		ProposerRewardRatio:     RewardRatio{Numer: 4, Denom: 10},
	}
}
