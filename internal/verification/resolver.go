package verification

import (
	"math/big"

	"github.com/JiadongZhao/ckb/internal/types"
)

// ChainContext is the chain surface a resolver needs: header lookup and
// epoch membership. A chain snapshot satisfies it.
type ChainContext interface {
	GetBlockHeader(hash types.H256) (*types.Header, bool)
	GetEpochForBlock(hash types.H256) (*types.EpochExt, bool)
}

// SnapshotResolver resolves a candidate header against a chain context.
type SnapshotResolver struct {
	header *types.Header
	ctx    ChainContext
}

// NewSnapshotResolver builds a resolver for one candidate header.
func NewSnapshotResolver(ctx ChainContext, header *types.Header) *SnapshotResolver {
	return &SnapshotResolver{header: header, ctx: ctx}
}

// Header implements HeaderResolver.
func (r *SnapshotResolver) Header() *types.Header {
	return r.header
}

// Parent implements HeaderResolver.
func (r *SnapshotResolver) Parent() *types.Header {
	parent, ok := r.ctx.GetBlockHeader(r.header.ParentHash)
	if !ok {
		return nil
	}
	return parent
}

// CalculateDifficulty implements HeaderResolver. Within an epoch the
// expected difficulty is the epoch's; adjustments happen only at epoch
// boundaries, where the writer installs the next epoch before verifying
// its blocks.
func (r *SnapshotResolver) CalculateDifficulty() *big.Int {
	parent := r.Parent()
	if parent == nil {
		return nil
	}
	epoch, ok := r.ctx.GetEpochForBlock(parent.Hash())
	if !ok {
		return nil
	}
	return epoch.Difficulty
}
