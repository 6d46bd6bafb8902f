package verification

import (
	"math/big"

	"github.com/JiadongZhao/ckb/internal/types"
)

// PowEngine is the pluggable proof-of-work capability. Implementations are
// passed explicitly to verifiers, never reached through global state.
type PowEngine interface {
	VerifyHeader(header *types.Header) bool
}

// DummyPow accepts or rejects every header. Tests use the accepting form;
// it must never back a production verifier.
type DummyPow struct {
	Reject bool
}

func (p *DummyPow) VerifyHeader(*types.Header) bool {
	return !p.Reject
}

// TargetPow treats the header hash as a big-endian integer and requires it
// to be at most the target derived from the header's difficulty.
type TargetPow struct {
	// MaxTarget corresponds to difficulty one.
	MaxTarget *big.Int
}

func (p *TargetPow) VerifyHeader(header *types.Header) bool {
	if header.Difficulty == nil || header.Difficulty.Sign() <= 0 {
		return false
	}
	target := new(big.Int).Div(p.MaxTarget, header.Difficulty)
	hash := header.Hash()
	hashInt := new(big.Int).SetBytes(hash[:])
	return hashInt.Cmp(target) <= 0
}
