package verification

import (
	"math/big"
	"time"

	"github.com/JiadongZhao/ckb/internal/metrics"
	"github.com/JiadongZhao/ckb/internal/types"
)

// AllowedFutureBlocktime is how far ahead of local time a header timestamp
// may be, in milliseconds.
const AllowedFutureBlocktime = 15_000

// HeaderResolver supplies the context a candidate header is verified in.
type HeaderResolver interface {
	// Header returns the candidate header.
	Header() *types.Header
	// Parent resolves the parent header, or nil when unknown.
	Parent() *types.Header
	// CalculateDifficulty returns the consensus-expected difficulty for
	// the candidate, or nil when an ancestor needed to derive it is
	// missing.
	CalculateDifficulty() *big.Int
}

// MedianTimeProvider supplies the median timestamp over the most recent
// ancestors ending at a block.
type MedianTimeProvider interface {
	BlockMedianTime(hash types.H256) (uint64, bool)
}

// HeaderVerifier composes the pow, number, timestamp and difficulty checks
// in a fixed order, short-circuiting on the first error. It is pure given
// its resolver and pow engine; wall-clock time enters only through the
// injected now function.
type HeaderVerifier struct {
	pow      PowEngine
	provider MedianTimeProvider
	now      func() uint64
}

// NewHeaderVerifier builds a verifier that reads the system clock for the
// future-timestamp bound.
func NewHeaderVerifier(provider MedianTimeProvider, pow PowEngine) *HeaderVerifier {
	return NewHeaderVerifierAt(provider, pow, func() uint64 {
		return uint64(time.Now().UnixMilli())
	})
}

// NewHeaderVerifierAt is NewHeaderVerifier with an injected clock, for
// deterministic tests.
func NewHeaderVerifierAt(provider MedianTimeProvider, pow PowEngine, now func() uint64) *HeaderVerifier {
	return &HeaderVerifier{pow: pow, provider: provider, now: now}
}

// Verify runs the sub-verifiers against the resolver's candidate header.
func (v *HeaderVerifier) Verify(target HeaderResolver) error {
	if err := v.verify(target); err != nil {
		metrics.HeadersVerified.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.HeadersVerified.WithLabelValues("ok").Inc()
	return nil
}

func (v *HeaderVerifier) verify(target HeaderResolver) error {
	header := target.Header()

	// POW check first.
	if err := VerifyPow(header, v.pow); err != nil {
		return err
	}
	parent := target.Parent()
	if parent == nil {
		return &UnknownParentError{Hash: header.ParentHash}
	}
	if err := VerifyNumber(parent, header); err != nil {
		return err
	}
	if err := v.verifyTimestamp(header); err != nil {
		return err
	}
	return VerifyDifficulty(target)
}

// VerifyPow checks the header against the pow engine.
func VerifyPow(header *types.Header, pow PowEngine) error {
	if !pow.VerifyHeader(header) {
		return &PowError{}
	}
	return nil
}

// VerifyNumber requires header.number == parent.number + 1.
func VerifyNumber(parent, header *types.Header) error {
	if header.Number != parent.Number+1 {
		return &NumberError{Expected: parent.Number + 1, Actual: header.Number}
	}
	return nil
}

// verifyTimestamp requires the timestamp to be strictly above the parent's
// median time and at most now + AllowedFutureBlocktime.
func (v *HeaderVerifier) verifyTimestamp(header *types.Header) error {
	min, ok := v.provider.BlockMedianTime(header.ParentHash)
	if !ok {
		return &UnknownParentError{Hash: header.ParentHash}
	}
	if header.Timestamp <= min {
		return &BlockTimeTooEarlyError{Min: min, Found: header.Timestamp}
	}
	max := v.now() + AllowedFutureBlocktime
	if header.Timestamp > max {
		return &BlockTimeTooNewError{Max: max, Found: header.Timestamp}
	}
	return nil
}

// VerifyDifficulty compares the resolver's expected difficulty bitwise
// against the header field.
func VerifyDifficulty(target HeaderResolver) error {
	expected := target.CalculateDifficulty()
	if expected == nil {
		return &AncestorNotFoundError{}
	}
	actual := target.Header().Difficulty
	if actual == nil || expected.Cmp(actual) != 0 {
		return &DifficultyMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
