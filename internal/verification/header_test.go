package verification

import (
	"errors"
	"math/big"
	"testing"

	"github.com/JiadongZhao/ckb/internal/types"
)

// fakeResolver resolves a header against canned context.
type fakeResolver struct {
	header     *types.Header
	parent     *types.Header
	difficulty *big.Int
}

func (r *fakeResolver) Header() *types.Header         { return r.header }
func (r *fakeResolver) Parent() *types.Header         { return r.parent }
func (r *fakeResolver) CalculateDifficulty() *big.Int { return r.difficulty }

// fakeMedianProvider returns a fixed median for every known parent.
type fakeMedianProvider struct {
	median  uint64
	unknown bool
}

func (p *fakeMedianProvider) BlockMedianTime(types.H256) (uint64, bool) {
	if p.unknown {
		return 0, false
	}
	return p.median, true
}

func makeParentAndChild(parentNumber uint64, childTimestamp uint64) (*types.Header, *types.Header) {
	parent := &types.Header{
		Number:     parentNumber,
		Timestamp:  1_000_000,
		Difficulty: big.NewInt(100),
	}
	child := &types.Header{
		ParentHash: parent.Hash(),
		Number:     parentNumber + 1,
		Timestamp:  childTimestamp,
		Difficulty: big.NewInt(100),
	}
	return parent, child
}

func newTestVerifier(median uint64, now uint64) *HeaderVerifier {
	return NewHeaderVerifierAt(
		&fakeMedianProvider{median: median},
		&DummyPow{},
		func() uint64 { return now },
	)
}

func TestHeaderVerifierAccepts(t *testing.T) {
	parent, child := makeParentAndChild(42, 1_000_001)
	v := newTestVerifier(1_000_000, 1_500_000)
	err := v.Verify(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestHeaderVerifierPowFailsFirst(t *testing.T) {
	// Even with a broken number, pow rejection must win: it runs first.
	parent, child := makeParentAndChild(42, 1_000_001)
	child.Number = 99
	v := NewHeaderVerifierAt(
		&fakeMedianProvider{median: 1_000_000},
		&DummyPow{Reject: true},
		func() uint64 { return 1_500_000 },
	)
	err := v.Verify(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)})
	var powErr *PowError
	if !errors.As(err, &powErr) {
		t.Fatalf("got %v, want PowError", err)
	}
}

func TestHeaderVerifierUnknownParent(t *testing.T) {
	_, child := makeParentAndChild(42, 1_000_001)
	v := newTestVerifier(1_000_000, 1_500_000)
	err := v.Verify(&fakeResolver{header: child, parent: nil})
	var unknown *UnknownParentError
	if !errors.As(err, &unknown) {
		t.Fatalf("got %v, want UnknownParentError", err)
	}
	if unknown.Hash != child.ParentHash {
		t.Errorf("error hash = %s, want %s", unknown.Hash, child.ParentHash)
	}
}

func TestNumberVerifier(t *testing.T) {
	parent, child := makeParentAndChild(42, 1_000_001)
	child.Number = 44

	err := VerifyNumber(parent, child)
	var numErr *NumberError
	if !errors.As(err, &numErr) {
		t.Fatalf("got %v, want NumberError", err)
	}
	if numErr.Expected != 43 || numErr.Actual != 44 {
		t.Errorf("NumberError = {expected %d, actual %d}, want {43, 44}", numErr.Expected, numErr.Actual)
	}

	child.Number = 43
	if err := VerifyNumber(parent, child); err != nil {
		t.Errorf("VerifyNumber: %v", err)
	}
}

func TestTimestampTooEarly(t *testing.T) {
	// A timestamp equal to the median is rejected; strictly above passes.
	parent, child := makeParentAndChild(42, 1_000_000)
	v := newTestVerifier(1_000_000, 2_000_000)

	err := v.Verify(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)})
	var early *BlockTimeTooEarlyError
	if !errors.As(err, &early) {
		t.Fatalf("got %v, want BlockTimeTooEarlyError", err)
	}
	if early.Min != 1_000_000 || early.Found != 1_000_000 {
		t.Errorf("BlockTimeTooEarly = {min %d, found %d}, want {1000000, 1000000}", early.Min, early.Found)
	}

	child = &types.Header{
		ParentHash: parent.Hash(),
		Number:     43,
		Timestamp:  1_000_001,
		Difficulty: big.NewInt(100),
	}
	if err := v.Verify(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)}); err != nil {
		t.Errorf("Verify at median+1: %v", err)
	}
}

func TestTimestampTooNew(t *testing.T) {
	parent, child := makeParentAndChild(42, 2_015_001)
	v := newTestVerifier(1_000_000, 2_000_000)

	err := v.Verify(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)})
	var tooNew *BlockTimeTooNewError
	if !errors.As(err, &tooNew) {
		t.Fatalf("got %v, want BlockTimeTooNewError", err)
	}
	if tooNew.Max != 2_015_000 || tooNew.Found != 2_015_001 {
		t.Errorf("BlockTimeTooNew = {max %d, found %d}, want {2015000, 2015001}", tooNew.Max, tooNew.Found)
	}

	// Exactly at the bound is accepted.
	child = &types.Header{
		ParentHash: parent.Hash(),
		Number:     43,
		Timestamp:  2_015_000,
		Difficulty: big.NewInt(100),
	}
	if err := v.Verify(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)}); err != nil {
		t.Errorf("Verify at max bound: %v", err)
	}
}

func TestTimestampUnknownParentMedian(t *testing.T) {
	parent, child := makeParentAndChild(42, 1_000_001)
	v := NewHeaderVerifierAt(
		&fakeMedianProvider{unknown: true},
		&DummyPow{},
		func() uint64 { return 2_000_000 },
	)
	err := v.Verify(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)})
	var unknown *UnknownParentError
	if !errors.As(err, &unknown) {
		t.Fatalf("got %v, want UnknownParentError", err)
	}
}

func TestDifficultyVerifier(t *testing.T) {
	parent, child := makeParentAndChild(42, 1_000_001)

	err := VerifyDifficulty(&fakeResolver{header: child, parent: parent, difficulty: nil})
	var ancestor *AncestorNotFoundError
	if !errors.As(err, &ancestor) {
		t.Fatalf("got %v, want AncestorNotFoundError", err)
	}

	err = VerifyDifficulty(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(200)})
	var mismatch *DifficultyMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want DifficultyMismatchError", err)
	}
	if mismatch.Expected.Cmp(big.NewInt(200)) != 0 || mismatch.Actual.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("DifficultyMismatch = {expected %v, actual %v}, want {200, 100}", mismatch.Expected, mismatch.Actual)
	}

	if err := VerifyDifficulty(&fakeResolver{header: child, parent: parent, difficulty: big.NewInt(100)}); err != nil {
		t.Errorf("VerifyDifficulty: %v", err)
	}
}
