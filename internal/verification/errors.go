package verification

import (
	"fmt"
	"math/big"

	"github.com/JiadongZhao/ckb/internal/types"
)

// The verifier errors form a shallow sum type: each rejection reason is its
// own exported type so downstream monitors can discriminate with errors.As.

// PowError indicates the header's proof of work did not verify.
type PowError struct{}

func (e *PowError) Error() string {
	return "pow: invalid proof"
}

// UnknownParentError indicates the parent header could not be resolved.
type UnknownParentError struct {
	Hash types.H256
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("unknown parent %s", e.Hash)
}

// NumberError indicates the header's number is not parent.number + 1.
type NumberError struct {
	Expected uint64
	Actual   uint64
}

func (e *NumberError) Error() string {
	return fmt.Sprintf("number: expected %d, actual %d", e.Expected, e.Actual)
}

// BlockTimeTooEarlyError indicates the timestamp is at or below the median
// of the recent ancestors.
type BlockTimeTooEarlyError struct {
	Min   uint64
	Found uint64
}

func (e *BlockTimeTooEarlyError) Error() string {
	return fmt.Sprintf("timestamp: block time too early, min %d, found %d", e.Min, e.Found)
}

// BlockTimeTooNewError indicates the timestamp is beyond the allowed clock
// drift into the future.
type BlockTimeTooNewError struct {
	Max   uint64
	Found uint64
}

func (e *BlockTimeTooNewError) Error() string {
	return fmt.Sprintf("timestamp: block time too new, max %d, found %d", e.Max, e.Found)
}

// AncestorNotFoundError indicates the expected difficulty could not be
// derived because an ancestor is missing.
type AncestorNotFoundError struct{}

func (e *AncestorNotFoundError) Error() string {
	return "difficulty: ancestor not found"
}

// DifficultyMismatchError indicates the header's difficulty differs from the
// consensus-computed value.
type DifficultyMismatchError struct {
	Expected *big.Int
	Actual   *big.Int
}

func (e *DifficultyMismatchError) Error() string {
	return fmt.Sprintf("difficulty: mix mismatch, expected %v, actual %v", e.Expected, e.Actual)
}

// TxsRootError indicates the block's transactions do not hash to the
// header's commitment.
type TxsRootError struct {
	Expected types.H256
	Actual   types.H256
}

func (e *TxsRootError) Error() string {
	return fmt.Sprintf("invalid transactions root: expected %s, actual %s", e.Expected, e.Actual)
}
