package verification

import (
	"github.com/JiadongZhao/ckb/internal/merkle"
	"github.com/JiadongZhao/ckb/internal/metrics"
	"github.com/JiadongZhao/ckb/internal/types"
)

// BlockVerifier checks a full block: the contained header, then the
// transaction commitments.
type BlockVerifier struct {
	headers *HeaderVerifier
}

// NewBlockVerifier builds a block verifier on top of a header verifier.
func NewBlockVerifier(headers *HeaderVerifier) *BlockVerifier {
	return &BlockVerifier{headers: headers}
}

// Verify runs the header verifier for the block's header, then the
// commitment checks. The resolver must resolve the block's own header.
func (v *BlockVerifier) Verify(block *types.Block, resolver HeaderResolver) error {
	if err := v.headers.Verify(resolver); err != nil {
		metrics.BlocksVerified.WithLabelValues("rejected").Inc()
		return err
	}
	if err := CheckTxsRoot(block); err != nil {
		metrics.BlocksVerified.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.BlocksVerified.WithLabelValues("ok").Inc()
	return nil
}

// CheckTxsRoot verifies both commitment levels: the CBMT root over the
// transaction hashes against txs_commit, and the combined pair hash of the
// transactions root and the witnesses root against the header's
// transactions root. The cellbase occupies leaf 0 like any other leaf.
func CheckTxsRoot(block *types.Block) error {
	txsRoot := merkle.Root(block.TxHashes())
	if txsRoot != block.Header.TxsCommit {
		return &TxsRootError{Expected: block.Header.TxsCommit, Actual: txsRoot}
	}

	witnessesRoot := merkle.Root(block.WitnessHashes())
	combined := merkle.CombinedRoot(txsRoot, witnessesRoot)
	if combined != block.Header.TransactionsRoot() {
		return &TxsRootError{Expected: block.Header.TransactionsRoot(), Actual: combined}
	}
	return nil
}
