// Package rpc implements the read-side chain query surface. Every query
// resolves against a single snapshot captured at entry, so no query
// observes a mid-flight tip change.
package rpc

import (
	"sort"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JiadongZhao/ckb/internal/chain"
	"github.com/JiadongZhao/ckb/internal/merkle"
	"github.com/JiadongZhao/ckb/internal/metrics"
	"github.com/JiadongZhao/ckb/internal/reward"
	"github.com/JiadongZhao/ckb/internal/types"
)

// PageSize bounds the block range a single lock-hash scan may cover.
const PageSize uint64 = 100

// Service answers chain queries against the holder's current snapshot.
type Service struct {
	holder *chain.Holder
	pool   TxPool
	// scanLimiter bounds how often expensive cell scans run; nil means
	// unlimited.
	scanLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewService builds the query service. limiter may be nil.
func NewService(holder *chain.Holder, pool TxPool, limiter *rate.Limiter, logger *zap.Logger) *Service {
	return &Service{holder: holder, pool: pool, scanLimiter: limiter, logger: logger}
}

// GetBlock returns the block iff its hash is on the main chain.
func (s *Service) GetBlock(hash types.H256) (*types.Block, error) {
	metrics.QueriesTotal.WithLabelValues("get_block").Inc()
	snapshot := s.holder.Snapshot()
	if !snapshot.IsMainChain(hash) {
		return nil, nil
	}
	block, _ := snapshot.GetBlock(hash)
	return block, nil
}

// GetBlockByNumber resolves the number through the main-chain index. An
// indexed hash whose block is missing is detected corruption.
func (s *Service) GetBlockByNumber(number uint64) (*types.Block, error) {
	metrics.QueriesTotal.WithLabelValues("get_block_by_number").Inc()
	snapshot := s.holder.Snapshot()

	hash, ok := snapshot.GetBlockHash(number)
	if !ok {
		return nil, nil
	}
	block, ok := snapshot.GetBlock(hash)
	if !ok {
		return nil, s.inconsistentIndex(number, hash)
	}
	return block, nil
}

// GetHeader returns the header iff its hash is on the main chain.
func (s *Service) GetHeader(hash types.H256) (*types.Header, error) {
	metrics.QueriesTotal.WithLabelValues("get_header").Inc()
	snapshot := s.holder.Snapshot()
	if !snapshot.IsMainChain(hash) {
		return nil, nil
	}
	header, _ := snapshot.GetBlockHeader(hash)
	return header, nil
}

// GetHeaderByNumber resolves the number through the main-chain index.
func (s *Service) GetHeaderByNumber(number uint64) (*types.Header, error) {
	metrics.QueriesTotal.WithLabelValues("get_header_by_number").Inc()
	snapshot := s.holder.Snapshot()

	hash, ok := snapshot.GetBlockHash(number)
	if !ok {
		return nil, nil
	}
	header, ok := snapshot.GetBlockHeader(hash)
	if !ok {
		return nil, s.inconsistentIndex(number, hash)
	}
	return header, nil
}

// GetTransaction reports where a transaction lives. The pool is consulted
// first so a freshly pending or proposed status wins over a stale
// committed view.
func (s *Service) GetTransaction(hash types.H256) (*TransactionWithStatus, error) {
	metrics.QueriesTotal.WithLabelValues("get_transaction").Inc()

	poolTx, err := s.pool.FetchTxForRPC(hash)
	if err != nil {
		s.logger.Error("tx pool fetch failed", zap.String("hash", hash.String()), zap.Error(err))
		metrics.QueryErrors.WithLabelValues("internal").Inc()
		return nil, internalError(err)
	}
	if poolTx != nil {
		if poolTx.Proposed {
			return withProposed(poolTx.Transaction), nil
		}
		return withPending(poolTx.Transaction), nil
	}

	tx, blockHash, ok := s.holder.Snapshot().GetTransaction(hash)
	if !ok {
		return nil, nil
	}
	return withCommitted(tx, blockHash), nil
}

// GetBlockHash resolves a main-chain number to its block hash.
func (s *Service) GetBlockHash(number uint64) (types.H256, bool) {
	metrics.QueriesTotal.WithLabelValues("get_block_hash").Inc()
	return s.holder.Snapshot().GetBlockHash(number)
}

// GetTipHeader returns the current tip header.
func (s *Service) GetTipHeader() *types.Header {
	metrics.QueriesTotal.WithLabelValues("get_tip_header").Inc()
	return s.holder.Snapshot().TipHeader()
}

// GetTipBlockNumber returns the current tip number.
func (s *Service) GetTipBlockNumber() uint64 {
	metrics.QueriesTotal.WithLabelValues("get_tip_block_number").Inc()
	return s.holder.Snapshot().TipNumber()
}

// GetCurrentEpoch returns the tip's epoch parameters.
func (s *Service) GetCurrentEpoch() *types.EpochExt {
	metrics.QueriesTotal.WithLabelValues("get_current_epoch").Inc()
	return s.holder.Snapshot().EpochExt()
}

// GetEpochByNumber returns the parameters of the given epoch, if known.
func (s *Service) GetEpochByNumber(number uint64) (*types.EpochExt, bool) {
	metrics.QueriesTotal.WithLabelValues("get_epoch_by_number").Inc()
	snapshot := s.holder.Snapshot()
	index, ok := snapshot.GetEpochIndex(number)
	if !ok {
		return nil, false
	}
	return snapshot.GetEpochExt(index)
}

// GetLiveCell resolves an out-point to its liveness status.
func (s *Service) GetLiveCell(op types.OutPoint, withData bool) types.CellWithStatus {
	metrics.QueriesTotal.WithLabelValues("get_live_cell").Inc()
	return s.holder.Snapshot().Cell(op, withData)
}

// GetCellsByLockHash scans the main-chain blocks in [from, to] for live
// outputs locked by the given script hash. The range is bounded by
// PageSize; a gap past the tip ends the scan without error.
func (s *Service) GetCellsByLockHash(lockHash types.H256, from, to uint64) ([]CellOutputWithOutPoint, error) {
	metrics.QueriesTotal.WithLabelValues("get_cells_by_lock_hash").Inc()

	if from > to {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Expected from <= to in params, got from=%d to=%d", from, to)
	}
	if to-from > PageSize {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Expected to - from <= %d in params, got %d", PageSize, to-from)
	}
	if s.scanLimiter != nil && !s.scanLimiter.Allow() {
		metrics.QueryErrors.WithLabelValues("internal").Inc()
		return nil, &Error{Code: CodeInternalError, Message: "cell scan rate limit exceeded"}
	}

	snapshot := s.holder.Snapshot()
	var result []CellOutputWithOutPoint
	for number := from; number <= to; number++ {
		hash, ok := snapshot.GetBlockHash(number)
		if !ok {
			break
		}
		block, ok := snapshot.GetBlock(hash)
		if !ok {
			return nil, s.inconsistentIndex(number, hash)
		}
		for _, transaction := range block.Transactions {
			meta, ok := snapshot.GetTxMeta(transaction.Hash())
			if !ok {
				continue
			}
			for i := range transaction.Outputs {
				output := &transaction.Outputs[i]
				dead, inRange := meta.IsDead(uint32(i))
				if !inRange || dead || output.Lock.Hash() != lockHash {
					continue
				}
				result = append(result, CellOutputWithOutPoint{
					OutPoint:      types.OutPoint{TxHash: transaction.Hash(), Index: uint32(i)},
					BlockHash:     hash,
					Capacity:      output.Capacity,
					Lock:          output.Lock,
					Type:          output.Type,
					OutputDataLen: uint64(len(output.Data)),
					Cellbase:      meta.Cellbase,
				})
			}
		}
	}
	return result, nil
}

// GetCellbaseOutputCapacityDetails returns the reward the given block's
// cellbase settles: the reward of the block finalized by it. Nil until the
// parent has reached the finalization delay.
func (s *Service) GetCellbaseOutputCapacityDetails(hash types.H256) (*types.BlockReward, error) {
	metrics.QueriesTotal.WithLabelValues("get_cellbase_output_capacity_details").Inc()
	snapshot := s.holder.Snapshot()

	if !snapshot.IsMainChain(hash) {
		return nil, nil
	}
	header, ok := snapshot.GetBlockHeader(hash)
	if !ok {
		return nil, nil
	}
	parent, ok := snapshot.GetBlockHeader(header.ParentHash)
	if !ok {
		return nil, nil
	}
	if parent.Number < snapshot.Consensus().FinalizationDelayLength {
		return nil, nil
	}
	_, blockReward, err := reward.NewCalculator(snapshot.Consensus(), snapshot).BlockRewardToFinalize(parent)
	if err != nil {
		return nil, nil
	}
	return blockReward, nil
}

// GetBlockEconomicState assembles the finalized economic summary of a
// block. Nil for genesis, unknown blocks, and blocks the chain has not yet
// finalized.
func (s *Service) GetBlockEconomicState(hash types.H256) (*types.BlockEconomicState, error) {
	metrics.QueriesTotal.WithLabelValues("get_block_economic_state").Inc()
	snapshot := s.holder.Snapshot()

	number, ok := snapshot.GetBlockNumber(hash)
	if !ok {
		return nil, nil
	}
	delay := snapshot.Consensus().FinalizationDelayLength
	finalizedAtNumber := number + delay
	if number == 0 || snapshot.TipNumber() < finalizedAtNumber {
		return nil, nil
	}
	finalizedAt, ok := snapshot.GetBlockHash(finalizedAtNumber)
	if !ok {
		return nil, nil
	}

	epoch, ok := snapshot.GetEpochForBlock(hash)
	if !ok {
		return nil, nil
	}
	primary, err := epoch.BlockReward(number)
	if err != nil {
		return nil, nil
	}
	secondary, err := epoch.SecondaryBlockIssuance(number, snapshot.Consensus().SecondaryEpochReward)
	if err != nil {
		return nil, nil
	}

	ext, ok := snapshot.GetBlockExt(hash)
	if !ok {
		return nil, nil
	}
	txsFee, err := types.SumCapacities(ext.TxsFees)
	if err != nil {
		return nil, nil
	}

	header, ok := snapshot.GetBlockHeader(hash)
	if !ok {
		return nil, nil
	}
	_, minerReward, err := reward.NewCalculator(snapshot.Consensus(), snapshot).BlockRewardForTarget(header)
	if err != nil {
		return nil, nil
	}

	return &types.BlockEconomicState{
		Issuance:    types.BlockIssuance{Primary: primary, Secondary: secondary},
		MinerReward: *minerReward,
		TxsFee:      txsFee,
		FinalizedAt: finalizedAt,
	}, nil
}

// GetTransactionProof builds an inclusion proof for the given committed
// transactions, which must all live in one block. A caller-specified block
// hash must match the resolved one.
func (s *Service) GetTransactionProof(txHashes []types.H256, blockHash *types.H256) (*TransactionProof, error) {
	metrics.QueriesTotal.WithLabelValues("get_transaction_proof").Inc()

	if len(txHashes) == 0 {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Empty transaction hashes")
	}
	snapshot := s.holder.Snapshot()

	var retrieved *types.H256
	seen := make(map[uint32]struct{}, len(txHashes))
	indices := make([]uint32, 0, len(txHashes))
	for _, txHash := range txHashes {
		info, ok := snapshot.GetTransactionInfo(txHash)
		if !ok {
			metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
			return nil, invalidParams("Transaction %s not yet in block", txHash)
		}
		if retrieved == nil {
			h := info.BlockHash
			retrieved = &h
		} else if *retrieved != info.BlockHash {
			metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
			return nil, invalidParams("Not all transactions found in retrieved block")
		}
		if _, dup := seen[info.Index]; dup {
			metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
			return nil, invalidParams("Duplicated tx_hash %s", txHash)
		}
		seen[info.Index] = struct{}{}
		indices = append(indices, info.Index)
	}

	if blockHash != nil && *retrieved != *blockHash {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Not all transactions found in specified block")
	}

	block, ok := snapshot.GetBlock(*retrieved)
	if !ok {
		s.logger.Error("transaction info names a block missing from storage",
			zap.String("hash", retrieved.String()))
		metrics.QueryErrors.WithLabelValues("chain_index_is_inconsistent").Inc()
		return nil, chainIndexIsInconsistent(
			"Chain TransactionInfo says block %s existing, but that block is not in the database", retrieved)
	}

	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	proof, err := merkle.BuildProof(block.TxHashes(), indices)
	if err != nil {
		// Indices were resolved and deduplicated above; a failure here is
		// a broken index.
		s.logger.Error("transaction info does not match block contents",
			zap.String("hash", retrieved.String()), zap.Error(err))
		metrics.QueryErrors.WithLabelValues("chain_index_is_inconsistent").Inc()
		return nil, chainIndexIsInconsistent("building proof for block %s: %v", retrieved, err)
	}

	metrics.ProofsBuilt.Inc()
	return &TransactionProof{
		BlockHash:     block.Hash(),
		WitnessesRoot: merkle.Root(block.WitnessHashes()),
		Proof:         proof,
	}, nil
}

// VerifyTransactionProof checks a proof against the chain and returns the
// proved transaction hashes, in the order the proof's indices name them.
func (s *Service) VerifyTransactionProof(proof *TransactionProof) ([]types.H256, error) {
	metrics.QueriesTotal.WithLabelValues("verify_transaction_proof").Inc()
	snapshot := s.holder.Snapshot()

	block, ok := snapshot.GetBlock(proof.BlockHash)
	if !ok {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Cannot find block %s", proof.BlockHash)
	}

	leaves, err := merkle.RetrieveLeaves(block.TxHashes(), proof.Proof)
	if err != nil {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Invalid transaction proof")
	}
	rawTransactionsRoot, err := proof.Proof.Root(leaves)
	if err != nil {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Invalid transaction proof")
	}
	combined := merkle.CombinedRoot(rawTransactionsRoot, proof.WitnessesRoot)
	if combined != block.Header.TransactionsRoot() {
		metrics.QueryErrors.WithLabelValues("invalid_params").Inc()
		return nil, invalidParams("Invalid transaction proof")
	}

	metrics.ProofsVerified.Inc()
	return leaves, nil
}

func (s *Service) inconsistentIndex(number uint64, hash types.H256) *Error {
	s.logger.Error("chain index names a block missing from storage",
		zap.Uint64("number", number),
		zap.String("hash", hash.String()),
	)
	metrics.QueryErrors.WithLabelValues("chain_index_is_inconsistent").Inc()
	return chainIndexIsInconsistent(
		"Chain Index says block #%d is %s, but that block is not in the database", number, hash)
}
