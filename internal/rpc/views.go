package rpc

import (
	"github.com/JiadongZhao/ckb/internal/merkle"
	"github.com/JiadongZhao/ckb/internal/types"
)

// TxStatus classifies where a transaction currently lives.
type TxStatus string

const (
	// StatusPending: in the pool, not yet proposed.
	StatusPending TxStatus = "pending"
	// StatusProposed: in the pool and proposed.
	StatusProposed TxStatus = "proposed"
	// StatusCommitted: on the main chain.
	StatusCommitted TxStatus = "committed"
)

// TransactionWithStatus is a transaction lookup result. BlockHash is set
// only for committed transactions.
type TransactionWithStatus struct {
	Transaction *types.Transaction `json:"transaction"`
	Status      TxStatus           `json:"status"`
	BlockHash   *types.H256        `json:"block_hash,omitempty"`
}

func withPending(tx *types.Transaction) *TransactionWithStatus {
	return &TransactionWithStatus{Transaction: tx, Status: StatusPending}
}

func withProposed(tx *types.Transaction) *TransactionWithStatus {
	return &TransactionWithStatus{Transaction: tx, Status: StatusProposed}
}

func withCommitted(tx *types.Transaction, blockHash types.H256) *TransactionWithStatus {
	return &TransactionWithStatus{Transaction: tx, Status: StatusCommitted, BlockHash: &blockHash}
}

// CellOutputWithOutPoint is one live cell found by a lock-hash scan.
type CellOutputWithOutPoint struct {
	OutPoint      types.OutPoint `json:"out_point"`
	BlockHash     types.H256     `json:"block_hash"`
	Capacity      types.Capacity `json:"capacity"`
	Lock          types.Script   `json:"lock"`
	Type          *types.Script  `json:"type"`
	OutputDataLen uint64         `json:"output_data_len"`
	Cellbase      bool           `json:"cellbase"`
}

// TransactionProof proves the inclusion of a set of transactions in one
// block without revealing witnesses.
type TransactionProof struct {
	BlockHash     types.H256    `json:"block_hash"`
	WitnessesRoot types.H256    `json:"witnesses_root"`
	Proof         *merkle.Proof `json:"proof"`
}
