package rpc

import (
	"errors"
	"sync"

	"github.com/JiadongZhao/ckb/internal/types"
)

// PoolTx is a transaction the pool knows about, with its proposal state.
type PoolTx struct {
	Proposed    bool
	Transaction *types.Transaction
}

// TxPool is the read surface the query service consults before the
// snapshot. A nil result with a nil error means the pool has no such
// transaction.
type TxPool interface {
	FetchTxForRPC(hash types.H256) (*PoolTx, error)
}

// FetchRequest asks the pool for one transaction.
type FetchRequest struct {
	Hash  types.H256
	Reply chan<- *PoolTx
}

// ErrPoolUnavailable is returned when the pool's request channel cannot
// accept a query.
var ErrPoolUnavailable = errors.New("tx pool request channel unavailable")

// ChannelPool reaches the transaction pool over its asynchronous request
// channel. A failed send is surfaced as an internal error by the service.
type ChannelPool struct {
	requests chan<- FetchRequest
}

// NewChannelPool wraps the pool's request channel.
func NewChannelPool(requests chan<- FetchRequest) *ChannelPool {
	return &ChannelPool{requests: requests}
}

// FetchTxForRPC implements TxPool.
func (p *ChannelPool) FetchTxForRPC(hash types.H256) (*PoolTx, error) {
	reply := make(chan *PoolTx, 1)
	select {
	case p.requests <- FetchRequest{Hash: hash, Reply: reply}:
	default:
		return nil, ErrPoolUnavailable
	}
	return <-reply, nil
}

// MockPool implements TxPool for testing.
type MockPool struct {
	mu sync.Mutex

	Txs map[types.H256]*PoolTx

	// Error override
	FetchErr error
}

// NewMockPool creates an empty mock pool.
func NewMockPool() *MockPool {
	return &MockPool{Txs: make(map[types.H256]*PoolTx)}
}

// Add puts a transaction into the mock pool.
func (m *MockPool) Add(tx *types.Transaction, proposed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Txs[tx.Hash()] = &PoolTx{Proposed: proposed, Transaction: tx}
}

// FetchTxForRPC implements TxPool.
func (m *MockPool) FetchTxForRPC(hash types.H256) (*PoolTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Txs[hash], nil
}
