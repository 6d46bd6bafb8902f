package chain

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JiadongZhao/ckb/internal/metrics"
	"github.com/JiadongZhao/ckb/internal/types"
)

// TipEvent announces a published snapshot.
type TipEvent struct {
	Number uint64
	Hash   types.H256
}

// Holder owns the current snapshot. Readers take a reference at call entry
// and hold it for the call's duration; the writer swaps in a fresh snapshot
// atomically. Readers never block the writer and never observe a torn view.
type Holder struct {
	current atomic.Pointer[Snapshot]
	logger  *zap.Logger

	subMu sync.Mutex
	subs  []chan TipEvent
}

// NewHolder publishes the initial snapshot.
func NewHolder(initial *Snapshot, logger *zap.Logger) *Holder {
	h := &Holder{logger: logger}
	h.current.Store(initial)
	metrics.TipHeight.Set(float64(initial.TipNumber()))
	return h
}

// Snapshot returns the current snapshot. The returned value stays valid and
// internally consistent even after later swaps.
func (h *Holder) Snapshot() *Snapshot {
	return h.current.Load()
}

// Swap publishes a new snapshot and notifies subscribers. Slow subscribers
// miss events rather than stalling the writer.
func (h *Holder) Swap(next *Snapshot) {
	h.current.Store(next)
	metrics.TipHeight.Set(float64(next.TipNumber()))
	metrics.SnapshotSwaps.Inc()
	h.logger.Debug("snapshot published",
		zap.Uint64("number", next.TipNumber()),
		zap.String("hash", next.TipHash().String()),
	)

	event := TipEvent{Number: next.TipNumber(), Hash: next.TipHash()}
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a channel that receives tip events from subsequent
// swaps.
func (h *Holder) Subscribe() <-chan TipEvent {
	ch := make(chan TipEvent, 8)
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subs = append(h.subs, ch)
	return ch
}
