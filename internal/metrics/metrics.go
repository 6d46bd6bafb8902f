package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TipHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ckb",
		Name:      "tip_height",
		Help:      "Block number of the current snapshot tip.",
	})

	SnapshotSwaps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ckb",
		Name:      "snapshot_swaps_total",
		Help:      "Total snapshots published by the chain writer.",
	})

	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ckb",
		Name:      "chain_queries_total",
		Help:      "Chain queries served, by method.",
	}, []string{"method"})

	QueryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ckb",
		Name:      "chain_query_errors_total",
		Help:      "Chain query failures, by error code.",
	}, []string{"code"})

	HeadersVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ckb",
		Name:      "headers_verified_total",
		Help:      "Header verification outcomes.",
	}, []string{"result"})

	BlocksVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ckb",
		Name:      "blocks_verified_total",
		Help:      "Block verification outcomes.",
	}, []string{"result"})

	ProofsBuilt = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ckb",
		Name:      "transaction_proofs_built_total",
		Help:      "Transaction inclusion proofs constructed.",
	})

	ProofsVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ckb",
		Name:      "transaction_proofs_verified_total",
		Help:      "Transaction inclusion proofs verified.",
	})
)

func init() {
	prometheus.MustRegister(
		TipHeight,
		SnapshotSwaps,
		QueriesTotal,
		QueryErrors,
		HeadersVerified,
		BlocksVerified,
		ProofsBuilt,
		ProofsVerified,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
