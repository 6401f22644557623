package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts write-pipeline runs by ledger method and terminal status
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docledger_pipeline_runs_total",
			Help: "Total number of write pipeline runs",
		},
		[]string{"method", "status"},
	)

	// PipelineDuration tracks end-to-end pipeline processing time
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docledger_pipeline_duration_seconds",
			Help:    "Write pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// StoredBytes tracks the size of content pinned to the store
	StoredBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docledger_stored_bytes",
			Help:    "Size of content uploaded to the content-addressed store",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// LedgerTransactions counts submitted ledger transactions by method and status
	LedgerTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docledger_ledger_transactions_total",
			Help: "Total number of ledger transactions submitted",
		},
		[]string{"method", "status"},
	)

	// GasUsed tracks gas used by confirmed ledger transactions
	GasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docledger_gas_used",
			Help:    "Gas used for ledger transactions",
			Buckets: []float64{21000, 50000, 100000, 200000, 300000, 500000},
		},
		[]string{"method"},
	)

	// AuthFailures counts rejected credentials by failure kind
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docledger_auth_failures_total",
			Help: "Total number of authentication failures",
		},
		[]string{"kind"},
	)

	// ErrorsTotal counts dependency errors by component and kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docledger_errors_total",
			Help: "Total number of dependency errors",
		},
		[]string{"component", "kind"},
	)
)
