// Package metrics declares the Prometheus collectors for stock reconciliation
// and the pricing ledger. They register on the default registry and are served
// at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StockRecomputes counts recompute runs by outcome
	// (applied, skipped_override, skipped_missing, error).
	StockRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_recompute_total",
		Help: "Stock recomputes from batches by outcome",
	}, []string{"outcome"})

	// TriggerFailures counts post-write recomputes that failed and were
	// swallowed so the batch write could still succeed.
	TriggerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_trigger_failures_total",
		Help: "Batch write triggers whose recompute failed",
	})

	// RecomputeDuration tracks the time taken for one product recompute.
	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_recompute_duration_seconds",
		Help:    "Time taken to recompute one product from its batches",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	// InconsistentProducts is set by the last consistency audit.
	InconsistentProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stock_inconsistent_products",
		Help: "Products reported inconsistent by the last audit",
	})

	// PriceUpdates counts ledger entries by price type and update source.
	PriceUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_updates_total",
		Help: "Price ledger entries appended",
	}, []string{"price_type", "source"})

	// ResyncJobs counts queued resync jobs by result (ok, retried, dlq).
	ResyncJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_resync_jobs_total",
		Help: "Resync jobs processed by the worker pool",
	}, []string{"result"})
)
