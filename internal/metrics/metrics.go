// Package metrics exposes Prometheus instrumentation for query execution,
// index maintenance and storage operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// QueriesTotal counts planned queries by outcome.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperplane_queries_total",
			Help: "Total number of queries executed by outcome",
		},
		[]string{"outcome"},
	)

	// QueryDuration tracks end-to-end query execution latency.
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperplane_query_duration_seconds",
			Help:    "Query execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	// PlanCacheHits and PlanCacheMisses track planner cache effectiveness.
	PlanCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hyperplane_plan_cache_hits_total",
			Help: "Total number of plan cache hits",
		},
	)

	PlanCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hyperplane_plan_cache_misses_total",
			Help: "Total number of plan cache misses",
		},
	)

	// IndexRebuildDuration tracks VAF/PQ rebuild cost by index type.
	IndexRebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperplane_index_rebuild_duration_seconds",
			Help:    "Index rebuild duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index_type"},
	)

	// IndexState reports the current state of an index (0=CLEAN, 1=DIRTY, 2=STALE).
	IndexState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hyperplane_index_state",
			Help: "Current index state by index name",
		},
		[]string{"index", "entity"},
	)

	// StoreOpsTotal counts raw store get/put/delete calls.
	StoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperplane_store_ops_total",
			Help: "Total number of store operations by kind",
		},
		[]string{"op"},
	)

	// TuplesScanned counts tuples streamed out of scan operators.
	TuplesScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperplane_tuples_scanned_total",
			Help: "Total number of tuples streamed from scan operators",
		},
		[]string{"entity"},
	)
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		QueryDuration,
		PlanCacheHits,
		PlanCacheMisses,
		IndexRebuildDuration,
		IndexState,
		StoreOpsTotal,
		TuplesScanned,
	)
}

// IndexStateValue maps a CLEAN/DIRTY/STALE state string to its gauge value.
func IndexStateValue(state string) float64 {
	switch state {
	case "CLEAN":
		return 0
	case "DIRTY":
		return 1
	case "STALE":
		return 2
	default:
		return -1
	}
}
