// Package metrics provides Prometheus instrumentation for the store,
// search, and hardening components (§4.2, §4.5, §4.8).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOpDuration tracks how long embedded-store operations take.
	// Labels: op (upsert, search, get, list, delete)
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memoryd",
			Subsystem: "store",
			Name:      "op_duration_seconds",
			Help:      "Duration of embedded store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// StoreOpTotal counts embedded-store operations.
	// Labels: op, result (ok, error)
	StoreOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoryd",
			Subsystem: "store",
			Name:      "ops_total",
			Help:      "Total number of embedded store operations",
		},
		[]string{"op", "result"},
	)

	// SearchQueriesTotal counts search queries by mode actually used.
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoryd",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of search queries by method used",
		},
		[]string{"method"},
	)

	// SearchVectorFallbackTotal counts hybrid/vector queries that fell back
	// to lexical-only after a vector backend error.
	SearchVectorFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memoryd",
			Subsystem: "search",
			Name:      "vector_fallback_total",
			Help:      "Total number of searches that fell back to lexical after a vector error",
		},
	)

	// PurgeEntriesByTypeTotal counts entries purged, by entry type.
	PurgeEntriesByTypeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoryd",
			Subsystem: "hardening",
			Name:      "purged_entries_by_type_total",
			Help:      "Total number of memory entries purged by retention policy, by entry type",
		},
		[]string{"type"},
	)

	// PurgeEntriesBySensitivityTotal counts entries purged, by sensitivity.
	PurgeEntriesBySensitivityTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoryd",
			Subsystem: "hardening",
			Name:      "purged_entries_by_sensitivity_total",
			Help:      "Total number of memory entries purged by retention policy, by sensitivity level",
		},
		[]string{"sensitivity"},
	)

	// PurgeRunsTotal counts purge scheduler runs.
	// Labels: result (ok, error)
	PurgeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoryd",
			Subsystem: "hardening",
			Name:      "purge_runs_total",
			Help:      "Total number of purge scheduler runs",
		},
		[]string{"result"},
	)

	// RedactionFindingsTotal counts secrets found by C1's scanner, by kind.
	RedactionFindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoryd",
			Subsystem: "redact",
			Name:      "findings_total",
			Help:      "Total number of secret findings redacted from memory content",
		},
		[]string{"kind"},
	)
)

// ObserveStoreOp records the outcome and duration of a single store
// operation. Call with defer and a start time captured at the top of the
// calling method.
func ObserveStoreOp(op string, start time.Time, err error) {
	StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOpTotal.WithLabelValues(op, result).Inc()
}

// ObservePurgeRun records one purge scheduler run's outcome and per-entry
// counters.
func ObservePurgeRun(purgedByType, purgedBySensitivity map[string]int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PurgeRunsTotal.WithLabelValues(result).Inc()
	for t, n := range purgedByType {
		PurgeEntriesByTypeTotal.WithLabelValues(t).Add(float64(n))
	}
	for s, n := range purgedBySensitivity {
		PurgeEntriesBySensitivityTotal.WithLabelValues(s).Add(float64(n))
	}
}
