package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and ingestion Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_requests_total",
			Help:      "Search pipeline runs by outcome",
		},
		[]string{"outcome"}, // ok, embed_error, backend_error, internal_error
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_results",
			Help:      "Number of matches returned per search",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		},
	)

	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of search pipeline stages",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"}, // embed, retrieve
	)

	BackendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "backend_up",
			Help:      "1 if the last health probe reached the vector backend",
		},
	)

	IndexedVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "indexed_vectors",
			Help:      "Vector count reported by the last health probe",
		},
	)

	IngestItemsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_items_upserted_total",
			Help:      "Items committed by ingestion runs",
		},
	)

	IngestBatchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_batch_failures_total",
			Help:      "Upsert batches that failed during ingestion",
		},
	)
)

var svcOnce sync.Once

// RegisterServiceMetrics registers the search, health and ingestion collectors. Safe to call more than once.
func RegisterServiceMetrics() {
	svcOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchResults,
			SearchStageDuration,
			BackendUp,
			IndexedVectors,
			IngestItemsTotal,
			IngestBatchFailuresTotal,
		)
	})
}
