package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dsviz_queries_total",
			Help: "Total number of executed dataset queries.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dsviz_query_duration_seconds",
			Help:    "Dataset query execution latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dsviz_query_rows_returned",
			Help:    "Rows returned per dataset query after limit enforcement.",
			Buckets: []float64{1, 10, 100, 500, 1000, 2500, 5000},
		},
	)
	queryTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dsviz_query_truncations_total",
			Help: "Total number of query responses truncated by the row limit.",
		},
	)
	countDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dsviz_count_duration_seconds",
			Help:    "Full-scan row count latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)
	detectCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dsviz_detect_cache_hits_total",
			Help: "Total number of format detection cache hits.",
		},
	)
	detectCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dsviz_detect_cache_misses_total",
			Help: "Total number of format detection cache misses.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		queryDurationSeconds,
		queryRowsReturned,
		queryTruncationsTotal,
		countDurationSeconds,
		detectCacheHitsTotal,
		detectCacheMissesTotal,
	)
}

func ObserveQuery(elapsed time.Duration, rows int, truncated bool) {
	queriesTotal.Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
	queryRowsReturned.Observe(float64(rows))
	if truncated {
		queryTruncationsTotal.Inc()
	}
}

func ObserveCount(elapsed time.Duration) {
	countDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveDetectCache(hit bool) {
	if hit {
		detectCacheHitsTotal.Inc()
	} else {
		detectCacheMissesTotal.Inc()
	}
}
