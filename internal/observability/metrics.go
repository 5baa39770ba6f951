// Package observability exposes the Prometheus metrics shared by the
// pipeline commands and the stats API.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var datasetLabel atomic.Value

func init() {
	datasetLabel.Store("none")
}

// SetDataset fixes the dataset label for the lifetime of the process. Each
// command works against one provider collection at a time.
func SetDataset(d string) {
	if d == "" {
		d = "none"
	}
	datasetLabel.Store(d)
}

func getDataset() string {
	if v := datasetLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "none"
}

var (
	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assign_records_total",
			Help: "Records seen by the assigner, by outcome.",
		},
		[]string{"outcome", "dataset"},
	)

	flushDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assign_flush_duration_seconds",
			Help:    "Duration of bulk update flushes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"dataset"},
	)

	flushItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assign_flush_items_total",
			Help: "Buffered assignments flushed, by per-item result.",
		},
		[]string{"result", "dataset"},
	)

	ingestDocsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_documents_total",
			Help: "Documents handled by the loaders, by outcome.",
		},
		[]string{"outcome", "dataset"},
	)

	mongoOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mongo_op_duration_seconds",
			Help:    "Duration of MongoDB operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"op", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	statsCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_cache_results_total",
			Help: "Stats response cache results by outcome.",
		},
		[]string{"outcome", "tier"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

// IncRecord counts one assigner outcome: matched, unmatched or skipped.
func IncRecord(outcome string) {
	recordsTotal.WithLabelValues(outcome, getDataset()).Inc()
}

func ObserveFlush(durationSeconds float64, applied, failed int) {
	d := getDataset()
	flushDurationSeconds.WithLabelValues(d).Observe(durationSeconds)
	flushItemsTotal.WithLabelValues("applied", d).Add(float64(applied))
	if failed > 0 {
		flushItemsTotal.WithLabelValues("failed", d).Add(float64(failed))
	}
}

// AddIngest counts loader outcomes: loaded, skipped or failed.
func AddIngest(outcome string, n int64) {
	if n <= 0 {
		return
	}
	ingestDocsTotal.WithLabelValues(outcome, getDataset()).Add(float64(n))
}

func ObserveMongoOp(op string, err error, durationSeconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	mongoOpDurationSeconds.WithLabelValues(op, status).Observe(durationSeconds)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// IncStatsCache counts a cache lookup outcome ("hit", "miss", "error") for
// one of the tiers ("memory", "redis").
func IncStatsCache(outcome, tier string) {
	statsCacheResults.WithLabelValues(outcome, tier).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
