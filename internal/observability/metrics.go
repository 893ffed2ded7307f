// Package observability exposes Prometheus metrics for the pipeline.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wms_upstream_latency_seconds",
			Help:    "Latency of upstream GetMap calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"backend"},
	)

	tileFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_fetch_total",
			Help: "Tile fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	tileRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_fetch_retries_total",
			Help: "Tile fetch attempts that were retried after a failure.",
		},
	)

	mosaicDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mosaic_duration_seconds",
			Help:    "Wall time to assemble and encode one mosaic.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	cacheOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Tile cache operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Duration of tile cache operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Tile cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidations_total",
			Help: "Layer invalidation events by op and result.",
		},
		[]string{"op", "result"},
	)

	invalidatedKeysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidated_keys_total",
			Help: "Cached tile keys purged by invalidation events.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(backend string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(backend).Observe(durationSeconds)
}

func IncTileFetch(outcome string) {
	tileFetchTotal.WithLabelValues(outcome).Inc()
}

func IncTileRetry() {
	tileRetriesTotal.Inc()
}

func ObserveMosaic(durationSeconds float64) {
	mosaicDurationSeconds.Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpTotal.WithLabelValues(op, result).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func ObserveInvalidation(op string, err error, purged int) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	invalidationsTotal.WithLabelValues(op, result).Inc()
	if purged > 0 {
		invalidatedKeysTotal.Add(float64(purged))
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
