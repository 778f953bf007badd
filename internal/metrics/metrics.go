// Package metrics defines the Prometheus instruments for the harness.
// They are populated during a sweep and exposed by the serve command's
// /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Benchmark sweep metrics
var (
	// BenchmarkDuration tracks the wall time of individual model benchmarks
	BenchmarkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_benchmark_duration_seconds",
			Help:    "Wall-clock duration of individual model benchmarks by model and status",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
		[]string{"model", "status"},
	)

	// BenchmarksTotal counts benchmark attempts by outcome
	BenchmarksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_benchmarks_total",
			Help: "Total number of model benchmarks by status",
		},
		[]string{"status"},
	)

	// TokensPerSecond records the most recent throughput per model
	TokensPerSecond = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_benchmark_tokens_per_second",
			Help: "Most recent measured throughput per model",
		},
		[]string{"model"},
	)
)

// HTTP request metrics for the serve command
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordBenchmark records the outcome of one model benchmark.
func RecordBenchmark(model, status string, duration time.Duration, tokensPerSec float64) {
	BenchmarkDuration.WithLabelValues(model, status).Observe(duration.Seconds())
	BenchmarksTotal.WithLabelValues(status).Inc()
	if tokensPerSec > 0 {
		TokensPerSecond.WithLabelValues(model).Set(tokensPerSec)
	}
}

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
