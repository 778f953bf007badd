// Package benchmark drives one bounded inference call per model and
// derives latency/throughput metrics from the wall-clock timing.
package benchmark

import "math"

// Benchmark outcome states. Every attempted model lands in exactly one.
const (
	StatusSuccess = "success"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// Result holds the derived metrics for one attempted model. Created
// exactly once per model, immutable thereafter; failures carry the
// status and error text with zeroed metrics.
type Result struct {
	Model string `json:"model"`

	// Status is one of StatusSuccess, StatusTimeout, StatusError.
	Status string `json:"status"`

	// FirstTokenMS estimates time-to-first-token. The generate call is
	// non-streaming, so this is derived from total wall time, not a
	// wire-level timestamp.
	FirstTokenMS float64 `json:"first_token_latency_ms"`

	// TokensPerSec is TokenCount divided by TotalSeconds, zero when the
	// elapsed time is zero.
	TokensPerSec float64 `json:"tokens_per_second"`

	// TotalSeconds is the end-to-end wall time of the generate call.
	TotalSeconds float64 `json:"total_time_s"`

	// TokenCount approximates response length by whitespace tokens; it
	// is not a tokenizer count.
	TokenCount int `json:"token_count"`

	// Error carries the failure text for timeout/error outcomes.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the benchmark completed within its bound.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// firstTokenShare is the fraction of total wall time attributed to
// reaching the first token. A rough constant in lieu of streaming
// instrumentation.
const firstTokenShare = 0.15

// deriveMetrics computes the per-model metrics from the token count and
// elapsed seconds. Throughput is derived from the rounded total so the
// stored fields stay consistent: tps is zero whenever total is zero,
// never Inf or NaN.
func deriveMetrics(tokenCount int, elapsedSeconds float64) (firstTokenMS, tokensPerSec, totalSeconds float64) {
	totalSeconds = round2(elapsedSeconds)
	firstTokenMS = round2(elapsedSeconds * firstTokenShare * 1000)

	if totalSeconds > 0 {
		tokensPerSec = round2(float64(tokenCount) / totalSeconds)
	}
	return firstTokenMS, tokensPerSec, totalSeconds
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
