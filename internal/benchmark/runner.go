package benchmark

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ollama-bench/ollama-bench/internal/metrics"
	"github.com/ollama-bench/ollama-bench/internal/shell"
)

const (
	// DefaultTimeout bounds a single model's generate call.
	DefaultTimeout = 300 * time.Second

	// DefaultPrompt is the fixed prompt used for every model so results
	// are comparable within a sweep.
	DefaultPrompt = "Explain the concept of machine learning in 50 words."
)

// Generator runs one blocking inference and returns the full response
// text. *ollama.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Runner benchmarks models one at a time. Sequential execution is
// deliberate: concurrent models would share the accelerator and corrupt
// each other's measurements.
type Runner struct {
	gen     Generator
	prompt  string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPrompt overrides the benchmark prompt.
func WithPrompt(prompt string) Option {
	return func(r *Runner) {
		r.prompt = prompt
	}
}

// WithTimeout overrides the per-model timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithPacing inserts a minimum interval between successive model runs so
// accelerator thermals and memory settle between measurements. Zero
// disables pacing.
func WithPacing(interval time.Duration) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a benchmark runner.
func NewRunner(gen Generator, opts ...Option) *Runner {
	r := &Runner{
		gen:     gen,
		prompt:  DefaultPrompt,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prompt returns the prompt used for every model in the sweep.
func (r *Runner) Prompt() string {
	return r.prompt
}

// Run benchmarks a single model. It always returns a Result; failures
// are folded into the status and error fields, never propagated.
func (r *Runner) Run(ctx context.Context, model string) Result {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	response, err := r.gen.Generate(runCtx, model, r.prompt)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, shell.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return Result{
				Model:  model,
				Status: StatusTimeout,
				Error:  "timeout exceeded",
			}
		}
		return Result{
			Model:  model,
			Status: StatusError,
			Error:  err.Error(),
		}
	}

	tokenCount := len(strings.Fields(response))
	firstTokenMS, tokensPerSec, totalSeconds := deriveMetrics(tokenCount, elapsed.Seconds())

	return Result{
		Model:        model,
		Status:       StatusSuccess,
		FirstTokenMS: firstTokenMS,
		TokensPerSec: tokensPerSec,
		TotalSeconds: totalSeconds,
		TokenCount:   tokenCount,
	}
}

// Sweep benchmarks every model in enumeration order and returns one
// Result per model regardless of individual outcomes. There are no
// retries: the point is to surface slow or broken models, not to mask
// them. onResult, when non-nil, is invoked after each model completes.
func (r *Runner) Sweep(ctx context.Context, models []string, onResult func(i int, res Result)) []Result {
	results := make([]Result, 0, len(models))

	for i, model := range models {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				r.logger.Warn("pacing interrupted", slog.String("error", err.Error()))
			}
		}

		r.logger.Info("benchmarking model",
			slog.String("model", model),
			slog.Int("position", i+1),
			slog.Int("total", len(models)))

		start := time.Now()
		res := r.Run(ctx, model)
		metrics.RecordBenchmark(model, res.Status, time.Since(start), res.TokensPerSec)

		if res.Succeeded() {
			r.logger.Info("benchmark complete",
				slog.String("model", model),
				slog.Float64("tokens_per_second", res.TokensPerSec),
				slog.Float64("total_time_s", res.TotalSeconds))
		} else {
			r.logger.Warn("benchmark failed",
				slog.String("model", model),
				slog.String("status", res.Status),
				slog.String("error", res.Error))
		}

		results = append(results, res)
		if onResult != nil {
			onResult(i, res)
		}
	}

	return results
}
