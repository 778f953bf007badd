package benchmark

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama-bench/ollama-bench/internal/shell"
)

// fakeGenerator scripts one response (or error) per model.
type fakeGenerator struct {
	responses map[string]string
	errs      map[string]error
	delay     time.Duration
	calls     []string
}

func (f *fakeGenerator) Generate(ctx context.Context, model, _ string) (string, error) {
	f.calls = append(f.calls, model)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("ollama: %w", shell.ErrTimeout)
		}
	}
	if err, ok := f.errs[model]; ok {
		return "", err
	}
	return f.responses[model], nil
}

func TestRun_Success(t *testing.T) {
	gen := &fakeGenerator{
		responses: map[string]string{
			"mistral:7b": "Machine learning is a branch of artificial intelligence that lets systems learn from data.",
		},
		delay: 10 * time.Millisecond,
	}
	runner := NewRunner(gen)

	res := runner.Run(context.Background(), "mistral:7b")

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "mistral:7b", res.Model)
	assert.Equal(t, 14, res.TokenCount)
	assert.Greater(t, res.TokensPerSec, 0.0)
	assert.Greater(t, res.TotalSeconds, 0.0)
	assert.Greater(t, res.FirstTokenMS, 0.0)
	assert.Empty(t, res.Error)
}

func TestRun_Timeout(t *testing.T) {
	gen := &fakeGenerator{delay: time.Minute}
	runner := NewRunner(gen, WithTimeout(20*time.Millisecond))

	res := runner.Run(context.Background(), "big:70b")

	assert.Equal(t, StatusTimeout, res.Status)
	assert.Equal(t, "timeout exceeded", res.Error)
	// Partial measurements are discarded on timeout.
	assert.Zero(t, res.TokenCount)
	assert.Zero(t, res.TokensPerSec)
	assert.Zero(t, res.TotalSeconds)
}

func TestRun_Error(t *testing.T) {
	gen := &fakeGenerator{errs: map[string]error{
		"broken:1b": errors.New(`ollama exited with code 1: model "broken:1b" not found`),
	}}
	runner := NewRunner(gen)

	res := runner.Run(context.Background(), "broken:1b")

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "not found")
	assert.Zero(t, res.TokensPerSec)
}

// Whatever the mix of outcomes, a sweep over N models yields exactly N
// results in enumeration order, and no failure aborts the loop.
func TestSweep_OneResultPerModel(t *testing.T) {
	gen := &fakeGenerator{
		responses: map[string]string{
			"llama2": "one two three",
			"phi3":   "four five",
		},
		errs: map[string]error{
			"broken": errors.New("boom"),
		},
	}
	runner := NewRunner(gen)

	models := []string{"llama2", "broken", "phi3"}
	results := runner.Sweep(context.Background(), models, nil)

	require.Len(t, results, len(models))
	assert.Equal(t, "llama2", results[0].Model)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, "broken", results[1].Model)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, "phi3", results[2].Model)
	assert.Equal(t, StatusSuccess, results[2].Status)

	// Strictly sequential, in enumeration order, no retries.
	assert.Equal(t, models, gen.calls)
}

func TestSweep_OnResultHook(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{"llama2": "hi", "phi3": "there"}}
	runner := NewRunner(gen)

	var seen []string
	runner.Sweep(context.Background(), []string{"llama2", "phi3"}, func(i int, res Result) {
		seen = append(seen, fmt.Sprintf("%d:%s", i, res.Model))
	})

	assert.Equal(t, []string{"0:llama2", "1:phi3"}, seen)
}

func TestSweep_Empty(t *testing.T) {
	runner := NewRunner(&fakeGenerator{})
	results := runner.Sweep(context.Background(), nil, nil)
	assert.Empty(t, results)
}

func TestDeriveMetrics(t *testing.T) {
	tests := []struct {
		name             string
		tokenCount       int
		elapsedSeconds   float64
		wantTokensPerSec float64
		wantFirstTokenMS float64
		wantTotalSeconds float64
	}{
		{
			name:             "41 word response in 7.59s",
			tokenCount:       41,
			elapsedSeconds:   7.59,
			wantTokensPerSec: 5.4,
			wantFirstTokenMS: 1138.5,
			wantTotalSeconds: 7.59,
		},
		{
			name:             "zero elapsed never divides",
			tokenCount:       100,
			elapsedSeconds:   0,
			wantTokensPerSec: 0,
			wantFirstTokenMS: 0,
			wantTotalSeconds: 0,
		},
		{
			name:             "zero tokens",
			tokenCount:       0,
			elapsedSeconds:   3.5,
			wantTokensPerSec: 0,
			wantFirstTokenMS: 525,
			wantTotalSeconds: 3.5,
		},
		{
			// Total rounds down to zero, so throughput must be zero too
			// rather than a huge number over the raw elapsed time.
			name:             "sub-5ms run keeps tps consistent with total",
			tokenCount:       70,
			elapsedSeconds:   0.004,
			wantTokensPerSec: 0,
			wantFirstTokenMS: 0.6,
			wantTotalSeconds: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			firstTokenMS, tokensPerSec, totalSeconds := deriveMetrics(tt.tokenCount, tt.elapsedSeconds)
			assert.InDelta(t, tt.wantTokensPerSec, tokensPerSec, 0.01)
			assert.InDelta(t, tt.wantFirstTokenMS, firstTokenMS, 0.01)
			assert.InDelta(t, tt.wantTotalSeconds, totalSeconds, 0.001)
		})
	}
}

func TestTokenCountIsWhitespaceSplit(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{
		"tiny:1b": "  Machine learning,\n\tsimply put, is pattern recognition.  ",
	}}
	runner := NewRunner(gen)

	res := runner.Run(context.Background(), "tiny:1b")

	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 7, res.TokenCount)
}
