//go:build unix

package shell

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRun_Success(t *testing.T) {
	runner := NewLocal()

	stdout, stderr, err := runner.Run(context.Background(), "echo", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", stdout)
	assert.Empty(t, stderr)
}

func TestLocalRun_NonZeroExit(t *testing.T) {
	runner := NewLocal()

	_, _, err := runner.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Stderr, "oops")
}

func TestLocalRun_Timeout(t *testing.T) {
	runner := NewLocal(WithKillGracePeriod(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	stdout, _, err := runner.Run(ctx, "sleep", "30")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "expected ErrTimeout, got %v", err)
	// Partial output must be discarded on timeout.
	assert.Empty(t, stdout)
	// The kill must happen at the deadline, not after sleep finishes.
	assert.Less(t, elapsed, 5*time.Second)
}

func TestLocalRun_MissingBinary(t *testing.T) {
	runner := NewLocal()

	_, _, err := runner.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInstalled))
}

func TestLocalLookPath(t *testing.T) {
	runner := NewLocal()

	assert.NoError(t, runner.LookPath(context.Background(), "echo"))
	assert.Error(t, runner.LookPath(context.Background(), "definitely-not-a-real-binary-xyz"))
}
