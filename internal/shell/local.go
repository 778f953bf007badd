package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const (
	// DefaultKillGracePeriod is how long Run waits for I/O to drain after
	// the process has been signalled before giving up on it.
	DefaultKillGracePeriod = 5 * time.Second
)

// Local executes commands on the local machine via os/exec.
// Commands are placed in their own process group so that a timeout kill
// takes down the whole tree, not just the immediate child.
type Local struct {
	killGrace time.Duration
}

// LocalOption configures a Local runner.
type LocalOption func(*Local)

// WithKillGracePeriod overrides the post-kill I/O drain period.
func WithKillGracePeriod(d time.Duration) LocalOption {
	return func(l *Local) {
		l.killGrace = d
	}
}

// NewLocal creates a local command runner.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{killGrace: DefaultKillGracePeriod}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the command and waits for it to finish or for ctx to expire.
// On expiry the process group is killed and partial output is discarded.
func (l *Local) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = l.killGrace

	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}

	err := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		// The deadline fired: the group has been killed and whatever the
		// model produced so far is not a valid measurement.
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", "", fmt.Errorf("%s: %w", name, ErrTimeout)
		}
		return "", "", fmt.Errorf("%s: %w", name, ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return trimOutput(stdout.String()), trimOutput(stderr.String()), &ExitError{
				Name:   name,
				Code:   exitErr.ExitCode(),
				Stderr: trimOutput(stderr.String()),
			}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", fmt.Errorf("%s: %w", name, ErrNotInstalled)
		}
		return "", "", fmt.Errorf("%s: %w", name, err)
	}

	return trimOutput(stdout.String()), trimOutput(stderr.String()), nil
}

// LookPath reports whether name resolves to an executable in PATH.
func (l *Local) LookPath(_ context.Context, name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	return nil
}
