// Package shell runs external commands on the benchmark host.
// The benchmark harness drives everything (ollama, nvidia-smi, sysctl)
// through the Runner interface so the same code path works against the
// local machine and a remote host reached over SSH.
package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout indicates a command was killed because its deadline expired.
// Callers use errors.Is to distinguish a timeout from an execution failure.
var ErrTimeout = errors.New("command timed out")

// ErrNotInstalled indicates the requested binary is not present on the host.
var ErrNotInstalled = errors.New("command not installed")

// Runner executes a single command and returns its trimmed stdout/stderr.
// Implementations must kill the command (and any children it spawned) when
// the context expires, and must not leave orphaned processes behind.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

	// LookPath reports whether the named binary is available on the host.
	LookPath(ctx context.Context, name string) error
}

// ExitError describes a command that ran but exited non-zero.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

func trimOutput(s string) string {
	return strings.TrimSpace(s)
}
