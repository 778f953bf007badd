// Package ollama wraps the Ollama CLI. All interaction with the runtime
// goes through its command-line surface (ls, run, ps) so the harness can
// benchmark any host the shell.Runner can reach.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ollama-bench/ollama-bench/internal/shell"
)

const (
	// DefaultBinary is the runtime binary name resolved through PATH.
	DefaultBinary = "ollama"

	// DefaultProbeTimeout bounds the cheap informational commands
	// (ls, ps, --version); generate calls carry their own deadline.
	DefaultProbeTimeout = 10 * time.Second
)

// ErrUnavailable indicates the runtime binary is missing or not responding.
// Model enumeration failing with this is fatal to a benchmark run.
var ErrUnavailable = errors.New("ollama is not available")

// Client drives the Ollama CLI through a shell.Runner.
type Client struct {
	runner       shell.Runner
	binary       string
	probeTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the runtime binary name.
func WithBinary(bin string) Option {
	return func(c *Client) {
		c.binary = bin
	}
}

// WithProbeTimeout overrides the timeout for informational commands.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.probeTimeout = d
	}
}

// NewClient creates a client that talks to the runtime via runner.
func NewClient(runner shell.Runner, opts ...Option) *Client {
	c := &Client{
		runner:       runner,
		binary:       DefaultBinary,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListModels returns the identifiers of all installed models, in the
// order the runtime reports them.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	stdout, _, err := c.runner.Run(ctx, c.binary, "ls")
	if err != nil {
		return nil, fmt.Errorf("listing models: %w: %v", ErrUnavailable, err)
	}

	lines := strings.Split(stdout, "\n")
	if len(lines) <= 1 {
		return nil, nil
	}

	var models []string
	for _, line := range lines[1:] { // skip the NAME ID SIZE MODIFIED header
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		models = append(models, fields[0])
	}
	return models, nil
}

// Generate runs one blocking, non-streaming inference and returns the
// full response text. The caller bounds it with a context deadline; on
// expiry the underlying process group is killed and shell.ErrTimeout is
// returned.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("model cannot be empty")
	}

	stdout, _, err := c.runner.Run(ctx, c.binary, "run", model, prompt)
	if err != nil {
		return "", err
	}
	return stdout, nil
}

// PS returns the raw process table of currently loaded models. The text
// is column-aligned rather than delimited; parsing lives in the gpu
// package.
func (c *Client) PS(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	stdout, _, err := c.runner.Run(ctx, c.binary, "ps")
	if err != nil {
		return "", fmt.Errorf("querying process table: %w", err)
	}
	return stdout, nil
}

// Version returns the runtime version string, e.g. "0.5.7".
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	stdout, _, err := c.runner.Run(ctx, c.binary, "--version")
	if err != nil {
		return "", fmt.Errorf("querying version: %w", err)
	}

	// Typical output: "ollama version is 0.5.7"
	fields := strings.Fields(stdout)
	if len(fields) > 0 {
		return fields[len(fields)-1], nil
	}
	return stdout, nil
}

// Available reports whether the runtime binary can be found at all.
func (c *Client) Available(ctx context.Context) error {
	if err := c.runner.LookPath(ctx, c.binary); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
