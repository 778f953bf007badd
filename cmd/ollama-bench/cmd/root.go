package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ollama-bench/ollama-bench/internal/config"
	"github.com/ollama-bench/ollama-bench/internal/logging"
	"github.com/ollama-bench/ollama-bench/internal/ollama"
	"github.com/ollama-bench/ollama-bench/internal/shell"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ollama-bench",
	Short: "Benchmark locally installed Ollama models",
	Long: `ollama-bench sweeps every installed Ollama model with a fixed prompt
and reports throughput, latency, and GPU usage.

It can:
- Benchmark all installed models, or a chosen subset, one at a time
- Detect whether Ollama is actually running on the GPU
- Render a Markdown report with per-model results and rankings
- Keep a local history of runs and serve it over HTTP
- Benchmark a remote host over SSH and upload reports over SFTP`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
}

// loadConfig loads configuration, applies global flag overrides, and
// initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	return cfg, nil
}

// newRunner builds the shell runner for the configured target. The
// returned close function is a no-op for local runs.
func newRunner(cfg *config.Config, cmd *cobra.Command) (shell.Runner, func() error, error) {
	if cfg.Remote.Host == "" {
		return shell.NewLocal(), func() error { return nil }, nil
	}

	remote, err := shell.ParseRemote(cfg.Remote.Host)
	if err != nil {
		return nil, nil, err
	}

	key, err := os.ReadFile(cfg.Remote.KeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading SSH key: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(cmd.Context(), cfg.Remote.Timeout)
	defer cancel()

	sshRunner, err := shell.DialSSH(dialCtx, remote, key)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", cfg.Remote.Host, err)
	}
	return sshRunner, sshRunner.Close, nil
}

// newOllamaClient builds the CLI client over a runner.
func newOllamaClient(cfg *config.Config, runner shell.Runner) *ollama.Client {
	return ollama.NewClient(runner,
		ollama.WithBinary(cfg.Ollama.Binary),
		ollama.WithProbeTimeout(cfg.Ollama.ProbeTimeout))
}
