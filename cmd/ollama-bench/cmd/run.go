package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ollama-bench/ollama-bench/internal/benchmark"
	"github.com/ollama-bench/ollama-bench/internal/config"
	"github.com/ollama-bench/ollama-bench/internal/filetransfer"
	"github.com/ollama-bench/ollama-bench/internal/gpu"
	"github.com/ollama-bench/ollama-bench/internal/logging"
	"github.com/ollama-bench/ollama-bench/internal/report"
	"github.com/ollama-bench/ollama-bench/internal/storage"
	"github.com/ollama-bench/ollama-bench/internal/sysinfo"
)

var (
	runModels  []string
	runPrompt  string
	runTimeout time.Duration
	runPacing  time.Duration
	runOutput  string
	runRemote  string
	runSSHKey  string
	runUpload  string
	runNoStore bool
)

var runCmd = &cobra.Command{
	Use:   "run [models...]",
	Short: "Benchmark installed models and write a Markdown report",
	Long: `Run benchmarks every installed model (or the given subset) with a
fixed prompt, one model at a time, and writes a Markdown report.

Models can be given as positional arguments or with repeated -m flags.
Individual model failures and timeouts are recorded in the report and
never abort the sweep. The command fails only when models cannot be
enumerated or the report cannot be written.`,
	Args: cobra.ArbitraryArgs,
	RunE: runBenchmarks,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runModels, "model", "m", nil, "Model to benchmark; repeatable (default: all installed)")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "Benchmark prompt")
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 0, "Per-model timeout")
	runCmd.Flags().DurationVar(&runPacing, "pacing", 0, "Minimum interval between model runs")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Report output path")
	runCmd.Flags().StringVar(&runRemote, "remote", "", "Benchmark a remote host (user@host[:port])")
	runCmd.Flags().StringVar(&runSSHKey, "ssh-key", "", "Private key for the remote host")
	runCmd.Flags().StringVar(&runUpload, "upload", "", "Upload the report over SFTP (user@host:/path)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Skip recording the run in the local database")

	rootCmd.AddCommand(runCmd)
}

func runBenchmarks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg, cmd)
	// Positional models and repeated -m flags combine; together they
	// override any configured model list.
	if cliModels := append(append([]string{}, args...), runModels...); len(cliModels) > 0 {
		cfg.Benchmark.Models = cliModels
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	logger := slog.Default()

	runner, closeRunner, err := newRunner(cfg, cmd)
	if err != nil {
		return err
	}
	defer closeRunner()

	client := newOllamaClient(cfg, runner)
	if err := client.Available(ctx); err != nil {
		return fmt.Errorf("ollama not found: install it from https://ollama.com (%w)", err)
	}

	models := cfg.Benchmark.Models
	if len(models) == 0 {
		models, err = client.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("cannot enumerate models: %w", err)
		}
	}
	if len(models) == 0 {
		return errors.New("no models installed; pull one with 'ollama pull <model>'")
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	logger.Info("starting benchmark run",
		slog.String("run_id", runID),
		slog.Int("models", len(models)),
		slog.String("prompt", cfg.Benchmark.Prompt))

	// Machine snapshot
	var probeOpts []sysinfo.Option
	var detectorOpts []gpu.DetectorOption
	if cfg.Remote.Host != "" {
		// Remote targets are assumed to be Linux GPU boxes.
		probeOpts = append(probeOpts, sysinfo.WithGOOS("linux"))
		detectorOpts = append(detectorOpts, gpu.WithGOOS("linux"))
	}

	spec := sysinfo.New(runner, probeOpts...).Collect(ctx)
	if version, err := client.Version(ctx); err == nil {
		spec.RuntimeVersion = version
	}

	// First GPU observation, before any model is loaded.
	detector := gpu.NewDetector(runner, client, detectorOpts...)
	gpuStatus := detector.Detect(ctx)

	benchRunner := benchmark.NewRunner(client,
		benchmark.WithPrompt(cfg.Benchmark.Prompt),
		benchmark.WithTimeout(cfg.Benchmark.Timeout),
		benchmark.WithPacing(cfg.Benchmark.Pacing))

	// Log the acceleration state right after the first successful
	// benchmark, while that model is still resident.
	rechecked := false
	results := benchRunner.Sweep(ctx, models, func(_ int, res benchmark.Result) {
		if rechecked || !res.Succeeded() {
			return
		}
		rechecked = true
		mid := detector.Detect(ctx)
		logger.Info("accelerator check",
			slog.String("model", res.Model),
			slog.Bool("gpu_in_use", mid.GPUInUse),
			slog.String("gpu_layers", mid.GPULayers))
	})

	// Second observation after the last benchmark, while the runtime
	// still holds loaded models. The later reading wins whenever it
	// reports the GPU in use.
	gpuStatus = gpu.Reconcile(gpuStatus, detector.Detect(ctx))

	gen := report.NewGenerator()
	doc := gen.Render(report.Report{
		Results: results,
		Machine: spec,
		GPU:     gpuStatus,
		Prompt:  cfg.Benchmark.Prompt,
	})
	if err := gen.WriteFile(cfg.Report.Output, doc); err != nil {
		return err
	}
	logger.Info("report written", slog.String("path", cfg.Report.Output))

	if !runNoStore {
		if err := storeRun(ctx, cfg, runID, spec, gpuStatus, results); err != nil {
			logger.Warn("failed to record run", slog.String("error", err.Error()))
		}
	}

	if cfg.Upload.Destination != "" {
		if err := uploadReport(ctx, cfg); err != nil {
			logger.Warn("failed to upload report", slog.String("error", err.Error()))
		} else {
			logger.Info("report uploaded", slog.String("destination", cfg.Upload.Destination))
		}
	}

	return nil
}

func applyRunFlags(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("prompt") {
		cfg.Benchmark.Prompt = runPrompt
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Benchmark.Timeout = runTimeout
	}
	if cmd.Flags().Changed("pacing") {
		cfg.Benchmark.Pacing = runPacing
	}
	if cmd.Flags().Changed("output") {
		cfg.Report.Output = runOutput
	}
	if cmd.Flags().Changed("remote") {
		cfg.Remote.Host = runRemote
	}
	if cmd.Flags().Changed("ssh-key") {
		cfg.Remote.KeyPath = runSSHKey
		if cfg.Upload.KeyPath == "" {
			cfg.Upload.KeyPath = runSSHKey
		}
	}
	if cmd.Flags().Changed("upload") {
		cfg.Upload.Destination = runUpload
	}
}

func storeRun(ctx context.Context, cfg *config.Config, runID string, spec sysinfo.Spec, status gpu.Status, results []benchmark.Result) error {
	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	return storage.NewRunStore(db).CreateRun(ctx, &storage.Run{
		ID:      runID,
		Prompt:  cfg.Benchmark.Prompt,
		Machine: spec,
		GPU:     status,
		Results: results,
	})
}

func uploadReport(ctx context.Context, cfg *config.Config) error {
	dest, err := filetransfer.ParseDestination(cfg.Upload.Destination)
	if err != nil {
		return err
	}

	key, err := os.ReadFile(cfg.Upload.KeyPath)
	if err != nil {
		return fmt.Errorf("reading upload key: %w", err)
	}

	return filetransfer.New(dest, key).Upload(ctx, cfg.Report.Output)
}
