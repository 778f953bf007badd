package gpu

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/ollama-bench/ollama-bench/internal/shell"
)

const (
	// DefaultToolTimeout bounds each GPU enumeration command.
	DefaultToolTimeout = 5 * time.Second

	// BackendNone is reported when no GPU hardware could be enumerated.
	BackendNone = "None"
)

// processLister provides the runtime's live process table.
// *ollama.Client satisfies it.
type processLister interface {
	PS(ctx context.Context) (string, error)
}

// Detector performs the two-phase GPU check: a static capability probe
// of the host and a dynamic usage probe of the runtime process table.
type Detector struct {
	runner      shell.Runner
	procs       processLister
	logger      *slog.Logger
	goos        string
	toolTimeout time.Duration
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithGOOS overrides the detected operating system (used in tests).
func WithGOOS(goos string) DetectorOption {
	return func(d *Detector) {
		d.goos = goos
	}
}

// WithToolTimeout overrides the per-command timeout.
func WithToolTimeout(d time.Duration) DetectorOption {
	return func(det *Detector) {
		det.toolTimeout = d
	}
}

// NewDetector creates a detector that probes hardware through runner and
// runtime usage through procs.
func NewDetector(runner shell.Runner, procs processLister, opts ...DetectorOption) *Detector {
	d := &Detector{
		runner:      runner,
		procs:       procs,
		logger:      slog.Default(),
		goos:        runtime.GOOS,
		toolTimeout: DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect performs one full observation: capability first, then usage.
// It never fails; every probe error degrades to a weaker answer.
func (d *Detector) Detect(ctx context.Context) Status {
	status := d.capability(ctx)
	d.usage(ctx, &status)
	return status
}

// capability enumerates GPU hardware with platform tools. Any failure
// (missing tool, non-zero exit) is non-fatal and leaves the zero answer.
func (d *Detector) capability(ctx context.Context) Status {
	status := Status{Backend: BackendNone, GPULayers: "N/A"}

	switch d.goos {
	case "darwin":
		d.capabilityDarwin(ctx, &status)
	case "linux":
		d.capabilityLinux(ctx, &status)
	default:
		d.logger.Debug("no GPU capability probe for platform", slog.String("goos", d.goos))
	}

	return status
}

func (d *Detector) capabilityDarwin(ctx context.Context, status *Status) {
	if arch, ok := d.run(ctx, "uname", "-m"); ok && arch == "arm64" {
		status.GPUAvailable = true
		status.Backend = "Apple Silicon (Metal)"
		return
	}

	// Intel Mac: a discrete GPU shows up with Metal support.
	if out, ok := d.run(ctx, "system_profiler", "SPDisplaysDataType"); ok && strings.Contains(out, "Metal") {
		status.GPUAvailable = true
		status.Backend = "Metal supported"
	}
}

func (d *Detector) capabilityLinux(ctx context.Context, status *Status) {
	if out, ok := d.run(ctx, "nvidia-smi", "--query-gpu=name,memory.total", "--format=csv,noheader"); ok && out != "" {
		status.GPUAvailable = true
		status.Backend = "NVIDIA: " + out
		return
	}

	if _, ok := d.run(ctx, "rocm-smi", "--showproductname"); ok {
		status.GPUAvailable = true
		status.Backend = "AMD ROCm"
	}
}

// usage reads the runtime process table and folds the result into
// status. A failed ps command leaves the capability answer untouched.
func (d *Detector) usage(ctx context.Context, status *Status) {
	out, err := d.procs.PS(ctx)
	if err != nil {
		d.logger.Debug("process table unavailable", slog.String("error", err.Error()))
		return
	}

	table := parseProcessTable(out)
	if table.processor != "" {
		status.GPULayers = table.processor
	}
	if table.inUse {
		status.GPUInUse = true
		// The runtime demonstrably has a model on the accelerator, so
		// hardware exists even if every enumeration tool failed above.
		if !status.GPUAvailable {
			status.GPUAvailable = true
		}
	}
}

// run executes one probe command, bounded by the tool timeout.
func (d *Detector) run(ctx context.Context, name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.toolTimeout)
	defer cancel()

	stdout, _, err := d.runner.Run(ctx, name, args...)
	if err != nil {
		d.logger.Debug("GPU probe failed",
			slog.String("command", name),
			slog.String("error", err.Error()))
		return "", false
	}
	return stdout, true
}
