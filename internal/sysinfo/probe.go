// Package sysinfo collects a one-shot snapshot of static host facts for
// the benchmark report. Every query is read-only and individually
// fallible: a failed probe yields a placeholder, never an error.
package sysinfo

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ollama-bench/ollama-bench/internal/shell"
)

const (
	// Unknown is substituted for any fact that could not be collected.
	Unknown = "Unknown"

	// DefaultProbeTimeout bounds each individual system query.
	DefaultProbeTimeout = 10 * time.Second
)

// Spec is an immutable snapshot of the benchmark host, collected once at
// process start.
type Spec struct {
	OS             string  `json:"os"`
	OSVersion      string  `json:"os_version"`
	CPU            string  `json:"cpu"`
	PhysicalCores  int     `json:"physical_cores"`
	LogicalCores   int     `json:"logical_cores"`
	MemoryGB       float64 `json:"memory_gb"`
	GPU            string  `json:"gpu"`
	Arch           string  `json:"arch"`
	RuntimeVersion string  `json:"runtime_version"`
}

// Probe collects a Spec through a shell.Runner so local and remote hosts
// are interrogated identically.
type Probe struct {
	runner  shell.Runner
	logger  *slog.Logger
	goos    string
	timeout time.Duration
}

// Option configures a Probe.
type Option func(*Probe)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Probe) {
		p.logger = logger
	}
}

// WithGOOS overrides the detected operating system (used in tests).
func WithGOOS(goos string) Option {
	return func(p *Probe) {
		p.goos = goos
	}
}

// New creates a machine probe.
func New(runner shell.Runner, opts ...Option) *Probe {
	p := &Probe{
		runner:  runner,
		logger:  slog.Default(),
		goos:    runtime.GOOS,
		timeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Collect gathers the snapshot. It never fails the caller: each
// sub-query that errors substitutes a placeholder and collection
// continues.
func (p *Probe) Collect(ctx context.Context) Spec {
	spec := Spec{
		OS:             p.osName(),
		OSVersion:      Unknown,
		CPU:            Unknown,
		GPU:            Unknown,
		Arch:           Unknown,
		RuntimeVersion: Unknown,
	}

	if arch, ok := p.out(ctx, "uname", "-m"); ok {
		spec.Arch = arch
	}

	switch p.goos {
	case "darwin":
		p.collectDarwin(ctx, &spec)
	case "linux":
		p.collectLinux(ctx, &spec)
	default:
		p.logger.Debug("no machine probe for platform", slog.String("goos", p.goos))
	}

	return spec
}

func (p *Probe) osName() string {
	switch p.goos {
	case "darwin":
		return "macOS"
	case "linux":
		return "Linux"
	default:
		return p.goos
	}
}

func (p *Probe) collectDarwin(ctx context.Context, spec *Spec) {
	if v, ok := p.out(ctx, "sw_vers", "-productVersion"); ok {
		spec.OSVersion = v
	}
	if cpu, ok := p.out(ctx, "sysctl", "-n", "machdep.cpu.brand_string"); ok {
		spec.CPU = cpu
	}
	if n, ok := p.intOut(ctx, "sysctl", "-n", "hw.physicalcpu"); ok {
		spec.PhysicalCores = n
	}
	if n, ok := p.intOut(ctx, "sysctl", "-n", "hw.logicalcpu"); ok {
		spec.LogicalCores = n
	}
	if bytes, ok := p.intOut(ctx, "sysctl", "-n", "hw.memsize"); ok {
		spec.MemoryGB = roundGB(float64(bytes) / (1 << 30))
	}

	// "Chipset Model:" on Intel, "Chip:" on Apple Silicon.
	if out, ok := p.out(ctx, "system_profiler", "SPDisplaysDataType"); ok {
		for _, line := range strings.Split(out, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "Chipset Model:") || strings.HasPrefix(trimmed, "Chip:") {
				if _, value, found := strings.Cut(trimmed, ":"); found {
					spec.GPU = strings.TrimSpace(value)
				}
				break
			}
		}
	}
}

func (p *Probe) collectLinux(ctx context.Context, spec *Spec) {
	if v, ok := p.out(ctx, "uname", "-r"); ok {
		spec.OSVersion = v
	}

	if out, ok := p.out(ctx, "cat", "/proc/cpuinfo"); ok {
		p.parseCPUInfo(out, spec)
	}
	if n, ok := p.intOut(ctx, "nproc"); ok {
		spec.LogicalCores = n
	}

	if out, ok := p.out(ctx, "cat", "/proc/meminfo"); ok {
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, "MemTotal:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
						spec.MemoryGB = roundGB(float64(kb) / (1 << 20))
					}
				}
				break
			}
		}
	}

	if gpu, ok := p.out(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader"); ok && gpu != "" {
		spec.GPU = gpu
	}
}

// parseCPUInfo pulls the model name and a physical core count out of
// /proc/cpuinfo. Physical cores are unique (physical id, core id)
// pairs; hosts that omit those fields fall back to zero and the report
// shows only logical cores.
func (p *Probe) parseCPUInfo(out string, spec *Spec) {
	cores := make(map[string]struct{})
	var physicalID, coreID string

	flush := func() {
		if physicalID != "" || coreID != "" {
			cores[physicalID+"/"+coreID] = struct{}{}
		}
		physicalID, coreID = "", ""
	}

	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			if strings.TrimSpace(line) == "" {
				flush()
			}
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "model name":
			if spec.CPU == Unknown {
				spec.CPU = value
			}
		case "physical id":
			physicalID = value
		case "core id":
			coreID = value
		}
	}
	flush()

	spec.PhysicalCores = len(cores)
}

// out runs one probe command and returns its stdout.
func (p *Probe) out(ctx context.Context, name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stdout, _, err := p.runner.Run(ctx, name, args...)
	if err != nil {
		p.logger.Debug("machine probe failed",
			slog.String("command", name),
			slog.String("error", err.Error()))
		return "", false
	}
	return stdout, true
}

func (p *Probe) intOut(ctx context.Context, name string, args ...string) (int, bool) {
	out, ok := p.out(ctx, name, args...)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, false
	}
	return n, true
}

func roundGB(gb float64) float64 {
	return math.Round(gb*10) / 10
}
