package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama-bench/ollama-bench/internal/shell"
)

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) key(name string, args []string) string {
	k := name
	for _, a := range args {
		k += " " + a
	}
	return k
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	k := f.key(name, args)
	if err, ok := f.errs[k]; ok {
		return "", "", err
	}
	if out, ok := f.outputs[k]; ok {
		return out, "", nil
	}
	return "", "", errors.New("command not scripted: " + k)
}

func (f *fakeRunner) LookPath(_ context.Context, _ string) error { return nil }

type fakePS struct {
	output string
	err    error
}

func (f *fakePS) PS(_ context.Context) (string, error) {
	return f.output, f.err
}

const psGPU = "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL\n" +
	"mistral:7b    61e88e884507    5.1 GB    100% GPU     4096       4 minutes from now"

const psEmpty = "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL"

func TestDetect_LinuxNvidia(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"nvidia-smi --query-gpu=name,memory.total --format=csv,noheader": "NVIDIA GeForce RTX 4090, 24564 MiB",
	}}
	det := NewDetector(runner, &fakePS{output: psGPU}, WithGOOS("linux"))

	status := det.Detect(context.Background())
	assert.True(t, status.GPUAvailable)
	assert.True(t, status.GPUInUse)
	assert.Equal(t, "100% GPU", status.GPULayers)
	assert.Equal(t, "NVIDIA: NVIDIA GeForce RTX 4090, 24564 MiB", status.Backend)
}

func TestDetect_LinuxROCmFallback(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{"rocm-smi --showproductname": "Card series: Radeon RX 7900"},
		errs: map[string]error{
			"nvidia-smi --query-gpu=name,memory.total --format=csv,noheader": shell.ErrNotInstalled,
		},
	}
	det := NewDetector(runner, &fakePS{output: psEmpty}, WithGOOS("linux"))

	status := det.Detect(context.Background())
	assert.True(t, status.GPUAvailable)
	assert.False(t, status.GPUInUse)
	assert.Equal(t, "AMD ROCm", status.Backend)
}

func TestDetect_DarwinAppleSilicon(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"uname -m": "arm64"}}
	det := NewDetector(runner, &fakePS{output: psEmpty}, WithGOOS("darwin"))

	status := det.Detect(context.Background())
	assert.True(t, status.GPUAvailable)
	assert.Equal(t, "Apple Silicon (Metal)", status.Backend)
}

func TestDetect_NoToolsNoCrash(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"nvidia-smi --query-gpu=name,memory.total --format=csv,noheader": shell.ErrNotInstalled,
		"rocm-smi --showproductname":                                     shell.ErrNotInstalled,
	}}
	det := NewDetector(runner, &fakePS{err: errors.New("ollama not running")}, WithGOOS("linux"))

	status := det.Detect(context.Background())
	assert.False(t, status.GPUAvailable)
	assert.False(t, status.GPUInUse)
	assert.Equal(t, BackendNone, status.Backend)
	assert.Equal(t, "N/A", status.GPULayers)
}

// A ps reading that shows a model on the GPU proves hardware exists even
// when every enumeration tool failed; in-use must never be reported
// without availability.
func TestDetect_UsageImpliesAvailability(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"nvidia-smi --query-gpu=name,memory.total --format=csv,noheader": shell.ErrNotInstalled,
		"rocm-smi --showproductname":                                     shell.ErrNotInstalled,
	}}
	det := NewDetector(runner, &fakePS{output: psGPU}, WithGOOS("linux"))

	status := det.Detect(context.Background())
	require.True(t, status.GPUInUse)
	assert.True(t, status.GPUAvailable, "in-use without available violates the status invariant")
}

func TestReconcile_LatestWins(t *testing.T) {
	earlier := Status{GPUAvailable: true, GPUInUse: false, GPULayers: "N/A", Backend: "Apple Silicon (Metal)"}
	later := Status{GPUAvailable: true, GPUInUse: true, GPULayers: "100% GPU", Backend: "Apple Silicon (Metal)"}

	got := Reconcile(earlier, later)
	assert.True(t, got.GPUInUse)
	assert.Equal(t, "100% GPU", got.GPULayers)
}

func TestReconcile_EmptyLaterKeepsEarlier(t *testing.T) {
	// Models unloaded by the time of the second pass: keep the earlier
	// positive observation instead of regressing to empty.
	earlier := Status{GPUAvailable: true, GPUInUse: true, GPULayers: "100% GPU", Backend: "NVIDIA: RTX 4090"}
	later := Status{GPUAvailable: true, GPUInUse: false, GPULayers: "N/A", Backend: "NVIDIA: RTX 4090"}

	got := Reconcile(earlier, later)
	assert.True(t, got.GPUInUse)
	assert.Equal(t, "100% GPU", got.GPULayers)
}
