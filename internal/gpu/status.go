// Package gpu detects GPU hardware availability and whether the Ollama
// runtime is actively using the accelerator. Usage is read from the
// runtime's live process table, so a single observation only reflects
// the models loaded at that instant; callers take one reading before
// and one after the benchmark sweep and reconcile them latest-wins.
package gpu

// Status is one observation of GPU capability and runtime usage.
// Produced by Detector.Detect; replaced wholesale, never mutated in place.
type Status struct {
	// GPUAvailable reports whether GPU hardware was enumerated on the host.
	GPUAvailable bool `json:"gpu_available"`

	// GPUInUse reports whether the runtime had a model placed on the GPU
	// at observation time.
	GPUInUse bool `json:"gpu_in_use"`

	// GPULayers is the raw processor split reported by the runtime,
	// e.g. "100% GPU" or "42%/58% CPU/GPU". Free-form, kept intact.
	GPULayers string `json:"gpu_layers"`

	// Backend describes the detected hardware, e.g.
	// "NVIDIA: GeForce RTX 4090, 24564 MiB" or "Apple Silicon (Metal)".
	Backend string `json:"backend"`
}

// Reconcile merges two sequential observations. The later reading wins
// whenever it saw the GPU in use; an earlier false or empty reading must
// never override a later positive one. When the later pass saw nothing
// (models already unloaded), the earlier observation is kept.
func Reconcile(earlier, later Status) Status {
	if later.GPUInUse {
		return later
	}
	return earlier
}
