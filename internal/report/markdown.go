// Package report renders benchmark sweeps as Markdown. Rendering is a
// pure transform of already-collected data: no process or network calls.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ollama-bench/ollama-bench/internal/benchmark"
	"github.com/ollama-bench/ollama-bench/internal/gpu"
	"github.com/ollama-bench/ollama-bench/internal/sysinfo"
)

// DefaultOutputFile is the report path when none is given.
const DefaultOutputFile = "ollama_benchmark_report.md"

// rankingSize caps the derived ranking tables.
const rankingSize = 5

// Report bundles everything one rendering needs. It exists only
// transiently; the results keep their original sweep order.
type Report struct {
	Results []benchmark.Result
	Machine sysinfo.Spec
	GPU     gpu.Status
	Prompt  string
}

// Generator renders Markdown reports.
type Generator struct {
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the timestamp source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a report generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Render produces the full Markdown document. It renders correctly for
// zero results: empty tables and zero counts, never an error.
func (g *Generator) Render(rep Report) string {
	var sb strings.Builder

	sb.WriteString("# Ollama Model Benchmark Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", g.now().Format("2006-01-02 15:04:05")))
	if rep.Prompt != "" {
		sb.WriteString(fmt.Sprintf("**Prompt:** %q\n\n", rep.Prompt))
	}

	g.writeMachineSpecs(&sb, rep.Machine)
	g.writeGPUStatus(&sb, rep.GPU)
	g.writeSummary(&sb, rep.Results)
	g.writeResultsTable(&sb, rep.Results)
	g.writeRankings(&sb, rep.Results)
	g.writeNotes(&sb)

	return sb.String()
}

// WriteFile writes a rendered report to path.
func (g *Generator) WriteFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func (g *Generator) writeMachineSpecs(sb *strings.Builder, spec sysinfo.Spec) {
	sb.WriteString("## Machine Specifications\n\n")
	sb.WriteString("| Spec | Value |\n")
	sb.WriteString("|------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **OS** | %s %s |\n", spec.OS, spec.OSVersion))
	sb.WriteString(fmt.Sprintf("| **CPU** | %s |\n", spec.CPU))
	sb.WriteString(fmt.Sprintf("| **CPU Cores** | %s |\n", formatCores(spec)))
	sb.WriteString(fmt.Sprintf("| **Memory** | %s |\n", formatMemory(spec.MemoryGB)))
	sb.WriteString(fmt.Sprintf("| **GPU** | %s |\n", spec.GPU))
	sb.WriteString(fmt.Sprintf("| **Architecture** | %s |\n", spec.Arch))
	sb.WriteString(fmt.Sprintf("| **Ollama Version** | %s |\n", spec.RuntimeVersion))
	sb.WriteString("\n")
}

func (g *Generator) writeGPUStatus(sb *strings.Builder, status gpu.Status) {
	usingGPU := "No"
	switch {
	case status.GPUInUse:
		usingGPU = "Yes"
	case status.GPUAvailable:
		usingGPU = "Available but not used"
	}

	sb.WriteString("## Ollama GPU Status\n\n")
	sb.WriteString("| Property | Value |\n")
	sb.WriteString("|----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **GPU Available** | %s |\n", yesNo(status.GPUAvailable)))
	sb.WriteString(fmt.Sprintf("| **GPU Backend** | %s |\n", status.Backend))
	sb.WriteString(fmt.Sprintf("| **Ollama Using GPU** | %s |\n", usingGPU))
	sb.WriteString(fmt.Sprintf("| **GPU/CPU Split** | %s |\n", status.GPULayers))
	sb.WriteString("\n")
}

func (g *Generator) writeSummary(sb *strings.Builder, results []benchmark.Result) {
	successful := 0
	for _, r := range results {
		if r.Succeeded() {
			successful++
		}
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Total Models Benchmarked:** %d\n", len(results)))
	sb.WriteString(fmt.Sprintf("- **Successful:** %d\n", successful))
	sb.WriteString(fmt.Sprintf("- **Failed:** %d\n", len(results)-successful))
	sb.WriteString("\n")
}

func (g *Generator) writeResultsTable(sb *strings.Builder, results []benchmark.Result) {
	sb.WriteString("## Benchmark Results\n\n")
	sb.WriteString("| Model | Status | First Token (ms) | Tokens/Second | Total Time (s) | Token Count |\n")
	sb.WriteString("|-------|--------|------------------|---------------|----------------|-------------|\n")

	for _, r := range results {
		if r.Succeeded() {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d |\n",
				r.Model, r.Status,
				formatFloat(r.FirstTokenMS), formatFloat(r.TokensPerSec), formatFloat(r.TotalSeconds),
				r.TokenCount))
			continue
		}

		errText := r.Error
		if errText == "" {
			errText = "Unknown error"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | - | - | - | Error: %s |\n",
			r.Model, r.Status, sanitizeCell(errText)))
	}
	sb.WriteString("\n")
}

func (g *Generator) writeRankings(sb *strings.Builder, results []benchmark.Result) {
	successful := make([]benchmark.Result, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			successful = append(successful, r)
		}
	}
	if len(successful) == 0 {
		return
	}

	// Stable sorts keep original sweep order on ties.
	byLatency := make([]benchmark.Result, len(successful))
	copy(byLatency, successful)
	sort.SliceStable(byLatency, func(i, j int) bool {
		return byLatency[i].FirstTokenMS < byLatency[j].FirstTokenMS
	})

	sb.WriteString("## Fastest by First Token Latency (Top 5)\n\n")
	sb.WriteString("| Model | First Token (ms) |\n")
	sb.WriteString("|-------|------------------|\n")
	for _, r := range truncate(byLatency, rankingSize) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", r.Model, formatFloat(r.FirstTokenMS)))
	}

	byThroughput := make([]benchmark.Result, len(successful))
	copy(byThroughput, successful)
	sort.SliceStable(byThroughput, func(i, j int) bool {
		return byThroughput[i].TokensPerSec > byThroughput[j].TokensPerSec
	})

	sb.WriteString("\n## Fastest by Throughput (Top 5)\n\n")
	sb.WriteString("| Model | Tokens/Second |\n")
	sb.WriteString("|-------|---------------|\n")
	for _, r := range truncate(byThroughput, rankingSize) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", r.Model, formatFloat(r.TokensPerSec)))
	}
	sb.WriteString("\n")
}

func (g *Generator) writeNotes(sb *strings.Builder) {
	sb.WriteString("## Notes\n\n")
	sb.WriteString("- **First Token (ms):** Estimated time to first token; derived from total wall time, not a streaming measurement\n")
	sb.WriteString("- **Tokens/Second:** Throughput in tokens per second\n")
	sb.WriteString("- **Total Time (s):** Total benchmark time in seconds\n")
	sb.WriteString("- **Token Count:** Whitespace-delimited token count of the response (approximate)\n")
}

func truncate(results []benchmark.Result, n int) []benchmark.Result {
	if len(results) > n {
		return results[:n]
	}
	return results
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func formatCores(spec sysinfo.Spec) string {
	switch {
	case spec.PhysicalCores > 0 && spec.LogicalCores > 0:
		return fmt.Sprintf("%d physical / %d logical", spec.PhysicalCores, spec.LogicalCores)
	case spec.LogicalCores > 0:
		return fmt.Sprintf("%d logical", spec.LogicalCores)
	default:
		return "N/A"
	}
}

func formatMemory(gb float64) string {
	if gb <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f GB", gb)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// sanitizeCell keeps error text from breaking the table layout.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
