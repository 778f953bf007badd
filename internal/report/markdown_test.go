package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama-bench/ollama-bench/internal/benchmark"
	"github.com/ollama-bench/ollama-bench/internal/gpu"
	"github.com/ollama-bench/ollama-bench/internal/sysinfo"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
}

func testMachine() sysinfo.Spec {
	return sysinfo.Spec{
		OS:             "macOS",
		OSVersion:      "14.6.1",
		CPU:            "Apple M2 Pro",
		PhysicalCores:  10,
		LogicalCores:   10,
		MemoryGB:       16.0,
		GPU:            "Apple M2 Pro",
		Arch:           "arm64",
		RuntimeVersion: "0.5.7",
	}
}

func success(model string, firstTokenMS, tps float64) benchmark.Result {
	return benchmark.Result{
		Model:        model,
		Status:       benchmark.StatusSuccess,
		FirstTokenMS: firstTokenMS,
		TokensPerSec: tps,
		TotalSeconds: 5,
		TokenCount:   50,
	}
}

// resultRows extracts the data rows of the Benchmark Results table.
func resultRows(t *testing.T, doc string) []string {
	t.Helper()
	_, after, found := strings.Cut(doc, "## Benchmark Results")
	require.True(t, found)
	section, _, _ := strings.Cut(after, "##")

	var rows []string
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "|") && !strings.HasPrefix(line, "| Model") && !strings.HasPrefix(line, "|---") {
			rows = append(rows, line)
		}
	}
	return rows
}

func TestRender_OneRowPerResult(t *testing.T) {
	results := []benchmark.Result{
		success("llama2", 900, 13.9),
		{Model: "broken:1b", Status: benchmark.StatusError, Error: "model not found"},
		{Model: "big:70b", Status: benchmark.StatusTimeout, Error: "timeout exceeded"},
		success("phi3", 400, 27.6),
	}

	doc := NewGenerator(WithClock(fixedClock)).Render(Report{
		Results: results,
		Machine: testMachine(),
		GPU:     gpu.Status{GPUAvailable: true, GPUInUse: true, GPULayers: "100% GPU", Backend: "Apple Silicon (Metal)"},
	})

	rows := resultRows(t, doc)
	require.Len(t, rows, len(results))
	assert.Contains(t, rows[0], "llama2")
	assert.Contains(t, rows[1], "Error: model not found")
	assert.Contains(t, rows[2], "timeout")
	assert.Contains(t, rows[3], "phi3")
}

func TestRender_ThroughputRanking(t *testing.T) {
	// Six results; the top-5 table must list exactly five rows in
	// descending order, excluding the slowest.
	tps := []float64{13.9, 5.4, 4.56, 32.15, 27.62, 10.75}
	var results []benchmark.Result
	for i, v := range tps {
		results = append(results, success("model-"+string(rune('a'+i)), float64(100+i), v))
	}

	doc := NewGenerator(WithClock(fixedClock)).Render(Report{Results: results, Machine: testMachine()})

	_, after, found := strings.Cut(doc, "## Fastest by Throughput (Top 5)")
	require.True(t, found)
	section, _, _ := strings.Cut(after, "##")

	var values []string
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "| model-") {
			parts := strings.Split(line, "|")
			require.Len(t, parts, 4)
			values = append(values, strings.TrimSpace(parts[2]))
		}
	}

	assert.Equal(t, []string{"32.15", "27.62", "13.9", "10.75", "5.4"}, values)
	assert.NotContains(t, section, "4.56")
}

func TestRender_LatencyRankingAscending(t *testing.T) {
	results := []benchmark.Result{
		success("slow", 2000, 5),
		success("fast", 100, 10),
		success("medium", 900, 8),
	}

	doc := NewGenerator(WithClock(fixedClock)).Render(Report{Results: results, Machine: testMachine()})

	_, after, found := strings.Cut(doc, "## Fastest by First Token Latency (Top 5)")
	require.True(t, found)
	section, _, _ := strings.Cut(after, "##")

	fast := strings.Index(section, "| fast |")
	medium := strings.Index(section, "| medium |")
	slow := strings.Index(section, "| slow |")
	require.NotEqual(t, -1, fast)
	assert.Less(t, fast, medium)
	assert.Less(t, medium, slow)
}

func TestRender_TiesKeepSweepOrder(t *testing.T) {
	results := []benchmark.Result{
		success("first", 500, 12),
		success("second", 500, 12),
	}

	doc := NewGenerator(WithClock(fixedClock)).Render(Report{Results: results, Machine: testMachine()})

	_, after, _ := strings.Cut(doc, "## Fastest by Throughput (Top 5)")
	assert.Less(t, strings.Index(after, "| first |"), strings.Index(after, "| second |"))
}

func TestRender_ZeroResults(t *testing.T) {
	doc := NewGenerator(WithClock(fixedClock)).Render(Report{
		Machine: testMachine(),
		GPU:     gpu.Status{Backend: "None", GPULayers: "N/A"},
	})

	assert.Contains(t, doc, "- **Total Models Benchmarked:** 0")
	assert.Contains(t, doc, "- **Successful:** 0")
	assert.Contains(t, doc, "- **Failed:** 0")
	assert.Contains(t, doc, "## Benchmark Results")
	// No successful results: ranking sections are omitted entirely.
	assert.NotContains(t, doc, "Fastest by Throughput")
	assert.Empty(t, resultRows(t, doc))
}

func TestRender_GPUStatusWording(t *testing.T) {
	gen := NewGenerator(WithClock(fixedClock))

	doc := gen.Render(Report{Machine: testMachine(), GPU: gpu.Status{GPUAvailable: true, GPUInUse: false, Backend: "NVIDIA: RTX 4090", GPULayers: "N/A"}})
	assert.Contains(t, doc, "| **Ollama Using GPU** | Available but not used |")

	doc = gen.Render(Report{Machine: testMachine(), GPU: gpu.Status{GPUAvailable: true, GPUInUse: true, GPULayers: "100% GPU"}})
	assert.Contains(t, doc, "| **Ollama Using GPU** | Yes |")
	assert.Contains(t, doc, "| **GPU/CPU Split** | 100% GPU |")

	doc = gen.Render(Report{Machine: testMachine(), GPU: gpu.Status{Backend: "None", GPULayers: "N/A"}})
	assert.Contains(t, doc, "| **Ollama Using GPU** | No |")
	assert.Contains(t, doc, "| **GPU Available** | No |")
}

func TestRender_ErrorTextCannotBreakTable(t *testing.T) {
	results := []benchmark.Result{
		{Model: "bad", Status: benchmark.StatusError, Error: "line one\nline two | with pipe"},
	}

	doc := NewGenerator(WithClock(fixedClock)).Render(Report{Results: results, Machine: testMachine()})

	rows := resultRows(t, doc)
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0], "\n")
	assert.Contains(t, rows[0], `\|`)
}
