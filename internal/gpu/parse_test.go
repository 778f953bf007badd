package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProcessTable_HeaderOffsets(t *testing.T) {
	tests := []struct {
		name          string
		output        string
		wantInUse     bool
		wantProcessor string
	}{
		{
			name: "full GPU with context column",
			output: "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL\n" +
				"mistral:7b    61e88e884507    5.1 GB    100% GPU     4096       4 minutes from now",
			wantInUse:     true,
			wantProcessor: "100% GPU",
		},
		{
			name: "cpu only",
			output: "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL\n" +
				"phi3:mini     4f2222927938    2.2 GB    100% CPU     2048       2 minutes from now",
			wantInUse:     false,
			wantProcessor: "100% CPU",
		},
		{
			name: "split placement counts as GPU",
			output: "NAME          ID              SIZE      PROCESSOR          CONTEXT    UNTIL\n" +
				"llama2:70b    78e26419b446    39 GB     42%/58% CPU/GPU    4096       forever",
			wantInUse:     true,
			wantProcessor: "42%/58% CPU/GPU",
		},
		{
			name: "context column missing slices to end of line",
			output: "NAME          ID              SIZE      PROCESSOR\n" +
				"mistral:7b    61e88e884507    5.1 GB    100% GPU",
			wantInUse:     true,
			wantProcessor: "100% GPU",
		},
		{
			name: "several rows, later GPU row wins",
			output: "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL\n" +
				"phi3:mini     4f2222927938    2.2 GB    100% CPU     2048       soon\n" +
				"mistral:7b    61e88e884507    5.1 GB    100% GPU     4096       soon",
			wantInUse:     true,
			wantProcessor: "100% GPU",
		},
		{
			name: "short row is skipped, remaining rows still parsed",
			output: "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL\n" +
				"bad\n" +
				"mistral:7b    61e88e884507    5.1 GB    100% GPU     4096       soon",
			wantInUse:     true,
			wantProcessor: "100% GPU",
		},
		{
			name:   "header only",
			output: "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL",
		},
		{
			name:   "empty output",
			output: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := parseProcessTable(tt.output)
			assert.Equal(t, tt.wantInUse, table.inUse)
			assert.Equal(t, tt.wantProcessor, table.processor)
		})
	}
}

// The parser must return the full multi-token column value, never a
// truncated fragment like "100%" or "GPU".
func TestParseProcessTable_EmbeddedWhitespacePreserved(t *testing.T) {
	output := "NAME          ID              SIZE      PROCESSOR    CONTEXT    UNTIL\n" +
		"mistral:7b    61e88e884507    5.1 GB    100% GPU     4096       4 minutes from now"

	table := parseProcessTable(output)
	assert.Equal(t, "100% GPU", table.processor)
	assert.NotEqual(t, "100%", table.processor)
	assert.NotEqual(t, "GPU", table.processor)
}

func TestParseProcessTable_WhitespaceFallback(t *testing.T) {
	// Legacy header without PROCESSOR/CONTEXT: fall back to naive
	// tokenization at a fixed index. Must not panic, may under-report.
	output := "NAME          ID              SIZE     PROC\n" +
		"mistral:7b    61e88e884507    4.1GB    GPU\n" +
		"short row"

	table := parseProcessTable(output)
	assert.Equal(t, strategyWhitespace, table.strategy)
	assert.True(t, table.inUse)
	assert.Equal(t, "GPU", table.processor)
}

func TestParseProcessTable_WhitespaceFallbackTruncates(t *testing.T) {
	// Documented trade-off of the fallback: a multi-token value loses
	// everything past the fixed index, but classification still works
	// when the token at the index carries the GPU marker.
	output := "NAME          ID              SIZE\n" +
		"mistral:7b    61e88e884507    5.1 100% GPU"

	table := parseProcessTable(output)
	assert.Equal(t, strategyWhitespace, table.strategy)
	// Index 3 is "100%": no GPU marker in that token, so no detection.
	assert.False(t, table.inUse)
}

func TestChooseStrategy(t *testing.T) {
	assert.Equal(t, strategyHeaderOffsets, chooseStrategy("NAME  ID  SIZE  PROCESSOR  CONTEXT  UNTIL"))
	assert.Equal(t, strategyHeaderOffsets, chooseStrategy("NAME  ID  SIZE  PROCESSOR"))
	assert.Equal(t, strategyWhitespace, chooseStrategy("NAME  ID  SIZE  UNTIL"))
	assert.Equal(t, strategyWhitespace, chooseStrategy(""))
}

func TestSliceColumn(t *testing.T) {
	header := "NAME          SIZE      PROCESSOR    CONTEXT"

	value, ok := sliceColumn(header, "mistral:7b    5.1 GB    100% GPU     4096", "PROCESSOR", "CONTEXT")
	assert.True(t, ok)
	assert.Equal(t, "100% GPU", value)

	// Row shorter than the column offset is a per-row parse failure.
	_, ok = sliceColumn(header, "short", "PROCESSOR", "CONTEXT")
	assert.False(t, ok)

	// Column not present in header at all.
	_, ok = sliceColumn("NAME  SIZE", "mistral  5.1", "PROCESSOR", "CONTEXT")
	assert.False(t, ok)
}
