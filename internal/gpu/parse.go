package gpu

import (
	"strings"
)

// Process-table column headers we anchor on. The table is column-aligned,
// not delimited: the PROCESSOR value itself contains whitespace
// ("100% GPU", "5.1 GB"), so naive field splitting truncates it.
const (
	processorHeader = "PROCESSOR"
	contextHeader   = "CONTEXT"
)

// parseStrategy is the discriminated set of ways we read the process
// table. The strategy is chosen once per parse from the header line.
type parseStrategy int

const (
	// strategyHeaderOffsets slices each row at the character offsets of
	// the known column headers. Correct for current Ollama output.
	strategyHeaderOffsets parseStrategy = iota

	// strategyWhitespace falls back to whitespace tokenization with a
	// fixed column index for legacy or unknown header formats. May
	// truncate multi-token values; trades correctness for availability.
	strategyWhitespace
)

// whitespaceProcessorIndex is the PROCESSOR position in the legacy
// NAME ID SIZE PROCESSOR layout.
const whitespaceProcessorIndex = 3

// processTable is the parsed view of one `ollama ps` invocation.
type processTable struct {
	strategy  parseStrategy
	inUse     bool
	processor string // full processor-column value of the last classified row
}

// chooseStrategy picks a parse strategy from the header line.
func chooseStrategy(header string) parseStrategy {
	if strings.Contains(header, processorHeader) {
		return strategyHeaderOffsets
	}
	return strategyWhitespace
}

// parseProcessTable extracts GPU usage from raw `ollama ps` output.
// Malformed rows are skipped; the function never fails. Empty output or
// a header with no data rows yields the zero value.
func parseProcessTable(output string) processTable {
	var table processTable

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) <= 1 {
		return table
	}

	header := lines[0]
	table.strategy = chooseStrategy(header)

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var processor string
		var ok bool
		switch table.strategy {
		case strategyHeaderOffsets:
			processor, ok = sliceColumn(header, line, processorHeader, contextHeader)
		case strategyWhitespace:
			processor, ok = fieldAt(line, whitespaceProcessorIndex)
		}
		if !ok {
			continue
		}

		upper := strings.ToUpper(processor)
		switch {
		case strings.Contains(upper, "GPU"):
			table.inUse = true
			table.processor = processor
		case strings.Contains(upper, "CPU"):
			table.processor = processor
		}
	}

	return table
}

// sliceColumn cuts the value of column start out of a data row using the
// header's character offsets. The slice runs from the start column to the
// next known column, or to end of line when that column is absent, and
// is trimmed. This keeps embedded whitespace intact: a PROCESSOR value
// of "100% GPU" comes back whole.
func sliceColumn(header, row, startCol, endCol string) (string, bool) {
	start := strings.Index(header, startCol)
	if start < 0 || start >= len(row) {
		return "", false
	}

	end := len(row)
	if idx := strings.Index(header, endCol); idx >= 0 && idx < end {
		end = idx
	}
	if end < start {
		end = len(row)
	}

	value := strings.TrimSpace(row[start:end])
	if value == "" {
		return "", false
	}
	return value, true
}

// fieldAt returns the idx-th whitespace-delimited field of the row.
func fieldAt(row string, idx int) (string, bool) {
	fields := strings.Fields(row)
	if idx >= len(fields) {
		return "", false
	}
	return fields[idx], true
}
