package montage

import (
	"fmt"
	"os"
	"strings"
)

// Table is a minimal in-memory form of an IPAC ASCII table, as produced
// by the Montage tools: a pipe-delimited header naming the columns,
// optional secondary header lines (types, units), and fixed-width rows.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// ReadTable parses the IPAC table at path. Keyword lines (leading
// backslash) and secondary header lines are skipped; data values are
// sliced at the header's pipe positions.
func ReadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}

	t := &Table{}
	var bounds []int // byte offsets of '|' in the header line

	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "\\") {
			continue
		}
		if strings.HasPrefix(line, "|") {
			if t.Columns != nil {
				continue // type/unit/null header lines
			}
			for i, r := range line {
				if r == '|' {
					bounds = append(bounds, i)
				}
			}
			for i := 0; i+1 < len(bounds); i++ {
				name := strings.TrimSpace(line[bounds[i]+1 : bounds[i+1]])
				t.Columns = append(t.Columns, name)
			}
			continue
		}
		if t.Columns == nil {
			return nil, fmt.Errorf("read table: data before column header in %s", path)
		}
		row := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			lo, hi := bounds[i]+1, bounds[i+1]
			if lo > len(line) {
				lo = len(line)
			}
			if hi > len(line) {
				hi = len(line)
			}
			row[col] = strings.TrimSpace(line[lo:hi])
		}
		t.Rows = append(t.Rows, row)
	}

	if t.Columns == nil {
		return nil, fmt.Errorf("read table: no column header in %s", path)
	}
	return t, nil
}

// WriteIPAC writes the table to path in IPAC layout, padding every
// column wide enough for its longest value.
func (t *Table) WriteIPAC(path string) error {
	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = len(col)
		for _, row := range t.Rows {
			if n := len(row[col]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("|")
	for i, col := range t.Columns {
		fmt.Fprintf(&sb, " %-*s |", widths[i], col)
	}
	sb.WriteString("\n")
	for _, row := range t.Rows {
		sb.WriteString(" ")
		for i, col := range t.Columns {
			fmt.Fprintf(&sb, " %-*s  ", widths[i], row[col])
		}
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
