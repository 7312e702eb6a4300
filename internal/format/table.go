package format

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// Table accumulates rows and renders them with columns sized to the
// widest cell. Styled cells are measured with their escapes stripped so
// color never skews alignment.
type Table struct {
	header []string
	rows   [][]string
	// MaxColWidth caps any single column; 0 means unlimited.
	MaxColWidth int
}

// NewTable starts a table with the given header row.
func NewTable(header ...string) *Table {
	return &Table{header: header}
}

// AddRow appends one row. Short rows are padded with empty cells.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func cellWidth(s string) int {
	return runewidth.StringWidth(ansi.Strip(s))
}

// Render produces the aligned table, header first, one line per row.
func (t *Table) Render() string {
	cols := len(t.header)
	for _, row := range t.rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	measure := func(row []string) {
		for i, cell := range row {
			if w := cellWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}
	if t.MaxColWidth > 0 {
		for i := range widths {
			if widths[i] > t.MaxColWidth {
				widths[i] = t.MaxColWidth
			}
		}
	}

	var b strings.Builder
	writeRow := func(row []string, style func(string) string) {
		for i := 0; i < cols; i++ {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if t.MaxColWidth > 0 && cellWidth(cell) > widths[i] {
				cell = Truncate(cell, widths[i])
			}
			if style != nil {
				cell = style(cell)
			}
			b.WriteString(cell)
			if i < cols-1 {
				pad := widths[i] - cellWidth(cell)
				b.WriteString(strings.Repeat(" ", pad+2))
			}
		}
		b.WriteString("\n")
	}

	if len(t.header) > 0 {
		writeRow(t.header, func(s string) string { return HeaderStyle.Render(s) })
	}
	for _, row := range t.rows {
		writeRow(row, nil)
	}
	return b.String()
}
