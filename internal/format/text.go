// Package format contains the CLI output helpers: status styles, plain
// tables, session-tree rendering, and text shaping for terminal width.
package format

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rivo/uniseg"
)

// Truncate shortens s to fit maxWidth terminal cells, appending an
// ellipsis when anything was cut. Grapheme-cluster safe: an emoji or a
// combining sequence is never split mid-cluster.
func Truncate(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return strings.Repeat(".", maxWidth)
	}

	budget := maxWidth - 3
	var b strings.Builder
	width := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		w := runewidth.StringWidth(cluster)
		if width+w > budget {
			break
		}
		b.WriteString(cluster)
		width += w
	}
	return b.String() + "..."
}

// Wrap word-wraps s to the given width. Width <= 0 returns s unchanged.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}

// StripANSI removes escape sequences so agent output can be embedded in
// plain log lines.
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// FirstLine returns the text up to the first newline, trimmed.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
