package format

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/zjrosen/klaude/internal/store"
)

var (
	// Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#CCCCCC"}
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#BBBBBB"}
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#9C9C9C", Dark: "#696969"}

	// Session status colors
	StatusActiveColor      = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
	StatusRunningColor     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusDoneColor        = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"}
	StatusFailedColor      = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	StatusInterruptedColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	StatusOrphanedColor    = lipgloss.AdaptiveColor{Light: "#9C9C9C", Dark: "#696969"}

	HeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)
	MutedStyle     = lipgloss.NewStyle().Foreground(TextMutedColor)
	SecondaryStyle = lipgloss.NewStyle().Foreground(TextSecondaryColor)
	ErrorStyle     = lipgloss.NewStyle().Bold(true).Foreground(StatusFailedColor)
)

// DetectColorProfile applies the terminal's color capability to lipgloss
// output. Honors NO_COLOR via termenv's environment detection.
func DetectColorProfile() {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

// StatusColor maps a session status to its display color.
func StatusColor(status store.SessionStatus) lipgloss.AdaptiveColor {
	switch status {
	case store.StatusActive:
		return StatusActiveColor
	case store.StatusRunning:
		return StatusRunningColor
	case store.StatusDone:
		return StatusDoneColor
	case store.StatusFailed:
		return StatusFailedColor
	case store.StatusInterrupted:
		return StatusInterruptedColor
	case store.StatusOrphaned:
		return StatusOrphanedColor
	default:
		return TextSecondaryColor
	}
}

// StatusBadge renders the status word in its color.
func StatusBadge(status store.SessionStatus) string {
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(string(status))
}

// StatusGlyph is the one-cell marker used in tree and table rows.
func StatusGlyph(status store.SessionStatus) string {
	glyph := "○"
	switch status {
	case store.StatusRunning:
		glyph = "●"
	case store.StatusDone:
		glyph = "✓"
	case store.StatusFailed:
		glyph = "✗"
	case store.StatusInterrupted:
		glyph = "◌"
	case store.StatusOrphaned:
		glyph = "~"
	}
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(glyph)
}
