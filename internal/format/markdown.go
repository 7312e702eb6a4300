package format

import (
	"github.com/charmbracelet/glamour"
)

// plainDocStyle drops glamour's document margin so rendered agent
// instructions sit flush with the surrounding CLI output.
const plainDocStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// RenderMarkdown renders a markdown body for the terminal, word-wrapped
// to width. Falls back to the raw text when the renderer cannot be
// built (e.g. an unsupported TERM).
func RenderMarkdown(body string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithStylesFromJSONBytes([]byte(plainDocStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return body
	}
	out, err := r.Render(body)
	if err != nil {
		return body
	}
	return out
}
