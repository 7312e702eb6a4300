package agent

import (
	"encoding/json"
	"fmt"

	"github.com/zjrosen/klaude/internal/runtime"
)

// Metadata is the agent record persisted on a session row: the
// definition the session was launched from, the runtime decision made
// for it, and the MCP servers resolved for it. A parent session's
// stored metadata backs the allowed-children check and parent MCP
// inheritance for its children.
type Metadata struct {
	Definition   *Definition                `json:"definition,omitempty"`
	Runtime      runtime.Selection          `json:"runtime"`
	ResolvedMcps map[string]json.RawMessage `json:"resolvedMcps,omitempty"`
}

// EncodeMetadata renders metadata as the session row's JSON string.
func EncodeMetadata(m Metadata) (string, error) {
	content, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding session metadata: %w", err)
	}
	return string(content), nil
}

// DecodeMetadata parses a session row's metadata JSON. Empty input
// yields a zero value, not an error; root sessions and agents launched
// without a definition carry none.
func DecodeMetadata(raw string) (Metadata, error) {
	var m Metadata
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("parsing session metadata: %w", err)
	}
	return m, nil
}
