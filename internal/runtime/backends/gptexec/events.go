package gptexec

import "encoding/json"

// rawEvent represents the vendor's exec --json event structure.
//
// Event kinds:
//   - thread.started: new thread with thread_id
//   - turn.started / turn.completed / turn.failed: turn lifecycle
//   - item.started / item.updated / item.completed: work items
//   - error: top-level failure with a message
type rawEvent struct {
	Type string `json:"type"`

	// ThreadID is present in thread.started events.
	ThreadID string `json:"thread_id,omitempty"`

	// Item is present in item.* events. Kept raw so the envelope can
	// carry it as the message payload unchanged.
	Item json.RawMessage `json:"item,omitempty"`

	// Usage is present in turn.completed events.
	Usage *rawUsage `json:"usage,omitempty"`

	// Error is present in turn.failed events.
	Error *rawError `json:"error,omitempty"`

	// Message is present in top-level error events.
	Message string `json:"message,omitempty"`
}

// rawItem is one unit of agent work inside a turn.
type rawItem struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"` // agent_message, command_execution, reasoning
	Text   string `json:"text,omitempty"`
	Status string `json:"status,omitempty"`

	// Command execution fields.
	Command  string `json:"command,omitempty"`
	Output   string `json:"output,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// rawUsage carries turn token counters.
type rawUsage struct {
	InputTokens       int `json:"input_tokens,omitempty"`
	CachedInputTokens int `json:"cached_input_tokens,omitempty"`
	OutputTokens      int `json:"output_tokens,omitempty"`
}

// rawError carries a turn failure message.
type rawError struct {
	Message string `json:"message,omitempty"`
}
