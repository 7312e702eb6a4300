package gptstream

import "encoding/json"

// rawEvent represents the vendor's stream-json event structure.
//
// Event kinds:
//   - init: session start with session_id and model
//   - message: role-discriminated text (assistant or user)
//   - thought: internal reasoning summary
//   - tool_use / tool_result: tool activity
//   - result: completion with stop_reason and stats
//   - error: failure with message and optional code
type rawEvent struct {
	Type string `json:"type"`

	// SessionID is present in init events.
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`

	// Message fields.
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Delta   bool   `json:"delta,omitempty"`

	// Tool fields.
	ToolName   string          `json:"tool_name,omitempty"`
	ToolID     string          `json:"tool_id,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Status     string          `json:"status,omitempty"`
	Output     string          `json:"output,omitempty"`

	// Result fields.
	StopReason string          `json:"stop_reason,omitempty"`
	Stats      json.RawMessage `json:"stats,omitempty"`

	// Error details.
	Error *rawError `json:"error,omitempty"`
}

// rawError carries failure details from error events.
type rawError struct {
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
