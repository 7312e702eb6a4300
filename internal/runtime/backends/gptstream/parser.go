package gptstream

import (
	"encoding/json"

	"github.com/zjrosen/klaude/internal/runtime"
)

// Parser implements runtime.EventParser for the streaming GPT backends.
// The stream-env backend shares this parser; only prompt delivery
// differs between the two.
type Parser struct{}

// NewParser creates a new gptstream EventParser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseEvent converts vendor stream JSON to the runtime envelope.
// This is the main parsing entry point called for each stdout line.
func (p *Parser) ParseEvent(data []byte) (runtime.Envelope, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return runtime.Envelope{}, err
	}

	switch raw.Type {
	case "init":
		return runtime.Envelope{
			Type:      runtime.EventClaudeSession,
			SessionID: raw.SessionID,
		}, nil

	case "message":
		role := raw.Role
		if role == "" {
			role = "assistant"
		}
		return runtime.Envelope{
			Type:        runtime.EventMessage,
			MessageType: role,
			Text:        raw.Content,
		}, nil

	case "thought":
		// Reasoning summaries stay out of the message stream.
		return runtime.Envelope{
			Type:    runtime.EventLog,
			Level:   "debug",
			Message: raw.Content,
		}, nil

	case "tool_use", "tool_result":
		// Copy: the line buffer is reused by the scanner.
		payload := make(json.RawMessage, len(data))
		copy(payload, data)
		return runtime.Envelope{
			Type:        runtime.EventMessage,
			MessageType: raw.Type,
			Payload:     payload,
		}, nil

	case "result":
		return runtime.Envelope{
			Type:       runtime.EventResult,
			Result:     raw.Stats,
			StopReason: raw.StopReason,
		}, nil

	case "error":
		var msg string
		if raw.Error != nil {
			msg = raw.Error.Message
		}
		return runtime.Envelope{
			Type:    runtime.EventError,
			Message: msg,
		}, nil

	default:
		return runtime.Envelope{Type: runtime.EventUnknown}, nil
	}
}

// Verify Parser implements EventParser at compile time.
var _ runtime.EventParser = (*Parser)(nil)
