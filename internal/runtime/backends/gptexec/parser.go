package gptexec

import (
	"encoding/json"
	"fmt"

	"github.com/zjrosen/klaude/internal/runtime"
)

// Parser implements runtime.EventParser for the exec-style GPT backend.
type Parser struct{}

// NewParser creates a new gptexec EventParser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseEvent converts vendor exec JSON to the runtime envelope.
// This is the main parsing entry point called for each stdout line.
func (p *Parser) ParseEvent(data []byte) (runtime.Envelope, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return runtime.Envelope{}, err
	}

	switch raw.Type {
	case "thread.started":
		// The thread id is the backend's resume handle.
		return runtime.Envelope{
			Type:      runtime.EventClaudeSession,
			SessionID: raw.ThreadID,
		}, nil

	case "turn.started":
		return runtime.Envelope{
			Type:   runtime.EventStatus,
			Status: "running",
		}, nil

	case "turn.completed":
		// Usage is the only interesting part of a completed turn; the
		// final session status comes from the exit code.
		result, _ := json.Marshal(raw.Usage)
		return runtime.Envelope{
			Type:       runtime.EventResult,
			Result:     result,
			StopReason: "turn.completed",
		}, nil

	case "turn.failed":
		var msg string
		if raw.Error != nil {
			msg = raw.Error.Message
		}
		return runtime.Envelope{
			Type:    runtime.EventError,
			Message: msg,
		}, nil

	case "error":
		return runtime.Envelope{
			Type:    runtime.EventError,
			Message: raw.Message,
		}, nil

	case "item.started", "item.updated", "item.completed":
		return p.parseItem(raw)

	default:
		return runtime.Envelope{Type: runtime.EventUnknown}, nil
	}
}

// parseItem maps item events. Completed items become messages so
// [UPDATE] notifications in agent text reach the parent; in-flight
// items are only logged.
func (p *Parser) parseItem(raw rawEvent) (runtime.Envelope, error) {
	var item rawItem
	if len(raw.Item) > 0 {
		if err := json.Unmarshal(raw.Item, &item); err != nil {
			return runtime.Envelope{}, err
		}
	}

	if raw.Type != "item.completed" {
		return runtime.Envelope{
			Type:    runtime.EventLog,
			Level:   "debug",
			Message: fmt.Sprintf("%s %s", raw.Type, item.Type),
		}, nil
	}

	// Reasoning summaries are internal chain-of-thought; keep them out
	// of the message stream.
	if item.Type == "reasoning" {
		return runtime.Envelope{
			Type:    runtime.EventLog,
			Level:   "debug",
			Message: "item.completed reasoning",
		}, nil
	}

	return runtime.Envelope{
		Type:        runtime.EventMessage,
		MessageType: item.Type,
		Text:        item.Text,
		Payload:     raw.Item,
	}, nil
}

// Verify Parser implements EventParser at compile time.
var _ runtime.EventParser = (*Parser)(nil)
