// Package events defines the typed event kinds recorded by a wrapper
// instance and the JSONL line format shared by the recorder and the log
// pretty-printer.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is a dotted event kind string, e.g. "wrapper.tui.spawned".
type Kind string

// Wrapper lifecycle kinds.
const (
	WrapperStart                 Kind = "wrapper.start"
	WrapperTuiSpawned            Kind = "wrapper.tui.spawned"
	WrapperTuiExited             Kind = "wrapper.tui.exited"
	WrapperCheckoutRequested     Kind = "wrapper.checkout.requested"
	WrapperCheckoutResumeChoice  Kind = "wrapper.checkout.resume_selected"
	WrapperCheckoutActivated     Kind = "wrapper.checkout.activated"
	WrapperCheckoutAlreadyActive Kind = "wrapper.checkout.already_active"
	WrapperCheckoutRuntimeStop   Kind = "wrapper.checkout.runtime_stopped"
	WrapperFinalized             Kind = "wrapper.finalized"
)

// Agent session and runtime kinds.
const (
	AgentSessionCreated        Kind = "agent.session.created"
	AgentRuntimeSpawned        Kind = "agent.runtime.spawned"
	AgentRuntimeStatus         Kind = "agent.runtime.status"
	AgentRuntimeMessage        Kind = "agent.runtime.message"
	AgentRuntimeLog            Kind = "agent.runtime.log"
	AgentRuntimeResult         Kind = "agent.runtime.result"
	AgentRuntimeError          Kind = "agent.runtime.error"
	AgentRuntimeDone           Kind = "agent.runtime.done"
	AgentRuntimeClaudeSession  Kind = "agent.runtime.claude-session"
	AgentRuntimeStderr         Kind = "agent.runtime.stderr"
	AgentRuntimeProcessExited  Kind = "agent.runtime.process.exited"
	AgentRuntimeProcessError   Kind = "agent.runtime.process.error"
	AgentRuntimeRetry          Kind = "agent.runtime.retry"
	AgentRuntimeRetryCancelled Kind = "agent.runtime.retry.cancelled"
	AgentRuntimeEventUnknown   Kind = "agent.runtime.event.unknown"
	AgentMessageSent           Kind = "agent.message.sent"
	AgentMessageRuntimeStarted Kind = "agent.message.runtime_started"
	AgentInterrupted           Kind = "agent.interrupted"
	AgentUpdateDelivered       Kind = "agent.update.delivered"
)

// LogLine is one line of a per-session JSONL event log. Payload is kept
// raw so a parse/re-serialize round trip preserves it byte for byte.
type LogLine struct {
	Timestamp time.Time       `json:"timestamp"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewLogLine builds a log line for an arbitrary payload value.
func NewLogLine(kind Kind, payload any) (LogLine, error) {
	line := LogLine{Timestamp: time.Now().UTC(), Kind: kind}
	if payload == nil {
		return line, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return LogLine{}, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	line.Payload = raw
	return line, nil
}

// ParseLogLine decodes one JSONL line.
func ParseLogLine(data []byte) (LogLine, error) {
	var line LogLine
	if err := json.Unmarshal(data, &line); err != nil {
		return LogLine{}, fmt.Errorf("parsing log line: %w", err)
	}
	return line, nil
}

// Encode renders the line as JSON terminated by a newline.
func (l LogLine) Encode() ([]byte, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encoding log line: %w", err)
	}
	return append(raw, '\n'), nil
}

// PayloadField extracts a single string field from the payload, or ""
// when the payload is missing or the field is not a string.
func (l LogLine) PayloadField(name string) string {
	if len(l.Payload) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(l.Payload, &fields); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(fields[name], &s); err != nil {
		return ""
	}
	return s
}
