package runtime

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/zjrosen/klaude/internal/events"
)

// EventType identifies the envelope variant.
type EventType string

const (
	// EventStatus reports a lifecycle stage (starting, running, completed).
	EventStatus EventType = "status"
	// EventMessage is agent output (assistant text, tool activity).
	EventMessage EventType = "message"
	// EventLog is a diagnostic line from the child.
	EventLog EventType = "log"
	// EventResult is a completion result.
	EventResult EventType = "result"
	// EventError is a fatal child error.
	EventError EventType = "error"
	// EventDone carries the child's final session status.
	EventDone EventType = "done"
	// EventClaudeSession links the child to an underlying conversation.
	EventClaudeSession EventType = "claude-session"
	// EventUnknown is any line the parser could not classify.
	EventUnknown EventType = "unknown"
)

// Envelope is the normalized event emitted by a runtime child. The
// native runner writes this shape directly; the GPT backends map their
// vendor schemas into it. One stdout line produces one envelope.
type Envelope struct {
	Type EventType `json:"type"`

	// Status is the lifecycle stage for status envelopes and the final
	// session status for done envelopes.
	Status string `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Message fields.
	MessageType string          `json:"messageType,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Text        string          `json:"text,omitempty"`

	// Log and error fields.
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`

	// Result fields.
	Result     json.RawMessage `json:"result,omitempty"`
	StopReason string          `json:"stopReason,omitempty"`

	// Claude-session fields.
	SessionID      string `json:"sessionId,omitempty"`
	TranscriptPath string `json:"transcriptPath,omitempty"`

	// Raw is the original stdout line, kept for event recording.
	Raw json.RawMessage `json:"-"`

	Timestamp time.Time `json:"-"`
}

// updatePattern matches "[UPDATE] ..." notifications embedded in
// message text. The capture group is the text forwarded to the parent.
var updatePattern = regexp.MustCompile(`\[UPDATE\]\s*(.+)`)

// UpdateText extracts an embedded parent notification from a message
// envelope. Returns false when the envelope carries no update.
func (e Envelope) UpdateText() (string, bool) {
	if e.Type != EventMessage || e.Text == "" {
		return "", false
	}
	m := updatePattern.FindStringSubmatch(e.Text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EventKind maps the envelope variant to its recorded event kind.
func (e Envelope) EventKind() events.Kind {
	switch e.Type {
	case EventStatus:
		return events.AgentRuntimeStatus
	case EventMessage:
		return events.AgentRuntimeMessage
	case EventLog:
		return events.AgentRuntimeLog
	case EventResult:
		return events.AgentRuntimeResult
	case EventError:
		return events.AgentRuntimeError
	case EventDone:
		return events.AgentRuntimeDone
	case EventClaudeSession:
		return events.AgentRuntimeClaudeSession
	default:
		return events.AgentRuntimeEventUnknown
	}
}
