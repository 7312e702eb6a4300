package native

import (
	"encoding/json"

	"github.com/zjrosen/klaude/internal/runtime"
)

// Parser implements runtime.EventParser for the native runner. The
// runner already speaks the envelope schema, so parsing is a direct
// unmarshal plus classification of unrecognized types.
type Parser struct{}

// NewParser creates a new native EventParser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseEvent converts one runner stdout line into the typed envelope.
func (p *Parser) ParseEvent(data []byte) (runtime.Envelope, error) {
	var env runtime.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return runtime.Envelope{}, err
	}

	switch env.Type {
	case runtime.EventStatus,
		runtime.EventMessage,
		runtime.EventLog,
		runtime.EventResult,
		runtime.EventError,
		runtime.EventDone,
		runtime.EventClaudeSession:
		return env, nil
	default:
		// Unrecognized types are persisted as unknown events; the raw
		// line is attached by the reader.
		return runtime.Envelope{Type: runtime.EventUnknown}, nil
	}
}

// Verify Parser implements EventParser at compile time.
var _ runtime.EventParser = (*Parser)(nil)
