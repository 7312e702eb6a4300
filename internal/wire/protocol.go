package wire

import (
	"encoding/json"
)

// Action verbs accepted by the socket server.
const (
	ActionPing       = "ping"
	ActionStatus     = "status"
	ActionStartAgent = "start-agent"
	ActionCheckout   = "checkout"
	ActionMessage    = "message"
	ActionInterrupt  = "interrupt"
)

// Request is one line on the wire. Older clients send payload fields at
// the top level instead of nesting them under "payload"; DecodeRequest
// folds those shorthand fields back into Payload.
type Request struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the single reply written for a request.
type Response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    *Error          `json:"error,omitempty"`
}

// DecodeRequest parses one request line. Returns a typed E_INVALID_JSON
// error for malformed JSON.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, Errorf(CodeInvalidJSON, "invalid request JSON: %v", err)
	}

	// Backwards compat: treat any top-level fields besides action/payload
	// as the payload itself.
	if len(req.Payload) == 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(line, &fields); err == nil {
			delete(fields, "action")
			delete(fields, "payload")
			if len(fields) > 0 {
				if raw, err := json.Marshal(fields); err == nil {
					req.Payload = raw
				}
			}
		}
	}
	return req, nil
}

// OKResponse wraps a result value.
func OKResponse(result any) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return ErrResponse(Errorf(CodeInternal, "encoding result: %v", err))
	}
	return Response{OK: true, Result: raw}
}

// ErrResponse wraps a typed error.
func ErrResponse(err *Error) Response {
	return Response{OK: false, Err: err}
}

// StartAgentOptions tweak agent spawn behavior.
type StartAgentOptions struct {
	// Checkout switches the foreground TUI to the new session after spawn.
	Checkout bool `json:"checkout,omitempty"`
	// Share resumes the parent's underlying conversation in the child.
	Share bool `json:"share,omitempty"`
	// Detach returns immediately instead of waiting for the first runtime event.
	Detach bool `json:"detach,omitempty"`
}

// StartAgentPayload is the payload for the start-agent action.
type StartAgentPayload struct {
	AgentType       string             `json:"agentType"`
	Prompt          string             `json:"prompt"`
	ParentSessionID string             `json:"parentSessionId,omitempty"`
	AgentCount      int                `json:"agentCount,omitempty"`
	Options         *StartAgentOptions `json:"options,omitempty"`
}

// CheckoutPayload is the payload for the checkout action. A nil SessionID
// targets the current session's parent.
type CheckoutPayload struct {
	SessionID     string   `json:"sessionId,omitempty"`
	FromSessionID string   `json:"fromSessionId,omitempty"`
	WaitSeconds   *float64 `json:"waitSeconds,omitempty"`
}

// MessagePayload is the payload for the message action.
type MessagePayload struct {
	SessionID   string   `json:"sessionId"`
	Prompt      string   `json:"prompt"`
	WaitSeconds *float64 `json:"waitSeconds,omitempty"`
}

// InterruptPayload is the payload for the interrupt action.
type InterruptPayload struct {
	SessionID string `json:"sessionId"`
	Signal    string `json:"signal,omitempty"`
}

// PingResult answers ping.
type PingResult struct {
	Pong      bool   `json:"pong"`
	Timestamp string `json:"timestamp"`
}

// StatusResult is a snapshot of the wrapper instance.
type StatusResult struct {
	InstanceID    string `json:"instanceId"`
	ProjectHash   string `json:"projectHash"`
	RootPath      string `json:"rootPath"`
	SessionID     string `json:"sessionId"`
	SessionStatus string `json:"sessionStatus"`
	TuiPid        int    `json:"tuiPid,omitempty"`
	Switching     bool   `json:"switching,omitempty"`
}

// SpawnedAgent describes one session created by start-agent.
type SpawnedAgent struct {
	SessionID string `json:"sessionId"`
	AgentType string `json:"agentType"`
	Runtime   string `json:"runtime"`
}

// StartAgentResult answers start-agent. SessionID is the first spawned
// session; Agents lists all of them when agentCount > 1.
type StartAgentResult struct {
	SessionID string         `json:"sessionId"`
	Agents    []SpawnedAgent `json:"agents"`
}

// CheckoutResult answers checkout. Status is "activated" after a TUI swap
// or "already_active" for a no-op.
type CheckoutResult struct {
	SessionID       string `json:"sessionId"`
	ClaudeSessionID string `json:"claudeSessionId,omitempty"`
	Status          string `json:"status,omitempty"`
}

// MessageResult answers message.
type MessageResult struct {
	Status         string `json:"status"`
	MessagesQueued int    `json:"messagesQueued"`
}

// InterruptResult answers interrupt.
type InterruptResult struct {
	SessionID string `json:"sessionId"`
	Signal    string `json:"signal"`
	Pid       int    `json:"pid"`
}

// Checkout status values.
const (
	CheckoutActivated     = "activated"
	CheckoutAlreadyActive = "already_active"
)
