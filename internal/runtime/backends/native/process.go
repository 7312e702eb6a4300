package native

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zjrosen/klaude/internal/runtime"
)

// ErrStdinUnavailable is returned when a follow-up message is sent to a
// runner whose stdin pipe is gone.
var ErrStdinUnavailable = errors.New("native: stdin unavailable")

// initPayload is the first stdin line sent to the runner.
type initPayload struct {
	Type            string          `json:"type"`
	SessionID       string          `json:"sessionId,omitempty"`
	Prompt          string          `json:"prompt"`
	SystemPrompt    string          `json:"systemPrompt,omitempty"`
	Model           string          `json:"model,omitempty"`
	FallbackModel   string          `json:"fallbackModel,omitempty"`
	PermissionMode  string          `json:"permissionMode,omitempty"`
	ReasoningEffort string          `json:"reasoningEffort,omitempty"`
	Resume          string          `json:"resume,omitempty"`
	MCPServers      json.RawMessage `json:"mcpServers,omitempty"`
}

// messagePayload is a follow-up prompt line written to the runner.
type messagePayload struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

// Process represents a running native runner child.
// Process implements runtime.AgentProcess by embedding BaseProcess and
// adds follow-up messaging on stdin.
type Process struct {
	*runtime.BaseProcess

	// writeMu serializes stdin writes so concurrent messages cannot
	// interleave lines.
	writeMu sync.Mutex
}

// sendInit writes the init payload as the first stdin line.
func (p *Process) sendInit(cfg runtime.Config) error {
	payload := initPayload{
		Type:            "init",
		SessionID:       cfg.SessionID,
		Prompt:          cfg.Prompt,
		SystemPrompt:    cfg.SystemPrompt,
		Model:           cfg.Model,
		FallbackModel:   cfg.FallbackModel,
		PermissionMode:  cfg.PermissionMode,
		ReasoningEffort: cfg.ReasoningEffort,
		Resume:          cfg.ResumeID,
	}
	if cfg.MCPConfig != "" {
		payload.MCPServers = json.RawMessage(cfg.MCPConfig)
	}
	return p.writeLine(payload)
}

// SendMessage writes one follow-up prompt to the runner.
func (p *Process) SendMessage(prompt string) error {
	return p.writeLine(messagePayload{Type: "message", Prompt: prompt})
}

func (p *Process) writeLine(v any) error {
	stdin := p.Stdin()
	if stdin == nil {
		return ErrStdinUnavailable
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("native: encoding stdin line: %w", err)
	}
	data = append(data, '\n')

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("native: writing stdin line: %w", err)
	}
	return nil
}

// Ensure Process implements the runtime interfaces at compile time.
var (
	_ runtime.AgentProcess  = (*Process)(nil)
	_ runtime.MessageWriter = (*Process)(nil)
)
