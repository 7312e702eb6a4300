// Package wire defines the socket protocol spoken between the klaude CLI
// and a wrapper instance: newline-delimited JSON, one request and one
// response per connection.
package wire

import (
	"errors"
	"fmt"
)

// Code is a stable, typed error code carried in socket responses and CLI
// exit messages.
type Code string

const (
	CodeInvalidJSON              Code = "E_INVALID_JSON"
	CodeUnsupportedAction        Code = "E_UNSUPPORTED_ACTION"
	CodeInternal                 Code = "E_INTERNAL"
	CodeSessionNotFound          Code = "E_SESSION_NOT_FOUND"
	CodeSessionProjectMismatch   Code = "E_SESSION_PROJECT_MISMATCH"
	CodeAgentTypeRequired        Code = "E_AGENT_TYPE_REQUIRED"
	CodePromptRequired           Code = "E_PROMPT_REQUIRED"
	CodeAgentTypeInvalid         Code = "E_AGENT_TYPE_INVALID"
	CodeAgentTypeNotAllowed      Code = "E_AGENT_TYPE_NOT_ALLOWED"
	CodeAgentInstructionsMissing Code = "E_AGENT_INSTRUCTIONS_MISSING"
	CodeMaxDepthExceeded         Code = "E_MAX_DEPTH_EXCEEDED"
	CodeCheckoutInProgress       Code = "E_CHECKOUT_IN_PROGRESS"
	CodeSwitchTargetMissing      Code = "E_SWITCH_TARGET_MISSING"
	CodeInvalidWaitValue         Code = "E_INVALID_WAIT_VALUE"
	CodeAgentRuntimeTimeout      Code = "E_AGENT_RUNTIME_TIMEOUT"
	CodeAgentMessageUnsupported  Code = "E_AGENT_MESSAGE_UNSUPPORTED"
	CodeAgentStdinUnavailable    Code = "E_AGENT_STDIN_UNAVAILABLE"
	CodeMessageSendFailed        Code = "E_MESSAGE_SEND_FAILED"
	CodeAgentNotRunning          Code = "E_AGENT_NOT_RUNNING"
	CodeAgentPidUnavailable      Code = "E_AGENT_PID_UNAVAILABLE"
	CodeInterruptFailed          Code = "E_INTERRUPT_FAILED"
	CodeTuiBinaryMissing         Code = "E_TUI_BINARY_MISSING"
	CodeTuiLaunchFailed          Code = "E_TUI_LAUNCH_FAILED"
	CodeHookTimeout              Code = "E_HOOK_TIMEOUT"
	CodeRuntimeEntryMissing      Code = "E_AGENT_RUNTIME_ENTRY_MISSING"
)

// Error is a typed protocol error. Handlers return it so the server can
// preserve the code across the wire; anything else maps to E_INTERNAL.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a typed protocol error.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the protocol code from an error chain.
// Errors without a typed code are internal.
func CodeOf(err error) Code {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Code
	}
	return CodeInternal
}

// AsError converts any error to a protocol error, preserving an existing
// typed code and wrapping everything else as E_INTERNAL.
func AsError(err error) *Error {
	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
