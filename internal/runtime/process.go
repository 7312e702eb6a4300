package runtime

import "os/exec"

// AgentProcess is the wrapper's view of a spawned runtime child.
// Implementations provide access to the envelope stream, process
// lifecycle, and exit state.
type AgentProcess interface {
	// Kind returns the backend kind that spawned this child.
	Kind() Kind

	// Events returns a channel of parsed envelopes.
	// The channel is closed when stdout reaches EOF.
	Events() <-chan Envelope

	// Stderr returns a channel of raw stderr lines.
	// The channel is closed when stderr reaches EOF.
	Stderr() <-chan string

	// Errors returns a channel of process errors.
	// Non-blocking; errors are dropped if the channel is full.
	Errors() <-chan error

	// SessionRef returns the underlying conversation id reported by the
	// child. May be empty until a claude-session envelope is received.
	SessionRef() string

	// Status returns the current process status.
	Status() ProcessStatus

	// IsRunning returns true if the child is actively running.
	IsRunning() bool

	// WorkDir returns the working directory of the child.
	WorkDir() string

	// PID returns the OS process ID, or -1 if not running.
	PID() int

	// ExitState returns how the child exited. The boolean is false
	// until the child has been reaped.
	ExitState() (ExitResult, bool)

	// SawOutput reports whether the child produced at least one stdout
	// or stderr byte. Startup-failure detection depends on this.
	SawOutput() bool

	// Cancel terminates the child via its context.
	Cancel() error

	// Wait blocks until the child and its reader goroutines complete.
	Wait() error
}

// MessageWriter is implemented by backends whose children accept
// follow-up messages on stdin.
type MessageWriter interface {
	// SendMessage writes one follow-up prompt to the child.
	SendMessage(prompt string) error
}

// ExitResult describes how a runtime child exited. Code is -1 when the
// child was killed by a signal; Signal is the signal name ("SIGTERM")
// or empty for a normal exit.
type ExitResult struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// Success reports a clean zero exit.
func (r ExitResult) Success() bool {
	return r.Code == 0 && r.Signal == ""
}

// ExitResultFromCmd extracts the exit result of a command that Wait
// has returned for. Useful for children managed outside a backend,
// such as the foreground TUI.
func ExitResultFromCmd(cmd *exec.Cmd, waitErr error) ExitResult {
	return exitResultOf(cmd, waitErr)
}
