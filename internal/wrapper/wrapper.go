// Package wrapper implements the orchestrator core: the long-lived
// process that fronts one interactive TUI child, serves the instance's
// control socket, supervises headless agent runtimes, and keeps the
// session tree in the shared store current.
//
// One Orchestrator runs per invocation. It owns a TuiManager for the
// foreground child and the checkout state machine, a RuntimeManager
// for background agent children, and a Recorder that every component
// funnels typed events through.
package wrapper

import (
	"time"

	"github.com/zjrosen/klaude/internal/runtime"
	"github.com/zjrosen/klaude/internal/store"
)

// Environment variables exported to every child the wrapper spawns.
// Hook handlers in those children resolve the owning session through
// them.
const (
	EnvProjectHash    = "KLAUDE_PROJECT_HASH"
	EnvInstanceID     = "KLAUDE_INSTANCE_ID"
	EnvSessionID      = "KLAUDE_SESSION_ID"
	EnvSessionIDShort = "KLAUDE_SESSION_ID_SHORT"
)

// defaultWaitSeconds applies when a request omits waitSeconds.
const defaultWaitSeconds = 5.0

// pollInterval paces the wrapper's store polling loops.
const pollInterval = 200 * time.Millisecond

// InstanceInfo identifies the running wrapper instance to its
// components.
type InstanceInfo struct {
	InstanceID  string
	ProjectID   int64
	ProjectHash string
	RootPath    string
	Pid         int
}

// tuiExitStatus maps a TUI exit to the session status it settles.
// Interactive children report SIGINT or SIGTERM when the user (or a
// switch) ended them.
func tuiExitStatus(res runtime.ExitResult) store.SessionStatus {
	switch {
	case res.Signal == "SIGINT" || res.Signal == "SIGTERM":
		return store.StatusInterrupted
	case res.Code == 0:
		return store.StatusDone
	default:
		return store.StatusFailed
	}
}

// runtimeExitStatus infers the session status to settle after a
// headless child exits.
func runtimeExitStatus(ps runtime.ProcessStatus, exit runtime.ExitResult) store.SessionStatus {
	switch {
	case ps == runtime.StatusCancelled:
		return store.StatusInterrupted
	case exit.Signal == "SIGINT" || exit.Signal == "SIGTERM":
		return store.StatusInterrupted
	case exit.Success():
		return store.StatusDone
	default:
		return store.StatusFailed
	}
}

// waitDuration converts an optional waitSeconds field, falling back to
// def when absent. Zero disables waiting entirely.
func waitDuration(v *float64, def float64) time.Duration {
	secs := def
	if v != nil {
		secs = *v
	}
	return time.Duration(secs * float64(time.Second))
}
