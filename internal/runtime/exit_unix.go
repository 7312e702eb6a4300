//go:build !windows

package runtime

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// exitResultOf extracts the exit code and signal name from a finished
// command. Signaled exits report code -1 with the signal name
// ("SIGTERM"); normal exits report the code with no signal.
func exitResultOf(cmd *exec.Cmd, waitErr error) ExitResult {
	state := cmd.ProcessState
	if state == nil {
		// Wait failed before the child was reaped (I/O error on the
		// pipes, for instance). Treat as an unknown failure.
		if waitErr != nil {
			return ExitResult{Code: -1}
		}
		return ExitResult{}
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitResult{Code: -1, Signal: unix.SignalName(ws.Signal())}
	}
	return ExitResult{Code: state.ExitCode()}
}
