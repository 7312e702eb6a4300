//go:build windows

package runtime

import "os/exec"

// exitResultOf extracts the exit code from a finished command. Windows
// has no signal-termination concept, so Signal is always empty.
func exitResultOf(cmd *exec.Cmd, waitErr error) ExitResult {
	state := cmd.ProcessState
	if state == nil {
		if waitErr != nil {
			return ExitResult{Code: -1}
		}
		return ExitResult{}
	}
	return ExitResult{Code: state.ExitCode()}
}
