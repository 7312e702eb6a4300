// Package proc holds small process-probing helpers shared by the
// wrapper, the instance registry, and the CLI.
package proc

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// SignalByName maps an interrupt request's signal name to the OS signal.
// Accepts "SIGINT", "INT", "sigterm" and so on. Empty input means SIGINT.
func SignalByName(name string) (os.Signal, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "SIG")
	switch s {
	case "":
		return syscall.SIGINT, nil
	case "INT":
		return syscall.SIGINT, nil
	case "TERM":
		return syscall.SIGTERM, nil
	case "KILL":
		return syscall.SIGKILL, nil
	case "HUP":
		return syscall.SIGHUP, nil
	case "USR1":
		return syscall.SIGUSR1, nil
	case "USR2":
		return syscall.SIGUSR2, nil
	default:
		return nil, fmt.Errorf("unknown signal %q", name)
	}
}

// Signal delivers sig to pid.
func Signal(pid int, sig os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}
