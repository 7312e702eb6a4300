package runtime

// ProcessStatus represents the current state of a runtime child.
type ProcessStatus int

const (
	// StatusPending indicates the child has not yet started.
	StatusPending ProcessStatus = iota
	// StatusRunning indicates the child is actively running.
	StatusRunning
	// StatusCompleted indicates the child exited cleanly.
	StatusCompleted
	// StatusFailed indicates the child exited with an error or signal.
	StatusFailed
	// StatusCancelled indicates the child was cancelled.
	StatusCancelled
)

// String returns a human-readable string representation of the status.
func (s ProcessStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if this is a terminal status (completed,
// failed, or cancelled).
func (s ProcessStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
