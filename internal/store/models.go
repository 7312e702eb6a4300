package store

import "time"

// SessionStatus is the lifecycle state of a logical session.
type SessionStatus string

const (
	StatusActive      SessionStatus = "active"
	StatusRunning     SessionStatus = "running"
	StatusDone        SessionStatus = "done"
	StatusFailed      SessionStatus = "failed"
	StatusInterrupted SessionStatus = "interrupted"
	StatusOrphaned    SessionStatus = "orphaned"
)

// Terminal reports whether the status is absorbing: once a session is
// done, failed, interrupted, or orphaned it never becomes active again.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusInterrupted, StatusOrphaned:
		return true
	default:
		return false
	}
}

// AgentTypeTui is the agent type of every instance's root session.
const AgentTypeTui = "tui"

// Link sources recorded on claude_session_links rows.
const (
	LinkSourceStartup = "startup"
	LinkSourceResume  = "resume"
	LinkSourceRuntime = "runtime"
)

// Project is a directory klaude has been started in.
type Project struct {
	ID          int64
	RootPath    string
	ProjectHash string
	CreatedAt   time.Time
}

// Instance is one running wrapper process for a project.
type Instance struct {
	InstanceID   string
	ProjectID    int64
	Pid          int
	Tty          string
	StartedAt    time.Time
	EndedAt      *time.Time
	ExitCode     *int
	MetadataJSON string
}

// Session is a logical unit of work: the foreground TUI conversation or
// one headless agent run. Sessions form a tree via ParentID.
type Session struct {
	ID                  string
	ProjectID           int64
	ParentID            string
	AgentType           string
	InstanceID          string
	Title               string
	Prompt              string
	Status              SessionStatus
	CreatedAt           time.Time
	UpdatedAt           *time.Time
	EndedAt             *time.Time
	LastClaudeSessionID string
	LastTranscriptPath  string
	CurrentProcessPid   *int
	MetadataJSON        string
}

// ClaudeSessionLink ties a logical session to one underlying TUI
// conversation id. A session accumulates links across resumes; the link
// with a null EndedAt is the active one.
type ClaudeSessionLink struct {
	ID              int64
	SessionID       string
	ClaudeSessionID string
	TranscriptPath  string
	Source          string
	StartedAt       time.Time
	EndedAt         *time.Time
}

// Active reports whether this link is the session's live conversation.
func (l ClaudeSessionLink) Active() bool { return l.EndedAt == nil }

// RuntimeProcess is a ledger row for one spawned child process.
type RuntimeProcess struct {
	ID        int64
	SessionID string
	Pid       int
	Kind      string
	StartedAt time.Time
	ExitedAt  *time.Time
	ExitCode  *int
	IsCurrent bool
}

// Event is one append-only record in the shared event stream.
type Event struct {
	ID          int64
	ProjectID   *int64
	SessionID   string
	Kind        string
	PayloadJSON string
	CreatedAt   time.Time
}

// AgentUpdate is a queued "[UPDATE] ..." notification pushed from a child
// session toward its parent.
type AgentUpdate struct {
	ID              int64
	SessionID       string
	ParentSessionID string
	UpdateText      string
	Acknowledged    bool
	CreatedAt       time.Time
}

// nowMillis is the canonical DB timestamp: Unix milliseconds keep link
// recency comparisons stable within a single second.
func nowMillis() int64 { return time.Now().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}
