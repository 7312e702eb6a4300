package testutil

import "github.com/zjrosen/klaude/internal/store"

// instanceData holds data for a wrapper instance to be inserted.
type instanceData struct {
	id  string
	pid int
	tty string
}

// sessionData holds all data for a session to be inserted.
type sessionData struct {
	id         string
	parentID   string
	agentType  string
	instanceID string
	title      string
	prompt     string
	status     store.SessionStatus
	metadata   string
}

// defaultSession returns a sessionData with sensible defaults.
func defaultSession(id string) sessionData {
	return sessionData{
		id:        id,
		title:     id, // Default title is the ID
		agentType: "general-purpose",
		status:    store.StatusActive,
	}
}

// SessionOption configures a session during builder setup.
type SessionOption func(*sessionData)

// Title sets the session title.
func Title(title string) SessionOption {
	return func(s *sessionData) { s.title = title }
}

// Prompt sets the initial prompt the session was started with.
func Prompt(prompt string) SessionOption {
	return func(s *sessionData) { s.prompt = prompt }
}

// Status sets the session status. Terminal statuses are applied through
// the end path, so ended_at is populated too.
func Status(status store.SessionStatus) SessionOption {
	return func(s *sessionData) { s.status = status }
}

// AgentType sets the agent type (tui, general-purpose, ...).
func AgentType(t string) SessionOption {
	return func(s *sessionData) { s.agentType = t }
}

// Tui marks the session as a foreground TUI root.
func Tui() SessionOption {
	return func(s *sessionData) { s.agentType = store.AgentTypeTui }
}

// Parent sets the parent session id.
func Parent(id string) SessionOption {
	return func(s *sessionData) { s.parentID = id }
}

// Instance attaches the session to a wrapper instance.
func Instance(id string) SessionOption {
	return func(s *sessionData) { s.instanceID = id }
}

// Metadata sets the metadata JSON blob.
func Metadata(json string) SessionOption {
	return func(s *sessionData) { s.metadata = json }
}

// linkData holds data for a conversation link to be inserted.
type linkData struct {
	sessionID       string
	claudeSessionID string
	transcriptPath  string
	source          string
	ended           bool
}

// defaultLink returns a linkData with sensible defaults.
func defaultLink(sessionID, claudeSessionID string) linkData {
	return linkData{
		sessionID:       sessionID,
		claudeSessionID: claudeSessionID,
		source:          store.LinkSourceStartup,
	}
}

// LinkOption configures a conversation link during builder setup.
type LinkOption func(*linkData)

// LinkTranscript sets the transcript path recorded on the link.
func LinkTranscript(path string) LinkOption {
	return func(l *linkData) { l.transcriptPath = path }
}

// LinkSource sets how the link was observed (startup, resume, runtime).
func LinkSource(source string) LinkOption {
	return func(l *linkData) { l.source = source }
}

// LinkEnded closes the link after insertion, leaving it as history.
func LinkEnded() LinkOption {
	return func(l *linkData) { l.ended = true }
}
