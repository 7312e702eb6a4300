package wrapper

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/pubsub"
	"github.com/zjrosen/klaude/internal/store"
)

// RecordedEvent is one event as seen by in-process subscribers such as
// the orchestrator's failure logger.
type RecordedEvent struct {
	SessionID string         `json:"sessionId"`
	Line      events.LogLine `json:"line"`
}

// Recorder writes every typed event three ways: a row in the shared
// store, a line in the session's JSONL log, and an in-process publish.
// The store insert is authoritative; a log file failure is logged and
// never undoes it.
type Recorder struct {
	st        *store.Store
	projectID int64
	logDir    string

	// Serializes insert+append so row order matches line order.
	mu     sync.Mutex
	broker *pubsub.Broker[RecordedEvent]
}

// NewRecorder builds a recorder writing JSONL logs under logDir, one
// file per session.
func NewRecorder(st *store.Store, projectID int64, logDir string) *Recorder {
	return &Recorder{
		st:        st,
		projectID: projectID,
		logDir:    logDir,
		broker:    pubsub.NewBroker[RecordedEvent](),
	}
}

// Record persists one event for a session.
func (r *Recorder) Record(sessionID string, kind events.Kind, payload any) error {
	line, err := events.NewLogLine(kind, payload)
	if err != nil {
		return err
	}

	r.mu.Lock()
	projectID := r.projectID
	_, err = r.st.InsertEvent(&store.Event{
		ProjectID:   &projectID,
		SessionID:   sessionID,
		Kind:        string(kind),
		PayloadJSON: string(line.Payload),
	})
	if err != nil {
		r.mu.Unlock()
		return err
	}

	if err := r.appendLine(sessionID, line); err != nil {
		log.ErrorErr(log.CatWrapper, "Failed to append session log line", err,
			"sessionId", sessionID, "kind", string(kind))
	}
	r.mu.Unlock()

	r.broker.Publish(pubsub.CreatedEvent, RecordedEvent{SessionID: sessionID, Line: line})
	return nil
}

func (r *Recorder) appendLine(sessionID string, line events.LogLine) error {
	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		return fmt.Errorf("creating session log dir: %w", err)
	}
	data, err := line.Encode()
	if err != nil {
		return err
	}
	path := filepath.Join(r.logDir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // path derived from session id
	if err != nil {
		return fmt.Errorf("opening session log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending session log: %w", err)
	}
	return nil
}

// LogPath returns the JSONL log location for a session.
func (r *Recorder) LogPath(sessionID string) string {
	return filepath.Join(r.logDir, sessionID+".jsonl")
}

// Events exposes the recorded-event stream to in-process subscribers.
func (r *Recorder) Events() pubsub.Subscriber[RecordedEvent] {
	return r.broker
}

// Close shuts down the subscriber broker.
func (r *Recorder) Close() {
	r.broker.Close()
}
