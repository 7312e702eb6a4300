package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/store"
)

// updateData holds data for a queued agent update to be inserted.
type updateData struct {
	sessionID       string
	parentSessionID string
	text            string
	acknowledged    bool
}

// Builder accumulates test data and inserts it in the correct order.
type Builder struct {
	t         *testing.T
	s         *store.Store
	rootPath  string
	instances []instanceData
	sessions  []sessionData
	links     []linkData
	updates   []updateData
}

// NewBuilder creates a builder for the given test store. Rows are scoped
// to a single project rooted at /repo unless WithProjectRoot overrides it.
func NewBuilder(t *testing.T, s *store.Store) *Builder {
	t.Helper()
	return &Builder{t: t, s: s, rootPath: "/repo"}
}

// WithProjectRoot sets the project root path all rows attach to.
func (b *Builder) WithProjectRoot(root string) *Builder {
	b.rootPath = root
	return b
}

// WithInstance adds a wrapper instance row.
func (b *Builder) WithInstance(id string, pid int) *Builder {
	b.instances = append(b.instances, instanceData{id: id, pid: pid})
	return b
}

// WithSession adds a session with optional configuration.
func (b *Builder) WithSession(id string, opts ...SessionOption) *Builder {
	sess := defaultSession(id)
	for _, opt := range opts {
		opt(&sess)
	}
	b.sessions = append(b.sessions, sess)
	return b
}

// WithLink adds a conversation link for a session.
func (b *Builder) WithLink(sessionID, claudeSessionID string, opts ...LinkOption) *Builder {
	link := defaultLink(sessionID, claudeSessionID)
	for _, opt := range opts {
		opt(&link)
	}
	b.links = append(b.links, link)
	return b
}

// WithUpdate queues an agent update from a child session to its parent.
func (b *Builder) WithUpdate(sessionID, parentSessionID, text string) *Builder {
	b.updates = append(b.updates, updateData{sessionID: sessionID, parentSessionID: parentSessionID, text: text})
	return b
}

// WithAcknowledgedUpdate queues an update that has already been delivered.
func (b *Builder) WithAcknowledgedUpdate(sessionID, parentSessionID, text string) *Builder {
	b.updates = append(b.updates, updateData{sessionID: sessionID, parentSessionID: parentSessionID, text: text, acknowledged: true})
	return b
}

// Build inserts all accumulated data and returns the project row.
// Insert order follows the foreign keys: project → instances → sessions
// (parents before children) → links → updates.
func (b *Builder) Build() *store.Project {
	b.t.Helper()
	project, err := b.s.EnsureProject(b.rootPath)
	require.NoError(b.t, err)

	for _, inst := range b.instances {
		b.insertInstance(project.ID, inst)
	}
	for _, sess := range orderByParent(b.sessions) {
		b.insertSession(project.ID, sess)
	}
	for _, link := range b.links {
		b.insertLink(link)
	}
	for _, u := range b.updates {
		b.insertUpdate(u)
	}
	return project
}

// orderByParent sorts sessions so every parent precedes its children,
// satisfying the parent_id foreign key whatever order With* calls came in.
// Sessions whose parent was never declared keep declaration order and let
// the foreign key report the mistake.
func orderByParent(sessions []sessionData) []sessionData {
	declared := make(map[string]bool, len(sessions))
	for _, sess := range sessions {
		declared[sess.id] = true
	}

	ordered := make([]sessionData, 0, len(sessions))
	inserted := make(map[string]bool, len(sessions))
	pending := sessions
	for len(pending) > 0 {
		var next []sessionData
		progressed := false
		for _, sess := range pending {
			if sess.parentID == "" || inserted[sess.parentID] || !declared[sess.parentID] {
				ordered = append(ordered, sess)
				inserted[sess.id] = true
				progressed = true
			} else {
				next = append(next, sess)
			}
		}
		if !progressed {
			// Parent cycle in the fixture; insert remainder as declared.
			return append(ordered, next...)
		}
		pending = next
	}
	return ordered
}

func (b *Builder) insertInstance(projectID int64, inst instanceData) {
	b.t.Helper()
	err := b.s.CreateInstance(&store.Instance{
		InstanceID: inst.id,
		ProjectID:  projectID,
		Pid:        inst.pid,
		Tty:        inst.tty,
	})
	require.NoError(b.t, err)
}

func (b *Builder) insertSession(projectID int64, sess sessionData) {
	b.t.Helper()
	err := b.s.CreateSession(&store.Session{
		ID:           sess.id,
		ProjectID:    projectID,
		ParentID:     sess.parentID,
		AgentType:    sess.agentType,
		InstanceID:   sess.instanceID,
		Title:        sess.title,
		Prompt:       sess.prompt,
		MetadataJSON: sess.metadata,
	})
	require.NoError(b.t, err)
	// Terminal sessions go through the production end path so ended_at
	// and status move together.
	if sess.status.Terminal() {
		require.NoError(b.t, b.s.MarkSessionEnded(sess.id, sess.status))
	} else if sess.status != store.StatusActive {
		require.NoError(b.t, b.s.UpdateSessionStatus(sess.id, sess.status))
	}
}

func (b *Builder) insertLink(link linkData) {
	b.t.Helper()
	err := b.s.ActivateLink(&store.ClaudeSessionLink{
		SessionID:       link.sessionID,
		ClaudeSessionID: link.claudeSessionID,
		TranscriptPath:  link.transcriptPath,
		Source:          link.source,
	})
	require.NoError(b.t, err)
	if link.ended {
		require.NoError(b.t, b.s.EndLinkByClaudeID(link.claudeSessionID))
	}
}

func (b *Builder) insertUpdate(u updateData) {
	b.t.Helper()
	update := &store.AgentUpdate{
		SessionID:       u.sessionID,
		ParentSessionID: u.parentSessionID,
		UpdateText:      u.text,
	}
	require.NoError(b.t, b.s.InsertAgentUpdate(update))
	if u.acknowledged {
		require.NoError(b.t, b.s.AcknowledgeAgentUpdates([]int64{update.ID}))
	}
}
