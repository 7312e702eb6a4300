package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/store"
)

func TestBuilder_WithSession(t *testing.T) {
	s := NewTestStore(t)

	NewBuilder(t, s).
		WithSession("sess-1").
		Build()

	sess, err := s.GetSession("sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", sess.Title) // default title is the ID
	require.Equal(t, "general-purpose", sess.AgentType)
	require.Equal(t, store.StatusActive, sess.Status)
	require.Nil(t, sess.EndedAt)
}

func TestBuilder_WithSession_AllOptions(t *testing.T) {
	s := NewTestStore(t)

	NewBuilder(t, s).
		WithInstance("inst-1", 1234).
		WithSession("sess-1",
			Title("review pass"),
			Prompt("review the diff"),
			AgentType("code-reviewer"),
			Instance("inst-1"),
			Metadata(`{"source":"test"}`),
		).
		WithSession("sess-2", Parent("sess-1")).
		Build()

	sess, err := s.GetSession("sess-1")
	require.NoError(t, err)
	require.Equal(t, "review pass", sess.Title)
	require.Equal(t, "review the diff", sess.Prompt)
	require.Equal(t, "code-reviewer", sess.AgentType)
	require.Equal(t, "inst-1", sess.InstanceID)
	require.Equal(t, `{"source":"test"}`, sess.MetadataJSON)

	child, err := s.GetSession("sess-2")
	require.NoError(t, err)
	require.Equal(t, "sess-1", child.ParentID)
}

func TestBuilder_TerminalStatusSetsEndedAt(t *testing.T) {
	s := NewTestStore(t)

	NewBuilder(t, s).
		WithSession("sess-1", Status(store.StatusDone)).
		WithSession("sess-2", Status(store.StatusRunning)).
		Build()

	done, err := s.GetSession("sess-1")
	require.NoError(t, err)
	require.Equal(t, store.StatusDone, done.Status)
	require.NotNil(t, done.EndedAt, "terminal status should set ended_at")

	running, err := s.GetSession("sess-2")
	require.NoError(t, err)
	require.Equal(t, store.StatusRunning, running.Status)
	require.Nil(t, running.EndedAt)
}

func TestBuilder_WithLink(t *testing.T) {
	s := NewTestStore(t)

	NewBuilder(t, s).
		WithSession("sess-1").
		WithLink("sess-1", "cc-live", LinkTranscript("/tmp/live.jsonl")).
		WithLink("sess-1", "cc-old", LinkEnded()).
		Build()

	// The ended link was activated last, so the session has no active link
	// but keeps both rows as history.
	links, err := s.ListLinks("sess-1")
	require.NoError(t, err)
	require.Len(t, links, 2)

	latest, err := s.GetLatestLink("sess-1")
	require.NoError(t, err)
	require.Equal(t, "cc-old", latest.ClaudeSessionID)
	require.False(t, latest.Active())
}

func TestBuilder_WithUpdate(t *testing.T) {
	s := NewTestStore(t)

	NewBuilder(t, s).
		WithInstance("inst-1", 99).
		WithSession("root-1", Tui(), Instance("inst-1")).
		WithSession("agent-1", Parent("root-1")).
		WithUpdate("agent-1", "root-1", "first note").
		WithAcknowledgedUpdate("agent-1", "root-1", "old note").
		Build()

	pending, err := s.ListPendingUpdatesForInstance("inst-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "first note", pending[0].UpdateText)

	all, err := s.ListSessionUpdates("agent-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestBuilder_InsertOrder(t *testing.T) {
	s := NewTestStore(t)

	// Sessions must land before links and updates or the foreign keys
	// would reject them, regardless of the order With* calls were made.
	NewBuilder(t, s).
		WithUpdate("agent-1", "root-1", "note").
		WithLink("agent-1", "cc-xyz").
		WithSession("agent-1", Parent("root-1")).
		WithSession("root-1", Tui()).
		Build()

	var count int
	err := s.DB().QueryRow(`SELECT COUNT(*) FROM claude_session_links`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBuilder_ChainMethods(t *testing.T) {
	s := NewTestStore(t)

	builder := NewBuilder(t, s)
	result := builder.
		WithSession("sess-1").
		WithSession("sess-2").
		WithLink("sess-1", "cc-1")

	require.Same(t, builder, result, "chained methods should return same builder")

	project := result.Build()
	require.NotNil(t, project)

	sessions, err := s.ListProjectSessions(project.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}

func TestBuilder_WithProjectRoot(t *testing.T) {
	s := NewTestStore(t)

	project := NewBuilder(t, s).
		WithProjectRoot("/work/other").
		WithSession("sess-1").
		Build()

	require.Equal(t, "/work/other", project.RootPath)

	sess, err := s.GetSession("sess-1")
	require.NoError(t, err)
	require.Equal(t, project.ID, sess.ProjectID)
}
