package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// seedSession inserts a session with an explicit id so parent wiring in
// tests stays readable.
func seedSession(t *testing.T, s *Store, projectID int64, id, parentID string) *Session {
	t.Helper()
	sess := &Session{ID: id, ProjectID: projectID, ParentID: parentID, AgentType: "general-purpose"}
	require.NoError(t, s.CreateSession(sess))
	return sess
}

func TestCreateSession_Defaults(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")

	sess := &Session{ProjectID: p.ID, AgentType: AgentTypeTui}
	require.NoError(t, s.CreateSession(sess))
	require.Len(t, sess.ID, 26, "Missing id should be replaced with a ULID")
	require.Equal(t, StatusActive, sess.Status)

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, AgentTypeTui, got.AgentType)
	require.Empty(t, got.ParentID)
	require.False(t, got.CreatedAt.IsZero())
}

func TestGetSession_NotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetSession("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSessionID(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	seedSession(t, s, p.ID, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "")

	t.Run("full id", func(t *testing.T) {
		got, err := s.ResolveSessionID(p.ID, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		require.NoError(t, err)
		require.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", got.ID)
	})

	t.Run("suffix", func(t *testing.T) {
		got, err := s.ResolveSessionID(p.ID, "9G5FAV")
		require.NoError(t, err)
		require.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", got.ID)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := s.ResolveSessionID(p.ID, "ZZZZZZ")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ambiguous suffix", func(t *testing.T) {
		seedSession(t, s, p.ID, "01BX5ZZKBKACTAV9WEVG69G5FAV", "")
		_, err := s.ResolveSessionID(p.ID, "9G5FAV")
		require.Error(t, err)
		require.Contains(t, err.Error(), "ambiguous")
	})

	t.Run("scoped to project", func(t *testing.T) {
		other := seedProject(t, s, "/other")
		_, err := s.ResolveSessionID(other.ID, "9G5FAV")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("full id scoped to project", func(t *testing.T) {
		other := seedProject(t, s, "/elsewhere")
		_, err := s.ResolveSessionID(other.ID, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateSessionStatus_TerminalIsAbsorbing(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	require.NoError(t, s.UpdateSessionStatus(sess.ID, StatusRunning))
	require.NoError(t, s.UpdateSessionStatus(sess.ID, StatusDone))

	// A late callback must not resurrect the session.
	require.NoError(t, s.UpdateSessionStatus(sess.ID, StatusRunning))

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, got.Status)
}

func TestMarkSessionEnded(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	require.NoError(t, s.MarkSessionEnded(sess.ID, StatusFailed))

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.EndedAt)
	firstEnd := *got.EndedAt

	// A second end must keep the first timestamp and status.
	require.NoError(t, s.MarkSessionEnded(sess.ID, StatusDone))
	got, err = s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, firstEnd, *got.EndedAt)
}

func TestCascadeMarkSessionEnded(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	parent := seedSession(t, s, p.ID, "parent", "")
	childA := seedSession(t, s, p.ID, "child-a", parent.ID)
	childB := seedSession(t, s, p.ID, "child-b", parent.ID)
	grandchild := seedSession(t, s, p.ID, "grandchild", childA.ID)

	// A child that already finished keeps its status.
	require.NoError(t, s.MarkSessionEnded(childB.ID, StatusDone))

	require.NoError(t, s.CascadeMarkSessionEnded(parent.ID, StatusInterrupted))

	got, err := s.GetSession(parent.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInterrupted, got.Status)
	require.NotNil(t, got.EndedAt)

	got, err = s.GetSession(childA.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOrphaned, got.Status, "Live direct children are orphaned")

	got, err = s.GetSession(childB.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, got.Status, "Finished children keep their status")

	got, err = s.GetSession(grandchild.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, got.Status, "Cascade only touches direct children")
}

func TestCalculateSessionDepth(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")

	root := seedSession(t, s, p.ID, "root", "")
	child := seedSession(t, s, p.ID, "child", root.ID)
	grandchild := seedSession(t, s, p.ID, "grandchild", child.ID)

	depth, err := s.CalculateSessionDepth(root.ID)
	require.NoError(t, err)
	require.Equal(t, 0, depth)

	depth, err = s.CalculateSessionDepth(grandchild.ID)
	require.NoError(t, err)
	require.Equal(t, 2, depth)

	_, err = s.CalculateSessionDepth("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCalculateSessionDepth_CycleAborts(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	a := seedSession(t, s, p.ID, "cycle-a", "")
	b := seedSession(t, s, p.ID, "cycle-b", a.ID)

	// Corrupt the adjacency list directly; the walk must not spin.
	_, err := s.DB().Exec(`UPDATE sessions SET parent_id = ? WHERE id = ?`, b.ID, a.ID)
	require.NoError(t, err)

	_, err = s.CalculateSessionDepth(a.ID)
	require.ErrorIs(t, err, ErrDepthCycle)
}

// TestCalculateSessionDepth_Property checks depth equals chain length for
// arbitrary chains.
func TestCalculateSessionDepth_Property(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		s, err := OpenMemory()
		require.NoError(t, err)
		defer func() { _ = s.Close() }()
		p, err := s.EnsureProject("/prop")
		require.NoError(t, err)

		chainLen := rapid.IntRange(0, 12).Draw(r, "chainLen")
		parent := ""
		var leaf string
		for i := 0; i <= chainLen; i++ {
			id := fmt.Sprintf("chain-%d", i)
			sess := &Session{ID: id, ProjectID: p.ID, ParentID: parent, AgentType: "general-purpose"}
			require.NoError(t, s.CreateSession(sess))
			parent = id
			leaf = id
		}

		depth, err := s.CalculateSessionDepth(leaf)
		require.NoError(t, err)
		require.Equal(t, chainLen, depth)
	})
}

func TestListChildrenAndProjectSessions(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	root := seedSession(t, s, p.ID, "root", "")
	seedSession(t, s, p.ID, "kid-1", root.ID)
	seedSession(t, s, p.ID, "kid-2", root.ID)

	kids, err := s.ListChildren(root.ID)
	require.NoError(t, err)
	require.Len(t, kids, 2)

	all, err := s.ListProjectSessions(p.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestSetSessionClaudeSession(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	require.NoError(t, s.SetSessionClaudeSession(sess.ID, "conv-1", "/tmp/t1.jsonl"))
	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "conv-1", got.LastClaudeSessionID)
	require.Equal(t, "/tmp/t1.jsonl", got.LastTranscriptPath)

	// Empty transcript path must not clobber the cached one.
	require.NoError(t, s.SetSessionClaudeSession(sess.ID, "conv-2", ""))
	got, err = s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "conv-2", got.LastClaudeSessionID)
	require.Equal(t, "/tmp/t1.jsonl", got.LastTranscriptPath)
}
