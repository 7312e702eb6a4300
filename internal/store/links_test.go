package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func activeLinkCount(t *testing.T, s *Store, sessionID string) int {
	t.Helper()
	var n int
	err := s.DB().QueryRow(
		`SELECT COUNT(*) FROM claude_session_links WHERE klaude_session_id = ? AND ended_at IS NULL`,
		sessionID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestActivateLink(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	err := s.ActivateLink(&ClaudeSessionLink{
		SessionID:       sess.ID,
		ClaudeSessionID: "conv-1",
		TranscriptPath:  "/tmp/conv-1.jsonl",
		Source:          LinkSourceStartup,
	})
	require.NoError(t, err)

	link, err := s.GetActiveLink(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "conv-1", link.ClaudeSessionID)
	require.True(t, link.Active())

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "conv-1", got.LastClaudeSessionID, "Activation caches the id on the session row")
}

func TestActivateLink_ReplacesActive(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	require.NoError(t, s.ActivateLink(&ClaudeSessionLink{SessionID: sess.ID, ClaudeSessionID: "conv-1", Source: LinkSourceStartup}))
	require.NoError(t, s.ActivateLink(&ClaudeSessionLink{SessionID: sess.ID, ClaudeSessionID: "conv-2", Source: LinkSourceResume}))

	require.Equal(t, 1, activeLinkCount(t, s, sess.ID))

	link, err := s.GetActiveLink(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "conv-2", link.ClaudeSessionID)

	all, err := s.ListLinks(sess.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.False(t, all[0].Active(), "conv-1 should be closed")
}

func TestActivateLink_ReactivatesKnownConversation(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	require.NoError(t, s.ActivateLink(&ClaudeSessionLink{SessionID: sess.ID, ClaudeSessionID: "conv-1", Source: LinkSourceStartup}))
	require.NoError(t, s.ActivateLink(&ClaudeSessionLink{SessionID: sess.ID, ClaudeSessionID: "conv-2", Source: LinkSourceRuntime}))

	// Checking out back to conv-1 reopens the same row instead of
	// violating the claude_session_id uniqueness.
	require.NoError(t, s.ActivateLink(&ClaudeSessionLink{SessionID: sess.ID, ClaudeSessionID: "conv-1", Source: LinkSourceResume}))

	all, err := s.ListLinks(sess.ID)
	require.NoError(t, err)
	require.Len(t, all, 2, "Reactivation must not create a duplicate row")
	require.Equal(t, 1, activeLinkCount(t, s, sess.ID))

	link, err := s.GetActiveLink(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "conv-1", link.ClaudeSessionID)
	require.Equal(t, LinkSourceResume, link.Source)
}

func TestGetLatestLink_IncludesEnded(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	require.NoError(t, s.ActivateLink(&ClaudeSessionLink{SessionID: sess.ID, ClaudeSessionID: "conv-1", Source: LinkSourceStartup}))
	require.NoError(t, s.EndActiveLinks(sess.ID))

	_, err := s.GetActiveLink(sess.ID)
	require.ErrorIs(t, err, ErrNotFound)

	latest, err := s.GetLatestLink(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "conv-1", latest.ClaudeSessionID)
	require.False(t, latest.Active())
}

func TestEndLinkByClaudeID(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	require.NoError(t, s.ActivateLink(&ClaudeSessionLink{SessionID: sess.ID, ClaudeSessionID: "conv-1", Source: LinkSourceStartup}))
	require.NoError(t, s.EndLinkByClaudeID("conv-1"))
	require.Equal(t, 0, activeLinkCount(t, s, sess.ID))
}

// TestActivateLink_Property: after any sequence of activations, a session
// has at most one active link and it is the most recently activated id.
func TestActivateLink_Property(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		s, err := OpenMemory()
		require.NoError(t, err)
		defer func() { _ = s.Close() }()
		p, err := s.EnsureProject("/prop")
		require.NoError(t, err)
		sess := &Session{ID: "prop-sess", ProjectID: p.ID, AgentType: "general-purpose"}
		require.NoError(t, s.CreateSession(sess))

		numOps := rapid.IntRange(1, 20).Draw(r, "numOps")
		var last string
		for i := 0; i < numOps; i++ {
			conv := fmt.Sprintf("conv-%d", rapid.IntRange(0, 4).Draw(r, "conv"))
			require.NoError(t, s.ActivateLink(&ClaudeSessionLink{
				SessionID:       sess.ID,
				ClaudeSessionID: conv,
				Source:          LinkSourceRuntime,
			}))
			last = conv
		}

		var n int
		require.NoError(t, s.DB().QueryRow(
			`SELECT COUNT(*) FROM claude_session_links WHERE klaude_session_id = ? AND ended_at IS NULL`,
			sess.ID).Scan(&n))
		require.Equal(t, 1, n, "Exactly one link may be active")

		link, err := s.GetActiveLink(sess.ID)
		require.NoError(t, err)
		require.Equal(t, last, link.ClaudeSessionID)

		got, err := s.GetSession(sess.ID)
		require.NoError(t, err)
		require.Equal(t, last, got.LastClaudeSessionID)
	})
}
