package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/paths"
)

func TestNewTestStore_CreatesSchema(t *testing.T) {
	s := NewTestStore(t)

	// Verify all tables exist by querying sqlite_master
	var count int
	err := s.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('projects', 'instances', 'sessions', 'claude_session_links', 'runtime_processes', 'events', 'agent_updates')`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 7, count, "expected 7 tables")
}

func TestNewTestStore_TablesQueryable(t *testing.T) {
	s := NewTestStore(t)

	tables := []string{"projects", "instances", "sessions", "claude_session_links", "runtime_processes", "events", "agent_updates"}
	for _, table := range tables {
		var count int
		err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		require.NoError(t, err, "table %s should be queryable", table)
	}
}

func TestScratchHome_OverridesDataRoot(t *testing.T) {
	dir := ScratchHome(t)

	require.Equal(t, dir, os.Getenv(paths.EnvHome))
	require.Equal(t, dir, paths.Home(), "paths.Home should resolve to the scratch dir")
}
