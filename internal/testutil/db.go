// Package testutil provides test fixtures for the shared session store.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/store"
)

// NewTestStore creates an in-memory session store with the full schema.
// The store is closed automatically when the test finishes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ScratchHome points KLAUDE_HOME at a fresh temp directory for the
// duration of the test, isolating anything that touches the data root.
func ScratchHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(paths.EnvHome, dir)
	return dir
}
