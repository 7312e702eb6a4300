package wrapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

func TestResolveProjectSession(t *testing.T) {
	e := newTestEnv(t)
	sess := e.seedSession(t, "01JXAMPLE000000000000ABCDX", "", store.AgentTypeTui)

	t.Run("exact id", func(t *testing.T) {
		got, err := resolveProjectSession(e.st, e.project.ID, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("short suffix", func(t *testing.T) {
		got, err := resolveProjectSession(e.st, e.project.ID, store.ShortID(sess.ID))
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := resolveProjectSession(e.st, e.project.ID, "zzzzzz")
		require.Error(t, err)
		assert.Equal(t, wire.CodeSessionNotFound, wire.CodeOf(err))
	})

	t.Run("session in another project", func(t *testing.T) {
		other, err := e.st.EnsureProject("/elsewhere")
		require.NoError(t, err)
		foreign := &store.Session{ID: "01JFOREIGN00000000000ABCDX", ProjectID: other.ID, AgentType: store.AgentTypeTui}
		require.NoError(t, e.st.CreateSession(foreign))

		_, err = resolveProjectSession(e.st, e.project.ID, foreign.ID)
		require.Error(t, err)
		assert.Equal(t, wire.CodeSessionProjectMismatch, wire.CodeOf(err))
	})
}
