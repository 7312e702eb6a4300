package wrapper

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/testutil"
)

func TestRecorder_Record(t *testing.T) {
	e := newTestEnv(t)
	sess := e.seedSession(t, "root-1", "", store.AgentTypeTui)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := e.rec.Events().Subscribe(ctx)

	require.NoError(t, e.rec.Record(sess.ID, events.WrapperStart, map[string]string{"rootPath": "/repo"}))

	rows, err := e.st.ListSessionEvents(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(events.WrapperStart), rows[0].Kind)
	assert.JSONEq(t, `{"rootPath":"/repo"}`, rows[0].PayloadJSON)
	require.NotNil(t, rows[0].ProjectID)
	assert.Equal(t, e.project.ID, *rows[0].ProjectID)

	data, err := os.ReadFile(e.rec.LogPath(sess.ID))
	require.NoError(t, err)
	line, err := events.ParseLogLine(bytes.TrimSpace(data))
	require.NoError(t, err)
	assert.Equal(t, events.WrapperStart, line.Kind)
	assert.False(t, line.Timestamp.IsZero())

	select {
	case ev := <-sub:
		assert.Equal(t, sess.ID, ev.Payload.SessionID)
		assert.Equal(t, events.WrapperStart, ev.Payload.Line.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}
}

func TestRecorder_NilPayload(t *testing.T) {
	e := newTestEnv(t)
	sess := e.seedSession(t, "root-1", "", store.AgentTypeTui)

	require.NoError(t, e.rec.Record(sess.ID, events.WrapperCheckoutAlreadyActive, nil))

	rows, err := e.st.ListSessionEvents(sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].PayloadJSON)
}

func TestRecorder_LogFileFailureKeepsRow(t *testing.T) {
	st := testutil.NewTestStore(t)
	project, err := st.EnsureProject("/repo")
	require.NoError(t, err)

	// Point the log dir at a regular file so every append fails.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	rec := NewRecorder(st, project.ID, blocked)
	defer rec.Close()

	sess := &store.Session{ProjectID: project.ID, AgentType: store.AgentTypeTui}
	require.NoError(t, st.CreateSession(sess))

	require.NoError(t, rec.Record(sess.ID, events.WrapperStart, nil),
		"a log file failure must not fail the record")

	rows, err := st.ListSessionEvents(sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRecorder_LinesAppendInOrder(t *testing.T) {
	e := newTestEnv(t)
	sess := e.seedSession(t, "root-1", "", store.AgentTypeTui)

	kinds := []events.Kind{events.WrapperStart, events.WrapperTuiSpawned, events.WrapperTuiExited}
	for _, kind := range kinds {
		require.NoError(t, e.rec.Record(sess.ID, kind, nil))
	}

	data, err := os.ReadFile(e.rec.LogPath(sess.ID))
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, len(kinds))
	for i, raw := range lines {
		line, err := events.ParseLogLine(raw)
		require.NoError(t, err)
		assert.Equal(t, kinds[i], line.Kind)
	}

	assert.Equal(t, []string{
		string(events.WrapperStart),
		string(events.WrapperTuiSpawned),
		string(events.WrapperTuiExited),
	}, e.eventKinds(t, sess.ID), "row order should match file order")
}
