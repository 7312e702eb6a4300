package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuntimeProcessLedger(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	first := &RuntimeProcess{SessionID: sess.ID, Pid: 100, Kind: "native"}
	require.NoError(t, s.OpenRuntimeProcess(first))
	require.Greater(t, first.ID, int64(0))
	require.True(t, first.IsCurrent)

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentProcessPid)
	require.Equal(t, 100, *got.CurrentProcessPid)

	// A restart supersedes the first process.
	second := &RuntimeProcess{SessionID: sess.ID, Pid: 200, Kind: "native"}
	require.NoError(t, s.OpenRuntimeProcess(second))

	current, err := s.GetCurrentRuntimeProcess(sess.ID)
	require.NoError(t, err)
	require.Equal(t, 200, current.Pid)

	all, err := s.ListRuntimeProcesses(sess.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.False(t, all[0].IsCurrent, "Superseded process loses the current flag")

	got, err = s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, 200, *got.CurrentProcessPid)
}

func TestCloseRuntimeProcess(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	proc := &RuntimeProcess{SessionID: sess.ID, Pid: 100, Kind: "gpt-exec"}
	require.NoError(t, s.OpenRuntimeProcess(proc))

	code := 0
	require.NoError(t, s.CloseRuntimeProcess(proc.ID, &code))

	_, err := s.GetCurrentRuntimeProcess(sess.ID)
	require.ErrorIs(t, err, ErrNotFound)

	all, err := s.ListRuntimeProcesses(sess.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].ExitedAt)
	require.Equal(t, 0, *all[0].ExitCode)

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Nil(t, got.CurrentProcessPid, "Closing the current process clears the session pid")
}

func TestCloseRuntimeProcess_DoesNotClearNewerPid(t *testing.T) {
	s := setupTestStore(t)
	p := seedProject(t, s, "/repo")
	sess := seedSession(t, s, p.ID, "sess-1", "")

	first := &RuntimeProcess{SessionID: sess.ID, Pid: 100, Kind: "native"}
	require.NoError(t, s.OpenRuntimeProcess(first))
	second := &RuntimeProcess{SessionID: sess.ID, Pid: 200, Kind: "native"}
	require.NoError(t, s.OpenRuntimeProcess(second))

	// The stale process exits after its replacement spawned; the
	// session must keep pointing at the replacement.
	require.NoError(t, s.CloseRuntimeProcess(first.ID, nil))

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentProcessPid)
	require.Equal(t, 200, *got.CurrentProcessPid)
}
