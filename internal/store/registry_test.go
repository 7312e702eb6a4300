package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInstanceRegistry(t *testing.T) {
	dir := t.TempDir()
	reg := NewInstanceRegistry(dir, "abc123")

	entries, err := reg.Load()
	require.NoError(t, err)
	require.Empty(t, entries, "Missing file reads as empty registry")

	self := RegistryEntry{
		InstanceID: "inst-1",
		Pid:        os.Getpid(),
		RootPath:   "/repo",
		SocketPath: "/tmp/inst-1.sock",
		StartedAt:  time.Now(),
	}
	require.NoError(t, reg.Register(self))

	entries, err = reg.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "inst-1", entries[0].InstanceID)

	// Registering again replaces, not duplicates.
	self.SocketPath = "/tmp/inst-1b.sock"
	require.NoError(t, reg.Register(self))
	entries, err = reg.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/tmp/inst-1b.sock", entries[0].SocketPath)

	require.NoError(t, reg.Deregister("inst-1"))
	entries, err = reg.Load()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestInstanceRegistry_PrunesDeadPids(t *testing.T) {
	dir := t.TempDir()
	reg := NewInstanceRegistry(dir, "abc123")

	// Pid 1 is init and always alive on Unix; an absurd pid is not.
	require.NoError(t, reg.Register(RegistryEntry{InstanceID: "dead", Pid: 999999999, SocketPath: "/tmp/dead.sock"}))
	require.NoError(t, reg.Register(RegistryEntry{InstanceID: "live", Pid: os.Getpid(), SocketPath: "/tmp/live.sock"}))

	alive, err := reg.LoadAlive()
	require.NoError(t, err)
	require.Len(t, alive, 1)
	require.Equal(t, "live", alive[0].InstanceID)

	// The prune is persisted.
	entries, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestInstanceRegistry_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	reg := NewInstanceRegistry(dir, "abc123")

	require.NoError(t, os.MkdirAll(filepath.Dir(reg.Path()), 0o700))
	require.NoError(t, os.WriteFile(reg.Path(), []byte("not json"), 0o600))

	_, err := reg.Load()
	require.Error(t, err)
}
