package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readSettings(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var settings map[string]any
	require.NoError(t, json.Unmarshal(data, &settings))
	return settings
}

func hookCommands(t *testing.T, settings map[string]any, event string) []string {
	t.Helper()
	hooks, ok := settings["hooks"].(map[string]any)
	require.True(t, ok, "settings should have a hooks section")
	entries, _ := hooks[event].([]any)

	var commands []string
	for _, entry := range entries {
		m, _ := entry.(map[string]any)
		inner, _ := m["hooks"].([]any)
		for _, h := range inner {
			hm, _ := h.(map[string]any)
			if cmd, ok := hm["command"].(string); ok {
				commands = append(commands, cmd)
			}
		}
	}
	return commands
}

func TestInstallHookEntries_FreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claude", "settings.json")

	changed, err := installHookEntries(path)
	require.NoError(t, err)
	require.True(t, changed)

	settings := readSettings(t, path)
	require.Equal(t, []string{"klaude hook session-start"}, hookCommands(t, settings, "SessionStart"))
	require.Equal(t, []string{"klaude hook session-end"}, hookCommands(t, settings, "SessionEnd"))
}

func TestInstallHookEntries_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	changed, err := installHookEntries(path)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = installHookEntries(path)
	require.NoError(t, err)
	require.False(t, changed)

	settings := readSettings(t, path)
	require.Len(t, hookCommands(t, settings, "SessionStart"), 1)
	require.Len(t, hookCommands(t, settings, "SessionEnd"), 1)
}

func TestInstallHookEntries_PreservesExistingSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	existing := `{
		"model": "opus",
		"hooks": {
			"SessionStart": [
				{"matcher": "startup", "hooks": [{"type": "command", "command": "echo hi"}]}
			]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o600))

	changed, err := installHookEntries(path)
	require.NoError(t, err)
	require.True(t, changed)

	settings := readSettings(t, path)
	require.Equal(t, "opus", settings["model"])
	require.Equal(t,
		[]string{"echo hi", "klaude hook session-start"},
		hookCommands(t, settings, "SessionStart"))
	require.Equal(t,
		[]string{"klaude hook session-end"},
		hookCommands(t, settings, "SessionEnd"))
}

func TestInstallHookEntries_MalformedSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := installHookEntries(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing")
}

func TestHasHookCommand(t *testing.T) {
	entries := []any{
		map[string]any{
			"hooks": []any{
				map[string]any{"type": "command", "command": "klaude hook session-start"},
			},
		},
	}
	require.True(t, hasHookCommand(entries, "klaude hook session-start"))
	require.False(t, hasHookCommand(entries, "klaude hook session-end"))
	require.False(t, hasHookCommand(nil, "anything"))
}
