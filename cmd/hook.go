package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wrapper"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "TUI lifecycle hooks",
	Long: `Hooks the TUI invokes on conversation lifecycle events. session-start
and session-end read a JSON payload from stdin and resolve the owning
wrapper session from the environment; they always exit 0 so a hook
problem never breaks the TUI.

'hook install' writes the hook entries into the TUI settings file.`,
}

var hookInstallUser bool

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the hook entries into the TUI settings file",
	Long: `Add SessionStart/SessionEnd hook entries invoking klaude to the TUI
settings file. Existing settings are preserved; installing twice is a
no-op.

Targets .claude/settings.json in the current project, or the user-level
file with --user.`,
	Args: cobra.NoArgs,
	RunE: runHookInstall,
}

var hookSessionStartCmd = &cobra.Command{
	Use:   "session-start",
	Short: "Record the conversation id for a fresh or resumed TUI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runHook("session-start", wrapper.HandleSessionStart)
		return nil
	},
}

var hookSessionEndCmd = &cobra.Command{
	Use:   "session-end",
	Short: "Close the conversation link when a TUI session ends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runHook("session-end", wrapper.HandleSessionEnd)
		return nil
	},
}

func init() {
	hookInstallCmd.Flags().BoolVar(&hookInstallUser, "user", false, "install into ~/.claude/settings.json instead of the project's")
	hookCmd.AddCommand(hookInstallCmd, hookSessionStartCmd, hookSessionEndCmd)
	rootCmd.AddCommand(hookCmd)
}

// runHook drives one hook invocation end to end. Every failure path
// logs and returns; the TUI must never see a non-zero exit.
func runHook(name string, handle func(*store.Store, wrapper.HookEnv, wrapper.HookPayload) error) {
	env := wrapper.HookEnvFromOS()
	if !env.Managed() {
		return
	}

	home := paths.Home()
	if cleanup, err := log.Init(cfg.Logging.ResolveLogFile(home)); err == nil {
		defer cleanup()
	}

	var payload wrapper.HookPayload
	data, err := io.ReadAll(os.Stdin)
	if err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Warn(log.CatHook, "Hook payload did not parse", "hook", name, "error", err)
			return
		}
	}

	st, err := store.Open(paths.DBPath(home))
	if err != nil {
		log.ErrorErr(log.CatHook, "Hook could not open store", err, "hook", name)
		return
	}
	defer func() { _ = st.Close() }()

	if err := handle(st, env, payload); err != nil {
		log.ErrorErr(log.CatHook, "Hook handler failed", err,
			"hook", name, "sessionId", env.SessionID, "claudeSessionId", payload.SessionID)
		return
	}
	log.Info(log.CatHook, "Hook handled", "hook", name,
		"sessionId", env.SessionID, "claudeSessionId", payload.SessionID)
}

func runHookInstall(cmd *cobra.Command, args []string) error {
	var settingsPath string
	if hookInstallUser {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		settingsPath = filepath.Join(home, ".claude", "settings.json")
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		settingsPath = filepath.Join(cwd, ".claude", "settings.json")
	}

	changed, err := installHookEntries(settingsPath)
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("installed klaude hooks in %s\n", settingsPath)
	} else {
		fmt.Printf("klaude hooks already installed in %s\n", settingsPath)
	}
	return nil
}

// installHookEntries merges the SessionStart/SessionEnd entries into the
// settings file, preserving everything else in it.
func installHookEntries(settingsPath string) (bool, error) {
	settings := map[string]any{}
	if data, err := os.ReadFile(settingsPath); err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return false, fmt.Errorf("parsing %s: %w", settingsPath, err)
		}
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("reading %s: %w", settingsPath, err)
	}

	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		hooks = map[string]any{}
	}
	settings["hooks"] = hooks

	changed := false
	for event, sub := range map[string]string{
		"SessionStart": "session-start",
		"SessionEnd":   "session-end",
	} {
		command := "klaude hook " + sub
		entries, _ := hooks[event].([]any)
		if hasHookCommand(entries, command) {
			continue
		}
		entries = append(entries, map[string]any{
			"hooks": []any{
				map[string]any{"type": "command", "command": command},
			},
		})
		hooks[event] = entries
		changed = true
	}
	if !changed {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o750); err != nil {
		return false, fmt.Errorf("creating settings directory: %w", err)
	}
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.WriteFile(settingsPath, append(out, '\n'), 0o600); err != nil {
		return false, fmt.Errorf("writing %s: %w", settingsPath, err)
	}
	return true, nil
}

func hasHookCommand(entries []any, command string) bool {
	for _, entry := range entries {
		m, _ := entry.(map[string]any)
		inner, _ := m["hooks"].([]any)
		for _, h := range inner {
			hm, _ := h.(map[string]any)
			if hm["command"] == command {
				return true
			}
		}
	}
	return false
}
