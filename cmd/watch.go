package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/ui/watch"
	"github.com/zjrosen/klaude/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live session dashboard for this project",
	Long: `Open a full-screen dashboard over the project's sessions. The view
reloads whenever any klaude instance writes to the shared database, so
agents started from other terminals show up as they run.

The dashboard is read-only; use 'klaude checkout' and 'klaude message'
to act on sessions. Press q to quit.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	st, project, err := openProject()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	detectColors()

	// Change-driven refresh is best effort: without the watcher the
	// dashboard still reloads on its periodic tick.
	var changes <-chan struct{}
	if w, err := watcher.New(watcher.DefaultConfig(paths.DBPath(paths.Home()))); err == nil {
		if ch, err := w.Start(); err == nil {
			changes = ch
			defer func() { _ = w.Stop() }()
		}
	}

	m := watch.New(watch.Config{Store: st, Project: project, Changes: changes})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
