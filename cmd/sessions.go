package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zjrosen/klaude/internal/format"
	"github.com/zjrosen/klaude/internal/store"
)

var (
	sessionsTree bool
	sessionsAll  bool
	sessionsJSON bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions for the current project",
	Long: `List the project's session tree from the shared store.

By default only sessions that are active or running are shown; --all
includes finished ones. --tree renders parent/child structure.

Examples:
  klaude sessions
  klaude sessions --all --tree
  klaude sessions --json | jq '.[].id'`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().BoolVarP(&sessionsTree, "tree", "t", false, "render parent/child structure")
	sessionsCmd.Flags().BoolVarP(&sessionsAll, "all", "a", false, "include finished sessions")
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "emit raw JSON")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	st, project, err := openProject()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	sessions, err := st.ListProjectSessions(project.ID)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if !sessionsAll {
		sessions = filterLive(sessions)
	}

	if sessionsJSON {
		return printJSON(sessionRows(sessions))
	}

	detectColors()
	if len(sessions) == 0 {
		fmt.Println(format.MutedStyle.Render("no sessions"))
		return nil
	}

	if sessionsTree {
		roots := format.BuildSessionTree(sessions)
		fmt.Print(format.RenderSessionTree(roots, terminalWidth()))
		return nil
	}

	tbl := format.NewTable("ID", "AGENT", "STATUS", "CREATED", "TITLE")
	tbl.MaxColWidth = 48
	for _, s := range sessions {
		tbl.AddRow(
			store.ShortID(s.ID),
			s.AgentType,
			format.StatusBadge(s.Status),
			s.CreatedAt.Local().Format("Jan 02 15:04"),
			format.FirstLine(s.Title),
		)
	}
	fmt.Print(tbl.Render())
	return nil
}

// filterLive keeps unfinished sessions plus any finished ancestor a
// live session still hangs from, so --tree stays connected.
func filterLive(sessions []*store.Session) []*store.Session {
	byID := make(map[string]*store.Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}
	keep := make(map[string]bool)
	for _, s := range sessions {
		if s.Status != store.StatusActive && s.Status != store.StatusRunning {
			continue
		}
		for cur := s; cur != nil; cur = byID[cur.ParentID] {
			if keep[cur.ID] {
				break
			}
			keep[cur.ID] = true
		}
	}
	out := sessions[:0]
	for _, s := range sessions {
		if keep[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

type sessionRow struct {
	ID              string     `json:"id"`
	ParentID        string     `json:"parentId,omitempty"`
	AgentType       string     `json:"agentType"`
	Status          string     `json:"status"`
	Title           string     `json:"title,omitempty"`
	InstanceID      string     `json:"instanceId,omitempty"`
	ClaudeSessionID string     `json:"claudeSessionId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
}

func sessionRows(sessions []*store.Session) []sessionRow {
	rows := make([]sessionRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, sessionRow{
			ID:              s.ID,
			ParentID:        s.ParentID,
			AgentType:       s.AgentType,
			Status:          string(s.Status),
			Title:           s.Title,
			InstanceID:      s.InstanceID,
			ClaudeSessionID: s.LastClaudeSessionID,
			CreatedAt:       s.CreatedAt,
			EndedAt:         s.EndedAt,
		})
	}
	return rows
}

// terminalWidth is the render width for trees and wrapped text; falls
// back to 100 when stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w
	}
	return 100
}
