package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/format"
	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

var instancesJSON bool

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List live wrapper instances for this project",
	Long: `List the wrapper instances registered for the current project. Entries
whose process is gone are pruned from the registry as a side effect.

Each live instance is asked for its current session over the socket.`,
	Args: cobra.NoArgs,
	RunE: runInstances,
}

func init() {
	instancesCmd.Flags().BoolVar(&instancesJSON, "json", false, "emit raw JSON")
	rootCmd.AddCommand(instancesCmd)
}

type instanceRow struct {
	InstanceID    string    `json:"instanceId"`
	Pid           int       `json:"pid"`
	Tty           string    `json:"tty,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	SocketPath    string    `json:"socketPath"`
	SessionID     string    `json:"sessionId,omitempty"`
	SessionStatus string    `json:"sessionStatus,omitempty"`
	Switching     bool      `json:"switching,omitempty"`
}

func runInstances(cmd *cobra.Command, args []string) error {
	home, hash, err := currentProjectHash()
	if err != nil {
		return err
	}
	reg := store.NewInstanceRegistry(paths.RegistryDir(home), hash)
	entries, err := reg.LoadAlive()
	if err != nil {
		return fmt.Errorf("reading instance registry: %w", err)
	}

	rows := make([]instanceRow, 0, len(entries))
	for _, e := range entries {
		row := instanceRow{
			InstanceID: e.InstanceID,
			Pid:        e.Pid,
			Tty:        e.Tty,
			StartedAt:  e.StartedAt,
			SocketPath: e.SocketPath,
		}
		// Best effort: a wedged instance still lists, just without
		// its current session.
		var status wire.StatusResult
		if err := wire.NewClient(e.SocketPath).WithTimeout(2 * time.Second).
			CallInto(wire.ActionStatus, nil, &status); err == nil {
			row.SessionID = status.SessionID
			row.SessionStatus = status.SessionStatus
			row.Switching = status.Switching
		}
		rows = append(rows, row)
	}

	if instancesJSON {
		return printJSON(rows)
	}

	detectColors()
	if len(rows) == 0 {
		fmt.Println(format.MutedStyle.Render("no live instances"))
		return nil
	}

	tbl := format.NewTable("INSTANCE", "PID", "TTY", "STARTED", "SESSION", "STATUS")
	for _, row := range rows {
		session, status := row.SessionID, row.SessionStatus
		if session == "" {
			session, status = "-", "-"
		} else {
			session = store.ShortID(session)
		}
		if row.Switching {
			status += " (switching)"
		}
		tbl.AddRow(
			store.ShortID(row.InstanceID),
			fmt.Sprintf("%d", row.Pid),
			row.Tty,
			row.StartedAt.Local().Format("Jan 02 15:04"),
			session,
			status,
		)
	}
	fmt.Print(tbl.Render())
	return nil
}
