package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/format"
	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/watcher"
)

var (
	logsFollow bool
	logsJSON   bool
)

var logsCmd = &cobra.Command{
	Use:   "logs [session]",
	Short: "Print a session's event log",
	Long: `Print the JSONL event log recorded for a session. The session may be a
full id or a unique suffix; inside a managed TUI it defaults to the
current session.

Examples:
  klaude logs
  klaude logs 4X2M9Q --follow
  klaude logs 4X2M9Q --json | jq .kind`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep printing as new events arrive")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "emit raw JSONL")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	ref := currentSessionID()
	if len(args) == 1 {
		ref = args[0]
	}
	if ref == "" {
		return usageErrorf("no session given and KLAUDE_SESSION_ID is not set")
	}

	st, project, err := openProject()
	if err != nil {
		return err
	}
	sess, err := st.ResolveSessionID(project.ID, ref)
	closeErr := st.Close()
	if err != nil {
		return fmt.Errorf("resolving session %q: %w", ref, err)
	}
	if closeErr != nil {
		return closeErr
	}

	logPath := paths.SessionLogPath(
		cfg.Wrapper.ResolveProjectsDir(paths.Home()),
		project.ProjectHash,
		sess.ID,
	)
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no events recorded for session %s yet", store.ShortID(sess.ID))
		}
		return fmt.Errorf("opening session log: %w", err)
	}
	defer func() { _ = f.Close() }()

	detectColors()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return streamLog(ctx, f, logPath, logsFollow)
}

// streamLog prints the log file, then (in follow mode) keeps reading as
// the recorder appends. Partial trailing lines are held until their
// newline arrives.
func streamLog(ctx context.Context, f *os.File, logPath string, follow bool) error {
	var changes <-chan struct{}
	if follow {
		w, err := watcher.New(watcher.Config{DBPath: logPath, DebounceDur: 200 * time.Millisecond})
		if err != nil {
			return fmt.Errorf("watching session log: %w", err)
		}
		defer func() { _ = w.Stop() }()
		changes, err = w.Start()
		if err != nil {
			return fmt.Errorf("watching session log: %w", err)
		}
	}

	reader := bufio.NewReader(f)
	var pending []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err == nil {
			printLogLine(bytes.TrimRight(pending, "\n"))
			pending = pending[:0]
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading session log: %w", err)
		}
		if !follow {
			if len(bytes.TrimSpace(pending)) > 0 {
				printLogLine(pending)
			}
			return nil
		}
		select {
		case <-changes:
		case <-ctx.Done():
			return nil
		}
	}
}

func printLogLine(raw []byte) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return
	}
	if logsJSON {
		fmt.Printf("%s\n", raw)
		return
	}

	line, err := events.ParseLogLine(raw)
	if err != nil {
		fmt.Printf("%s\n", raw)
		return
	}

	ts := format.MutedStyle.Render(line.Timestamp.Local().Format("15:04:05"))
	kind := kindStyle(line.Kind).Render(string(line.Kind))
	if summary := summarizeEvent(line); summary != "" {
		fmt.Printf("%s  %-34s %s\n", ts, kind, summary)
	} else {
		fmt.Printf("%s  %s\n", ts, kind)
	}
}

func kindStyle(kind events.Kind) lipgloss.Style {
	switch kind {
	case events.AgentRuntimeError, events.AgentRuntimeProcessError,
		events.AgentRuntimeRetry, events.AgentRuntimeRetryCancelled:
		return format.ErrorStyle
	case events.AgentRuntimeResult, events.AgentRuntimeDone, events.WrapperFinalized:
		return lipgloss.NewStyle().Foreground(format.StatusDoneColor)
	case events.WrapperCheckoutRequested, events.WrapperCheckoutActivated,
		events.WrapperCheckoutAlreadyActive, events.WrapperCheckoutResumeChoice,
		events.WrapperCheckoutRuntimeStop:
		return lipgloss.NewStyle().Foreground(format.StatusActiveColor)
	default:
		return format.SecondaryStyle
	}
}

// summarizeEvent pulls the most telling payload field for each kind.
// Free-form agent text is stripped of escapes and clipped to one line.
func summarizeEvent(line events.LogLine) string {
	switch line.Kind {
	case events.AgentRuntimeMessage, events.AgentRuntimeLog:
		if text := line.PayloadField("text"); text != "" {
			return format.Truncate(format.FirstLine(format.StripANSI(text)), 100)
		}
	case events.AgentRuntimeStderr:
		if text := line.PayloadField("line"); text != "" {
			return format.Truncate(format.FirstLine(format.StripANSI(text)), 100)
		}
	case events.AgentRuntimeStatus:
		return line.PayloadField("status")
	case events.AgentRuntimeError:
		return line.PayloadField("message")
	case events.AgentRuntimeResult:
		if text := line.PayloadField("result"); text != "" {
			return format.Truncate(format.FirstLine(format.StripANSI(text)), 100)
		}
	case events.AgentSessionCreated:
		return line.PayloadField("agentType")
	case events.WrapperCheckoutRequested:
		return "-> " + store.ShortID(line.PayloadField("targetSessionId"))
	case events.WrapperCheckoutResumeChoice:
		return line.PayloadField("claudeSessionId")
	}

	if len(line.Payload) == 0 {
		return ""
	}
	return format.Truncate(string(line.Payload), 100)
}
