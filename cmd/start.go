package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

var (
	startParent   string
	startCount    int
	startCheckout bool
	startShare    bool
	startDetach   bool
	startJSON     bool
)

var startCmd = &cobra.Command{
	Use:   "start <agent-type> [prompt]",
	Short: "Spawn a headless agent session",
	Long: `Create a child session and launch its headless runtime. The prompt is
taken from the arguments, or from stdin when piped.

Inside a managed TUI the new session hangs off the current one; use
--parent to attach elsewhere.

Examples:
  klaude start general-purpose "Find the flaky test in CI"
  git diff | klaude start reviewer "Review this diff"
  klaude start worker "Fan out" --count 3 --detach
  klaude start explorer "Dig in" --checkout`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startParent, "parent", "p", "", "parent session (default: current)")
	startCmd.Flags().IntVarP(&startCount, "count", "n", 1, "number of identical agents to spawn")
	startCmd.Flags().BoolVar(&startCheckout, "checkout", false, "switch the TUI to the new session after spawn")
	startCmd.Flags().BoolVar(&startShare, "share", false, "resume the parent's conversation in the child")
	startCmd.Flags().BoolVarP(&startDetach, "detach", "d", false, "return without waiting for the first runtime event")
	startCmd.Flags().BoolVar(&startJSON, "json", false, "emit the spawn result as JSON")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args[1:], " ")
	if stdin, err := readPipedStdin(); err != nil {
		return err
	} else if stdin != "" {
		if prompt != "" {
			prompt = prompt + "\n\n" + stdin
		} else {
			prompt = stdin
		}
	}
	if strings.TrimSpace(prompt) == "" {
		return usageErrorf("a prompt is required (argument or piped stdin)")
	}

	client, _, err := dialInstance()
	if err != nil {
		return err
	}

	parent := startParent
	if parent == "" {
		parent = currentSessionID()
	}

	payload := wire.StartAgentPayload{
		AgentType:       args[0],
		Prompt:          prompt,
		ParentSessionID: parent,
		AgentCount:      startCount,
	}
	if startCheckout || startShare || startDetach {
		payload.Options = &wire.StartAgentOptions{
			Checkout: startCheckout,
			Share:    startShare,
			Detach:   startDetach,
		}
	}

	var result wire.StartAgentResult
	if err := client.CallInto(wire.ActionStartAgent, payload, &result); err != nil {
		return err
	}

	if startJSON {
		return printJSON(result)
	}
	for _, a := range result.Agents {
		fmt.Printf("started %s session %s (%s runtime)\n", a.AgentType, store.ShortID(a.SessionID), a.Runtime)
	}
	return nil
}

// readPipedStdin returns stdin's content when it is a pipe or file,
// empty when it is the terminal.
func readPipedStdin() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", nil
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
