package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

var interruptSignal string

var interruptCmd = &cobra.Command{
	Use:   "interrupt <session>",
	Short: "Signal a session's live runtime",
	Long: `Send a signal to the agent runtime process of a session. The default
SIGINT asks the agent to stop what it is doing; SIGTERM and SIGKILL
escalate.

Examples:
  klaude interrupt 4X2M9Q
  klaude interrupt 4X2M9Q --signal SIGTERM`,
	Args: cobra.ExactArgs(1),
	RunE: runInterrupt,
}

func init() {
	interruptCmd.Flags().StringVarP(&interruptSignal, "signal", "s", "", "signal name (default SIGINT)")
	rootCmd.AddCommand(interruptCmd)
}

func runInterrupt(cmd *cobra.Command, args []string) error {
	client, _, err := dialInstance()
	if err != nil {
		return err
	}

	payload := wire.InterruptPayload{
		SessionID: args[0],
		Signal:    interruptSignal,
	}

	var result wire.InterruptResult
	if err := client.CallInto(wire.ActionInterrupt, payload, &result); err != nil {
		return err
	}
	fmt.Printf("sent %s to session %s (pid %d)\n", result.Signal, store.ShortID(result.SessionID), result.Pid)
	return nil
}
