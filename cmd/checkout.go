package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

var checkoutWait float64

var checkoutCmd = &cobra.Command{
	Use:   "checkout [session]",
	Short: "Switch the foreground TUI to another session",
	Long: `Swap the wrapper's foreground TUI to the given session, resuming its
recorded conversation. Without an argument the TUI returns to the
current session's parent.

The wrapper waits up to --wait seconds for the target's conversation id
to appear before giving up; 0 disables waiting.

Examples:
  klaude checkout 4X2M9Q
  klaude checkout            # back to the parent
  klaude checkout 4X2M9Q --wait 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckout,
}

func init() {
	checkoutCmd.Flags().Float64VarP(&checkoutWait, "wait", "w", 5, "seconds to wait for the target's conversation id")
	rootCmd.AddCommand(checkoutCmd)
}

func runCheckout(cmd *cobra.Command, args []string) error {
	client, _, err := dialInstance()
	if err != nil {
		return err
	}

	payload := wire.CheckoutPayload{
		FromSessionID: currentSessionID(),
		WaitSeconds:   waitSecondsArg(cmd, "wait"),
	}
	if len(args) == 1 {
		payload.SessionID = args[0]
	}

	var result wire.CheckoutResult
	if err := client.CallInto(wire.ActionCheckout, payload, &result); err != nil {
		return err
	}

	switch result.Status {
	case wire.CheckoutAlreadyActive:
		fmt.Printf("session %s is already on screen\n", store.ShortID(result.SessionID))
	default:
		fmt.Printf("switched to session %s", store.ShortID(result.SessionID))
		if result.ClaudeSessionID != "" {
			fmt.Printf(" (conversation %s)", result.ClaudeSessionID)
		}
		fmt.Println()
	}
	return nil
}
