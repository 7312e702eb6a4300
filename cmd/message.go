package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/wire"
)

var messageWait float64

var messageCmd = &cobra.Command{
	Use:   "message <session> <prompt...>",
	Short: "Send a follow-up prompt to a running agent",
	Long: `Write a prompt into a native agent's stdin. When the session has no live
runtime the wrapper revives it, resuming its recorded conversation.

One-shot GPT runtimes cannot take follow-ups; messaging them fails with
E_AGENT_MESSAGE_UNSUPPORTED.

Examples:
  klaude message 4X2M9Q "Also check the integration tests"
  klaude message 4X2M9Q "Status?" --wait 0`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMessage,
}

func init() {
	messageCmd.Flags().Float64VarP(&messageWait, "wait", "w", 5, "seconds to wait for the session's conversation id when reviving")
	rootCmd.AddCommand(messageCmd)
}

func runMessage(cmd *cobra.Command, args []string) error {
	client, _, err := dialInstance()
	if err != nil {
		return err
	}

	payload := wire.MessagePayload{
		SessionID:   args[0],
		Prompt:      strings.Join(args[1:], " "),
		WaitSeconds: waitSecondsArg(cmd, "wait"),
	}

	var result wire.MessageResult
	if err := client.CallInto(wire.ActionMessage, payload, &result); err != nil {
		return err
	}
	fmt.Printf("%s (%d queued)\n", result.Status, result.MessagesQueued)
	return nil
}
