package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/agent"
	"github.com/zjrosen/klaude/internal/format"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available agent definitions",
	Long: `List the agent definitions discovered for this project. Project
definitions (.claude/agents/*.md) shadow home ones (~/.claude/agents).`,
	Args: cobra.NoArgs,
	RunE: runAgentsList,
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <agent-type>",
	Short: "Show one agent definition",
	Long:  `Print an agent definition's frontmatter summary and render its instruction body.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsShow,
}

func init() {
	agentsCmd.AddCommand(agentsShowCmd)
	rootCmd.AddCommand(agentsCmd)
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	rootPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	defs, err := agent.List(rootPath)
	if err != nil {
		return fmt.Errorf("listing agent definitions: %w", err)
	}

	detectColors()
	if len(defs) == 0 {
		fmt.Println(format.MutedStyle.Render("no agent definitions found"))
		return nil
	}

	tbl := format.NewTable("TYPE", "NAME", "SOURCE", "RUNTIME", "DESCRIPTION")
	tbl.MaxColWidth = 60
	for _, def := range defs {
		runtimeCol := def.Runtime
		if runtimeCol == "" && def.Model != "" {
			runtimeCol = def.Model
		}
		tbl.AddRow(def.Type, def.Name, def.Source.String(), runtimeCol, def.Description)
	}
	fmt.Print(tbl.Render())
	return nil
}

func runAgentsShow(cmd *cobra.Command, args []string) error {
	rootPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	def, err := agent.Load(rootPath, args[0])
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return fmt.Errorf("no agent definition named %q (see 'klaude agents')", args[0])
		}
		return err
	}

	detectColors()
	fmt.Println(format.HeaderStyle.Render(def.Type))
	meta := format.NewTable()
	meta.AddRow("name", def.Name)
	if def.Description != "" {
		meta.AddRow("description", def.Description)
	}
	if def.Model != "" {
		meta.AddRow("model", def.Model)
	}
	if def.Runtime != "" {
		meta.AddRow("runtime", def.Runtime)
	}
	if len(def.AllowedAgents) > 0 {
		meta.AddRow("allowed agents", strings.Join(def.AllowedAgents, ", "))
	}
	meta.AddRow("source", fmt.Sprintf("%s (%s)", def.Source, def.FilePath))
	fmt.Print(meta.Render())

	fmt.Println()
	fmt.Print(format.RenderMarkdown(def.Instructions, terminalWidth()))
	return nil
}
