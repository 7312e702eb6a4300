package gptstream

import "github.com/zjrosen/klaude/internal/runtime"

// buildArgs constructs the command line arguments for the stream
// backend:
//   - Base: ["--output-format", "stream-json"]
//   - Resume: ["--resume", "<session-id>"]
//   - Model: ["--model", "<model>"]
//   - Bypass permissions: ["--dangerously-skip-permissions"]
//   - System prompt: ["--system-prompt", "<text>"]
//   - MCP config: ["--mcp-config", "<json>"]
//   - Prompt: after a "--" separator so it is never consumed by a flag
func buildArgs(cfg runtime.Config) []string {
	args := []string{"--output-format", "stream-json"}

	if cfg.ResumeID != "" {
		args = append(args, "--resume", cfg.ResumeID)
	}

	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}

	if cfg.PermissionMode == "bypassPermissions" {
		args = append(args, "--dangerously-skip-permissions")
	}

	if cfg.SystemPrompt != "" {
		args = append(args, "--system-prompt", cfg.SystemPrompt)
	}

	if cfg.MCPConfig != "" {
		args = append(args, "--mcp-config", cfg.MCPConfig)
	}

	if cfg.Prompt != "" {
		args = append(args, "--", cfg.Prompt)
	}

	return args
}
