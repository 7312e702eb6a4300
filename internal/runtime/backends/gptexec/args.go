package gptexec

import "github.com/zjrosen/klaude/internal/runtime"

// buildArgs constructs the command line arguments for the exec backend.
//
// For new sessions:
//   - Base: ["exec", "--json"]
//   - Model: ["-m", "<model>"]
//   - Bypass permissions: ["--dangerously-bypass-approvals-and-sandbox"]
//   - Working directory: ["-C", "<dir>"]
//   - MCP config: ["-c", "<config>"]
//   - Prompt: final positional argument
//
// For resume sessions:
//   - Base: ["exec", "--json", "resume", "<thread-id>"]
//   - MCP config: ["-c", "<config>"]
//   - Prompt: optional final argument
//
// The resume subcommand does not support -m or -C flags.
func buildArgs(cfg runtime.Config) []string {
	args := []string{"exec", "--json"}

	// The backend has no system prompt flag; prefix the prompt instead.
	prompt := cfg.Prompt
	if cfg.SystemPrompt != "" {
		prompt = cfg.SystemPrompt + "\n\n" + cfg.Prompt
	}

	if cfg.ResumeID != "" {
		args = append(args, "resume", cfg.ResumeID)

		if cfg.MCPConfig != "" {
			args = append(args, "-c", cfg.MCPConfig)
		}

		if prompt != "" {
			args = append(args, prompt)
		}
		return args
	}

	if cfg.Model != "" {
		args = append(args, "-m", cfg.Model)
	}

	if cfg.PermissionMode == "bypassPermissions" {
		args = append(args, "--dangerously-bypass-approvals-and-sandbox")
	}

	if cfg.WorkDir != "" {
		args = append(args, "-C", cfg.WorkDir)
	}

	if cfg.MCPConfig != "" {
		args = append(args, "-c", cfg.MCPConfig)
	}

	if prompt != "" {
		args = append(args, prompt)
	}

	return args
}
