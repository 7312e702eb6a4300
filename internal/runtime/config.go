package runtime

import "sort"

// Config holds backend-agnostic configuration for spawning a runtime
// child. Backends ignore fields their protocol cannot express.
type Config struct {
	// BinaryPath is the child executable. Resolved against known
	// install locations and PATH when not absolute.
	BinaryPath string

	// WorkDir is the working directory for the child.
	WorkDir string

	// SessionID is the klaude session this child belongs to. Exported
	// to the child environment and used in log fields.
	SessionID string

	// Prompt is the initial prompt.
	Prompt string

	// SystemPrompt is text appended to the agent's system instructions.
	// How it is delivered is backend-specific.
	SystemPrompt string

	// ResumeID is the underlying conversation to resume, when known.
	ResumeID string

	// Model and FallbackModel name the requested models. FallbackModel
	// is only honored by the native runner.
	Model         string
	FallbackModel string

	// PermissionMode is forwarded to the child ("bypassPermissions"
	// maps to each backend's skip-permissions flag).
	PermissionMode string

	// ReasoningEffort is forwarded to backends that support it.
	ReasoningEffort string

	// MCPConfig is the resolved MCP server configuration as a JSON
	// string. Empty means no MCP servers.
	MCPConfig string

	// Env holds extra environment variables appended to os.Environ().
	Env map[string]string

	// CommandFactory overrides exec.CommandContext in tests.
	CommandFactory CommandFactoryFunc
}

// BuildEnv renders Env as sorted KEY=VALUE pairs for exec.Cmd.
func (c Config) BuildEnv() []string {
	if len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
