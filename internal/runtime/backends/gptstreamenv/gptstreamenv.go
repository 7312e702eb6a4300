// Package gptstreamenv provides the streaming one-shot GPT backend
// whose system prompt travels out of band: the prompt text is written
// to a temp file and the child finds it through an environment
// variable. The wire format on stdout matches the gptstream backend,
// so its parser is reused.
package gptstreamenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/zjrosen/klaude/internal/runtime"
	"github.com/zjrosen/klaude/internal/runtime/backends/gptstream"
)

// PromptFileEnvVar names the environment variable that points the
// child at its system prompt file.
const PromptFileEnvVar = "GPT_SYSTEM_PROMPT_FILE"

func init() {
	runtime.Register(runtime.KindGptStreamEnv, func() runtime.Backend {
		return NewBackend()
	})
}

// Backend implements runtime.Backend for the stream-env GPT backend.
type Backend struct{}

// NewBackend creates a new gptstreamenv Backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Kind returns the backend kind identifier.
func (b *Backend) Kind() runtime.Kind {
	return runtime.KindGptStreamEnv
}

// Spawn creates and starts a stream-env GPT child.
func (b *Backend) Spawn(ctx context.Context, cfg runtime.Config) (runtime.AgentProcess, error) {
	return Spawn(ctx, cfg)
}

// Spawn creates and starts a stream-env GPT child. Context is used for
// cancellation control. The system prompt file lives until the child
// has been waited on.
func Spawn(ctx context.Context, cfg runtime.Config) (*Process, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("gptstreamenv: binary path is required")
	}
	execPath, err := runtime.NewBinaryFinder(cfg.BinaryPath).Find()
	if err != nil {
		return nil, fmt.Errorf("gptstreamenv: %w", err)
	}

	env := cfg.BuildEnv()
	var promptFile string
	if cfg.SystemPrompt != "" {
		promptFile, err = writePromptFile(cfg.SystemPrompt)
		if err != nil {
			return nil, fmt.Errorf("gptstreamenv: %w", err)
		}
		env = append(env, PromptFileEnvVar+"="+promptFile)
	}

	builder := runtime.NewSpawnBuilder(ctx).
		WithExecutable(execPath, buildArgs(cfg)).
		WithWorkDir(cfg.WorkDir).
		WithSessionRef(cfg.ResumeID).
		WithParser(gptstream.NewParser()).
		WithStderrCapture(true).
		WithKind(runtime.KindGptStreamEnv).
		WithEnv(env)
	if cfg.CommandFactory != nil {
		builder = builder.WithCommandFactory(cfg.CommandFactory)
	}

	base, err := builder.Build()
	if err != nil {
		removePromptFile(promptFile)
		return nil, fmt.Errorf("gptstreamenv: %w", err)
	}

	return &Process{BaseProcess: base, promptFile: promptFile}, nil
}

// writePromptFile persists the system prompt where the child can read
// it. The name is unique per spawn so concurrent agents never collide.
func writePromptFile(systemPrompt string) (string, error) {
	path := filepath.Join(os.TempDir(), "klaude-sysprompt-"+uuid.NewString()+".md")
	if err := os.WriteFile(path, []byte(systemPrompt), 0o600); err != nil {
		return "", fmt.Errorf("writing system prompt file: %w", err)
	}
	return path, nil
}

// buildArgs constructs the command line arguments for the stream-env
// backend. Identical to the stream backend except the system prompt is
// absent: it arrives through PromptFileEnvVar instead.
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

	if cfg.MCPConfig != "" {
		args = append(args, "--mcp-config", cfg.MCPConfig)
	}

	if cfg.Prompt != "" {
		args = append(args, "--", cfg.Prompt)
	}

	return args
}

// Ensure Backend implements runtime.Backend at compile time.
var _ runtime.Backend = (*Backend)(nil)
