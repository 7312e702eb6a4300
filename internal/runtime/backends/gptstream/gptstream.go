// Package gptstream provides the streaming one-shot GPT backend. The
// child emits stream-json events on stdout and receives its system
// prompt as a command line flag.
package gptstream

import (
	"context"
	"fmt"

	"github.com/zjrosen/klaude/internal/runtime"
)

func init() {
	runtime.Register(runtime.KindGptStream, func() runtime.Backend {
		return NewBackend()
	})
}

// Backend implements runtime.Backend for the streaming GPT backend.
type Backend struct{}

// NewBackend creates a new gptstream Backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Kind returns the backend kind identifier.
func (b *Backend) Kind() runtime.Kind {
	return runtime.KindGptStream
}

// Spawn creates and starts a streaming GPT child.
func (b *Backend) Spawn(ctx context.Context, cfg runtime.Config) (runtime.AgentProcess, error) {
	return Spawn(ctx, cfg)
}

// Spawn creates and starts a streaming GPT child. Context is used for
// cancellation control.
func Spawn(ctx context.Context, cfg runtime.Config) (*runtime.BaseProcess, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("gptstream: binary path is required")
	}
	execPath, err := runtime.NewBinaryFinder(cfg.BinaryPath).Find()
	if err != nil {
		return nil, fmt.Errorf("gptstream: %w", err)
	}

	builder := runtime.NewSpawnBuilder(ctx).
		WithExecutable(execPath, buildArgs(cfg)).
		WithWorkDir(cfg.WorkDir).
		WithSessionRef(cfg.ResumeID).
		WithParser(NewParser()).
		WithStderrCapture(true).
		WithKind(runtime.KindGptStream).
		WithEnv(cfg.BuildEnv())
	if cfg.CommandFactory != nil {
		builder = builder.WithCommandFactory(cfg.CommandFactory)
	}

	base, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("gptstream: %w", err)
	}
	return base, nil
}

// Ensure Backend implements runtime.Backend at compile time.
var _ runtime.Backend = (*Backend)(nil)
