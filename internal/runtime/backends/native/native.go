// Package native provides the bidirectional JSON runner backend. The
// runner receives an init payload and follow-up message lines on stdin
// and emits typed envelopes on stdout, one JSON object per line.
package native

import (
	"context"
	"fmt"

	"github.com/zjrosen/klaude/internal/runtime"
)

// defaultRunnerName is the executable used when no runner binary is
// configured.
const defaultRunnerName = "klaude-runner"

// defaultKnownPaths defines the priority-ordered paths to check for the
// runner executable. These are checked before falling back to PATH
// lookup.
var defaultKnownPaths = []string{
	"~/.klaude/bin/{name}",
	"~/.klaude/{name}",
}

func init() {
	runtime.Register(runtime.KindNative, func() runtime.Backend {
		return NewBackend()
	})
}

// Backend implements runtime.Backend for the native runner.
type Backend struct{}

// NewBackend creates a new native Backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Kind returns the backend kind identifier.
func (b *Backend) Kind() runtime.Kind {
	return runtime.KindNative
}

// Spawn creates and starts a native runner child.
func (b *Backend) Spawn(ctx context.Context, cfg runtime.Config) (runtime.AgentProcess, error) {
	return Spawn(ctx, cfg)
}

// Spawn creates and starts a native runner child and writes its init
// payload. Context is used for cancellation control.
func Spawn(ctx context.Context, cfg runtime.Config) (*Process, error) {
	name := cfg.BinaryPath
	if name == "" {
		name = defaultRunnerName
	}
	runnerPath, err := runtime.NewBinaryFinder(name,
		runtime.WithKnownPaths(defaultKnownPaths...),
	).Find()
	if err != nil {
		return nil, fmt.Errorf("native: %w", err)
	}

	builder := runtime.NewSpawnBuilder(ctx).
		WithExecutable(runnerPath, nil).
		WithWorkDir(cfg.WorkDir).
		WithSessionRef(cfg.ResumeID).
		WithParser(NewParser()).
		WithStdin(true).
		WithStderrCapture(true).
		WithKind(runtime.KindNative).
		WithEnv(cfg.BuildEnv())
	if cfg.CommandFactory != nil {
		builder = builder.WithCommandFactory(cfg.CommandFactory)
	}

	base, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("native: %w", err)
	}

	p := &Process{BaseProcess: base}
	if err := p.sendInit(cfg); err != nil {
		_ = base.Cancel()
		return nil, fmt.Errorf("native: writing init payload: %w", err)
	}
	return p, nil
}

// Ensure Backend implements runtime.Backend at compile time.
var _ runtime.Backend = (*Backend)(nil)
