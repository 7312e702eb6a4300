package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/zjrosen/klaude/internal/log"
)

// CommandFactoryFunc creates an exec.Cmd for testing purposes.
// It receives the context, executable path, and arguments.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// SpawnBuilder provides a fluent API for spawning runtime children.
// It consolidates the common spawn boilerplate (context setup, pipe
// creation, process start) while preserving backend flexibility.
type SpawnBuilder struct {
	ctx            context.Context
	timeout        time.Duration
	execPath       string
	args           []string
	workDir        string
	sessionRef     string
	env            []string
	parser         EventParser
	kind           Kind
	captureStderr  bool
	needsStdin     bool
	commandFactory CommandFactoryFunc
}

// NewSpawnBuilder creates a new SpawnBuilder with the given context.
func NewSpawnBuilder(ctx context.Context) *SpawnBuilder {
	return &SpawnBuilder{
		ctx:  ctx,
		kind: KindNative,
	}
}

// WithExecutable sets the executable path and arguments.
func (b *SpawnBuilder) WithExecutable(path string, args []string) *SpawnBuilder {
	b.execPath = path
	b.args = args
	return b
}

// WithWorkDir sets the working directory for the child.
func (b *SpawnBuilder) WithWorkDir(dir string) *SpawnBuilder {
	b.workDir = dir
	return b
}

// WithSessionRef sets the initial session reference (the conversation
// id the child is resuming, when known up front).
func (b *SpawnBuilder) WithSessionRef(ref string) *SpawnBuilder {
	b.sessionRef = ref
	return b
}

// WithTimeout sets the child timeout. If d is 0 or negative, a
// cancel-only context is created instead of a timeout context.
func (b *SpawnBuilder) WithTimeout(d time.Duration) *SpawnBuilder {
	b.timeout = d
	return b
}

// WithParser sets the EventParser for parsing child output.
// This is a required field - Build() will fail if not set.
func (b *SpawnBuilder) WithParser(p EventParser) *SpawnBuilder {
	b.parser = p
	return b
}

// WithEnv sets additional environment variables to append to
// os.Environ(). Variables are in the format "KEY=VALUE".
func (b *SpawnBuilder) WithEnv(env []string) *SpawnBuilder {
	b.env = env
	return b
}

// WithKind sets the backend kind for logging and error messages.
func (b *SpawnBuilder) WithKind(kind Kind) *SpawnBuilder {
	b.kind = kind
	return b
}

// WithStderrCapture enables stderr line capture for error messages.
func (b *SpawnBuilder) WithStderrCapture(capture bool) *SpawnBuilder {
	b.captureStderr = capture
	return b
}

// WithStdin enables stdin pipe creation.
// After Build(), use BaseProcess.Stdin() to access the pipe.
func (b *SpawnBuilder) WithStdin(enabled bool) *SpawnBuilder {
	b.needsStdin = enabled
	return b
}

// WithCommandFactory sets a custom command factory for testing.
// This allows unit tests to mock exec.Command without spawning real
// binaries.
func (b *SpawnBuilder) WithCommandFactory(fn CommandFactoryFunc) *SpawnBuilder {
	b.commandFactory = fn
	return b
}

// Build validates the configuration, creates the child, and starts it.
// Returns the configured BaseProcess or an error.
//
// Build performs the following steps:
//  1. Validates required fields (execPath, parser)
//  2. Creates context with timeout (if configured) or cancel-only
//  3. Creates exec.Cmd (using commandFactory if set)
//  4. Creates pipes (stdin if needsStdin, stdout, stderr)
//  5. Delegates to NewBaseProcess() with configured options
//  6. Starts the child and goroutines
//
// On error, all created resources are cleaned up.
func (b *SpawnBuilder) Build() (*BaseProcess, error) {
	if b.execPath == "" {
		return nil, fmt.Errorf("spawn builder: executable path is required")
	}
	if b.parser == nil {
		return nil, fmt.Errorf("spawn builder: parser is required")
	}

	// Create context with timeout or cancel-only
	var procCtx context.Context
	var cancel context.CancelFunc
	if b.timeout > 0 {
		procCtx, cancel = context.WithTimeout(b.ctx, b.timeout)
	} else {
		procCtx, cancel = context.WithCancel(b.ctx)
	}

	// Track resources for cleanup on error
	var cmd *exec.Cmd
	var stdin io.WriteCloser
	var stdout io.ReadCloser
	var stderr io.ReadCloser

	cleanup := func() {
		cancel()
		if stdin != nil {
			_ = stdin.Close()
		}
		if stdout != nil {
			_ = stdout.Close()
		}
		if stderr != nil {
			_ = stderr.Close()
		}
	}

	if b.commandFactory != nil {
		cmd = b.commandFactory(procCtx, b.execPath, b.args...)
	} else {
		// #nosec G204 -- args are built from Config struct, not user input
		cmd = exec.CommandContext(procCtx, b.execPath, b.args...)
	}
	cmd.Dir = b.workDir

	// Set environment variables (append to os.Environ())
	if len(b.env) > 0 {
		cmd.Env = append(os.Environ(), b.env...)
	}

	if b.needsStdin {
		var err error
		stdin, err = cmd.StdinPipe()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("spawn builder: failed to create stdin pipe: %w", err)
		}
	}

	var err error
	stdout, err = cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("spawn builder: failed to create stdout pipe: %w", err)
	}

	stderr, err = cmd.StderrPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("spawn builder: failed to create stderr pipe: %w", err)
	}

	bp := NewBaseProcess(
		procCtx,
		cancel,
		cmd,
		stdout,
		stderr,
		b.workDir,
		WithEventParser(b.parser),
		WithStderrCapture(b.captureStderr),
		WithKind(b.kind),
	)

	if stdin != nil {
		bp.SetStdin(stdin)
	}

	if b.sessionRef != "" {
		bp.SetSessionRef(b.sessionRef)
	}

	log.Debug(log.CatRuntime, "Spawning child",
		"kind", b.kind,
		"execPath", b.execPath,
		"workDir", b.workDir)

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("spawn builder: failed to start %s child: %w", b.kind, err)
	}

	log.Debug(log.CatRuntime, "Child started",
		"kind", b.kind,
		"pid", cmd.Process.Pid)

	bp.SetStatus(StatusRunning)

	bp.StartGoroutines()

	return bp, nil
}
