package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/klaude/internal/log"
)

// ErrTimeout is returned when a runtime child exceeds its configured
// timeout.
var ErrTimeout = fmt.Errorf("runtime child timed out")

// ParseEventFunc parses a JSON line from stdout into an Envelope.
// Each backend implements this to handle its specific JSON format.
type ParseEventFunc func(line []byte) (Envelope, error)

// BaseProcessOption is a functional option for configuring BaseProcess.
type BaseProcessOption func(*BaseProcess)

// WithParseEventFunc sets the event parsing function.
func WithParseEventFunc(fn ParseEventFunc) BaseProcessOption {
	return func(bp *BaseProcess) {
		bp.parseEventFn = fn
	}
}

// WithEventParser sets the event parsing function from an EventParser.
func WithEventParser(p EventParser) BaseProcessOption {
	return func(bp *BaseProcess) {
		bp.parseEventFn = p.ParseEvent
	}
}

// WithStderrCapture enables stderr line capture for error messages.
func WithStderrCapture(capture bool) BaseProcessOption {
	return func(bp *BaseProcess) {
		bp.captureStderr = capture
	}
}

// WithKind sets the backend kind for logging and the Kind accessor.
func WithKind(kind Kind) BaseProcessOption {
	return func(bp *BaseProcess) {
		bp.kind = kind
	}
}

// BaseProcess provides common child lifecycle management for all
// backends. Backends embed this struct and configure behavior via
// functional options.
type BaseProcess struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	sessionRef string
	workDir    string
	status     ProcessStatus
	events     chan Envelope
	stderrCh   chan string
	errors     chan error
	cancelFunc context.CancelFunc
	ctx        context.Context
	mu         sync.RWMutex
	wg         sync.WaitGroup

	// Exit state, valid once exited is true.
	exit   ExitResult
	exited bool

	// sawOutput flips on the first stdout or stderr byte. Startup
	// failures are exits where it never flipped.
	sawOutput atomic.Bool

	// Optional stderr capture for error augmentation.
	stderrLines   []string
	captureStderr bool

	kind Kind

	parseEventFn ParseEventFunc
}

// NewBaseProcess creates a new BaseProcess with the given configuration.
// The cmd must already have its pipes set up (stdout, stderr, and
// optionally stdin).
func NewBaseProcess(
	ctx context.Context,
	cancelFunc context.CancelFunc,
	cmd *exec.Cmd,
	stdout io.ReadCloser,
	stderr io.ReadCloser,
	workDir string,
	opts ...BaseProcessOption,
) *BaseProcess {
	bp := &BaseProcess{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		workDir:    workDir,
		status:     StatusPending,
		events:     make(chan Envelope, 100),
		stderrCh:   make(chan string, 100),
		errors:     make(chan error, 10),
		cancelFunc: cancelFunc,
		ctx:        ctx,
		kind:       KindNative,
	}

	for _, opt := range opts {
		opt(bp)
	}

	return bp
}

// SetStdin sets the stdin writer for backends that need it.
func (bp *BaseProcess) SetStdin(stdin io.WriteCloser) {
	bp.stdin = stdin
}

// SetSessionRef sets the session reference. Thread-safe.
func (bp *BaseProcess) SetSessionRef(ref string) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.sessionRef = ref
}

// Kind returns the backend kind that spawned this child.
func (bp *BaseProcess) Kind() Kind {
	return bp.kind
}

// Events returns the channel of parsed envelopes.
// The channel is closed when stdout reaches EOF.
func (bp *BaseProcess) Events() <-chan Envelope {
	return bp.events
}

// Stderr returns the channel of raw stderr lines.
// The channel is closed when stderr reaches EOF.
func (bp *BaseProcess) Stderr() <-chan string {
	return bp.stderrCh
}

// Errors returns the channel of process errors.
// Non-blocking; errors are dropped if the channel is full.
func (bp *BaseProcess) Errors() <-chan error {
	return bp.errors
}

// Status returns the current process status. Thread-safe.
func (bp *BaseProcess) Status() ProcessStatus {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	return bp.status
}

// IsRunning returns true if the child is actively running.
func (bp *BaseProcess) IsRunning() bool {
	return bp.Status() == StatusRunning
}

// WorkDir returns the working directory of the child.
func (bp *BaseProcess) WorkDir() string {
	return bp.workDir
}

// PID returns the OS process ID, or -1 if not running.
func (bp *BaseProcess) PID() int {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	if bp.cmd == nil || bp.cmd.Process == nil {
		return -1
	}
	return bp.cmd.Process.Pid
}

// SessionRef returns the underlying conversation id reported by the
// child. May be empty until a claude-session envelope arrives.
func (bp *BaseProcess) SessionRef() string {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	return bp.sessionRef
}

// Stdin returns the stdin writer, or nil if not configured.
func (bp *BaseProcess) Stdin() io.WriteCloser {
	return bp.stdin
}

// Context returns the process context.
func (bp *BaseProcess) Context() context.Context {
	return bp.ctx
}

// Cmd returns the underlying exec.Cmd.
func (bp *BaseProcess) Cmd() *exec.Cmd {
	return bp.cmd
}

// ExitState returns how the child exited. The boolean is false until
// the child has been reaped.
func (bp *BaseProcess) ExitState() (ExitResult, bool) {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	return bp.exit, bp.exited
}

// SawOutput reports whether the child produced at least one stdout or
// stderr byte.
func (bp *BaseProcess) SawOutput() bool {
	return bp.sawOutput.Load()
}

// CaptureStderr returns whether stderr capture is enabled.
func (bp *BaseProcess) CaptureStderr() bool {
	return bp.captureStderr
}

// StderrLines returns captured stderr lines. Thread-safe.
func (bp *BaseProcess) StderrLines() []string {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	result := make([]string, len(bp.stderrLines))
	copy(result, bp.stderrLines)
	return result
}

// SetStatus updates the process status. Thread-safe.
func (bp *BaseProcess) SetStatus(s ProcessStatus) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.status = s
}

// SendError attempts to send an error to the errors channel.
// If the channel is full, the error is logged but not sent to avoid
// blocking.
func (bp *BaseProcess) SendError(err error) {
	select {
	case bp.errors <- err:
	default:
		log.Debug(log.CatRuntime, "error channel full, dropping error",
			"kind", bp.kind, "error", err)
	}
}

// Cancel cancels the child. It sets the status to Cancelled before
// calling the cancelFunc to prevent race conditions with
// waitForCompletion. Cancel is a no-op if the child is already in a
// terminal status.
func (bp *BaseProcess) Cancel() error {
	bp.mu.Lock()
	if bp.status.IsTerminal() {
		bp.mu.Unlock()
		return nil
	}
	bp.status = StatusCancelled
	bp.mu.Unlock()
	bp.cancelFunc()
	return nil
}

// Wait blocks until all process goroutines complete.
func (bp *BaseProcess) Wait() error {
	bp.wg.Wait()
	return nil
}

// StartGoroutines launches the three goroutines that handle envelope
// parsing, stderr reading, and process completion. Call this after the
// child is started.
func (bp *BaseProcess) StartGoroutines() {
	bp.wg.Add(3)
	go bp.parseOutput()
	go bp.parseStderr()
	go bp.waitForCompletion()
}

// parseOutput reads stdout one line at a time and parses envelopes.
// Claude-session envelopes additionally set the session reference the
// first time one arrives.
func (bp *BaseProcess) parseOutput() {
	defer bp.wg.Done()
	defer close(bp.events)

	scanner := bufio.NewScanner(bp.stdout)
	// Increase buffer size for large outputs (64KB initial, 1MB max)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		// Even a bare newline counts as output for startup-failure
		// detection.
		bp.sawOutput.Store(true)

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if bp.parseEventFn == nil {
			continue
		}

		env, err := bp.parseEventFn(line)
		if err != nil {
			log.Debug(log.CatRuntime, "parse error",
				"kind", bp.kind, "error", err, "line", string(line))
			continue
		}

		env.Raw = make([]byte, len(line))
		copy(env.Raw, line)
		env.Timestamp = time.Now()

		if env.Type == EventClaudeSession && env.SessionID != "" {
			bp.mu.Lock()
			if bp.sessionRef == "" {
				bp.sessionRef = env.SessionID
				log.Debug(log.CatRuntime, "got session ref",
					"kind", bp.kind, "sessionRef", env.SessionID)
			}
			bp.mu.Unlock()
		}

		select {
		case bp.events <- env:
		case <-bp.ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug(log.CatRuntime, "scanner error",
			"kind", bp.kind, "error", err)
		bp.SendError(fmt.Errorf("stdout scanner error: %w", err))
	}
}

// parseStderr reads stderr and forwards each line for event recording.
// If captureStderr is enabled, lines are also kept for inclusion in
// error messages.
func (bp *BaseProcess) parseStderr() {
	defer bp.wg.Done()
	defer close(bp.stderrCh)

	scanner := bufio.NewScanner(bp.stderr)
	for scanner.Scan() {
		bp.sawOutput.Store(true)

		line := scanner.Text()
		log.Debug(log.CatRuntime, "STDERR", "kind", bp.kind, "line", line)

		if bp.captureStderr {
			bp.mu.Lock()
			bp.stderrLines = append(bp.stderrLines, line)
			bp.mu.Unlock()
		}

		select {
		case bp.stderrCh <- line:
		case <-bp.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug(log.CatRuntime, "stderr scanner error",
			"kind", bp.kind, "error", err)
	}
}

// waitForCompletion waits for the child to exit, records the exit
// state, and updates status. It closes the errors channel when done to
// signal completion to consumers.
func (bp *BaseProcess) waitForCompletion() {
	defer bp.wg.Done()
	defer close(bp.errors)

	err := bp.cmd.Wait()
	exit := exitResultOf(bp.cmd, err)

	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.exit = exit
	bp.exited = true

	// If already cancelled, don't override status.
	if bp.status == StatusCancelled {
		log.Debug(log.CatRuntime, "child was cancelled",
			"kind", bp.kind, "code", exit.Code, "signal", exit.Signal)
		return
	}

	// Check for timeout using errors.Is()
	if errors.Is(bp.ctx.Err(), context.DeadlineExceeded) {
		bp.status = StatusFailed
		log.Debug(log.CatRuntime, "child timed out", "kind", bp.kind)
		bp.SendError(ErrTimeout)
		return
	}

	if err != nil {
		bp.status = StatusFailed
		// Include stderr output in the error message if captured.
		if bp.captureStderr && len(bp.stderrLines) > 0 {
			stderrMsg := strings.Join(bp.stderrLines, "\n")
			bp.SendError(fmt.Errorf("%s child failed: %s (exit: %w)", bp.kind, stderrMsg, err))
		} else {
			bp.SendError(fmt.Errorf("%s child exited: %w", bp.kind, err))
		}
	} else {
		bp.status = StatusCompleted
	}
}
