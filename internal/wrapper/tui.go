package wrapper

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/klaude/internal/config"
	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/runtime"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/tracing"
	"github.com/zjrosen/klaude/internal/wire"
)

// hookTimeout caps how long a fresh TUI launch waits for the
// session-start hook to report the conversation id.
const hookTimeout = 10 * time.Second

// tuiKnownPaths are checked for the TUI executable before PATH lookup.
var tuiKnownPaths = []string{
	"~/.claude/local/{name}",
	"~/.local/bin/{name}",
}

// TuiExit describes the final (non-switch) exit of the foreground TUI.
type TuiExit struct {
	SessionID string
	Result    runtime.ExitResult
	Status    store.SessionStatus

	// Err is set when a switch could not relaunch the TUI; the
	// orchestrator finalizes the instance as failed.
	Err error
}

// tuiProcess tracks one spawned TUI child.
type tuiProcess struct {
	cmd       *exec.Cmd
	sessionID string
	pid       int
	procRowID int64
	span      trace.Span
}

// TuiManager owns the foreground TUI child and the checkout state
// machine that swaps it between sessions. All transitions happen under
// one mutex; at most one switch is pending at a time.
type TuiManager struct {
	st      *store.Store
	rec     *Recorder
	cfg     config.WrapperConfig
	inst    InstanceInfo
	tuiArgs []string
	tracer  trace.Tracer

	// runtimes stops a target's headless child before the TUI takes
	// the session over. Attached after both managers exist.
	runtimes *RuntimeManager

	factory  runtime.CommandFactoryFunc
	hookWait time.Duration
	interval time.Duration
	grace    time.Duration

	mu        sync.Mutex
	current   *tuiProcess
	currentID string
	pending   *pendingSwitch

	done chan TuiExit
}

// NewTuiManager builds the manager for one instance. tuiArgs are
// passed through to every TUI launch ahead of the resume flag.
func NewTuiManager(st *store.Store, rec *Recorder, cfg config.WrapperConfig, inst InstanceInfo, tuiArgs []string, tracer trace.Tracer) *TuiManager {
	grace := time.Duration(cfg.Switch.GraceSeconds * float64(time.Second))
	if grace < 0 {
		grace = 0
	}
	return &TuiManager{
		st:      st,
		rec:     rec,
		cfg:     cfg,
		inst:    inst,
		tuiArgs: tuiArgs,
		tracer:  tracer,
		factory: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, name, args...)
		},
		hookWait: hookTimeout,
		interval: pollInterval,
		grace:    grace,
		done:     make(chan TuiExit, 1),
	}
}

// AttachRuntimes wires the runtime manager in after construction.
func (m *TuiManager) AttachRuntimes(rt *RuntimeManager) {
	m.runtimes = rt
}

// Done delivers the final TUI exit once no switch consumes it.
func (m *TuiManager) Done() <-chan TuiExit {
	return m.done
}

// CurrentSessionID returns the session the TUI currently fronts.
func (m *TuiManager) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentID
}

// CurrentPid returns the live TUI pid, or 0 when none is running.
func (m *TuiManager) CurrentPid() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0
	}
	return m.current.pid
}

// Switching reports whether a checkout is waiting on the current TUI.
func (m *TuiManager) Switching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// LaunchForSession spawns the TUI fronting the given session. A fresh
// launch (no resume id) blocks until the session-start hook has
// reported the conversation id, so agents sharing it never race ahead
// of the link.
func (m *TuiManager) LaunchForSession(ctx context.Context, sessionID, resumeID string) error {
	m.mu.Lock()
	err := m.launchLocked(ctx, sessionID, resumeID)
	m.mu.Unlock()
	if err != nil || resumeID != "" {
		return err
	}
	if err := m.waitForClaudeSession(ctx, sessionID); err != nil {
		m.StopCurrent()
		return err
	}
	return nil
}

// launchLocked starts the TUI child. Callers hold m.mu.
func (m *TuiManager) launchLocked(ctx context.Context, sessionID, resumeID string) error {
	binPath, err := runtime.NewBinaryFinder(m.cfg.ClaudeBinary,
		runtime.WithKnownPaths(tuiKnownPaths...),
	).Find()
	if err != nil {
		return wire.Errorf(wire.CodeTuiBinaryMissing, "TUI binary %q not found: %v", m.cfg.ClaudeBinary, err)
	}

	args := append([]string(nil), m.tuiArgs...)
	if resumeID != "" {
		args = append(args, "--resume", resumeID)
	}

	cmd := m.factory(ctx, binPath, args...)
	cmd.Dir = m.inst.RootPath
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		EnvProjectHash+"="+m.inst.ProjectHash,
		EnvInstanceID+"="+m.inst.InstanceID,
		EnvSessionID+"="+sessionID,
		EnvSessionIDShort+"="+store.ShortID(sessionID),
	)

	if err := cmd.Start(); err != nil {
		return wire.Errorf(wire.CodeTuiLaunchFailed, "launching TUI: %v", err)
	}

	p := &tuiProcess{cmd: cmd, sessionID: sessionID, pid: cmd.Process.Pid}

	// The span covers the child's whole foreground tenure; handleTuiExit
	// closes it.
	_, p.span = m.tracer.Start(ctx, tracing.SpanTUIRun,
		trace.WithAttributes(
			attribute.String(tracing.AttrSessionID, sessionID),
			attribute.Int(tracing.AttrTUIPID, p.pid)))

	if err := m.st.UpdateSessionStatus(sessionID, store.StatusRunning); err != nil {
		log.Warn(log.CatTui, "Failed to mark session running", "sessionId", sessionID, "error", err)
	}
	row := &store.RuntimeProcess{SessionID: sessionID, Pid: p.pid, Kind: string(store.AgentTypeTui)}
	if err := m.st.OpenRuntimeProcess(row); err != nil {
		log.Warn(log.CatTui, "Failed to record TUI process", "sessionId", sessionID, "error", err)
	} else {
		p.procRowID = row.ID
	}

	if err := m.rec.Record(sessionID, events.WrapperTuiSpawned, tuiSpawnedPayload{
		Pid:    p.pid,
		Resume: resumeID,
	}); err != nil {
		log.Warn(log.CatTui, "Failed to record TUI spawn", "sessionId", sessionID, "error", err)
	}

	m.current = p
	m.currentID = sessionID
	log.Info(log.CatTui, "TUI launched", "sessionId", store.ShortID(sessionID), "pid", p.pid, "resume", resumeID)

	log.SafeGo("tui-wait", func() {
		waitErr := cmd.Wait()
		m.handleTuiExit(p, runtime.ExitResultFromCmd(cmd, waitErr))
	})
	return nil
}

// waitForClaudeSession polls until the session-start hook has cached a
// conversation id on the session row.
func (m *TuiManager) waitForClaudeSession(ctx context.Context, sessionID string) error {
	deadline := time.Now().Add(m.hookWait)
	for {
		sess, err := m.st.GetSession(sessionID)
		if err == nil && sess.LastClaudeSessionID != "" {
			return nil
		}
		if !time.Now().Before(deadline) {
			return wire.Errorf(wire.CodeHookTimeout,
				"session-start hook did not report a conversation id within %s", m.hookWait)
		}
		select {
		case <-ctx.Done():
			return wire.Errorf(wire.CodeHookTimeout, "wait for session-start hook interrupted: %v", ctx.Err())
		case <-time.After(m.interval):
		}
	}
}

// handleTuiExit settles one TUI exit: either the pending switch
// consumes it and relaunches, or the exit is final for the instance.
func (m *TuiManager) handleTuiExit(p *tuiProcess, res runtime.ExitResult) {
	status := tuiExitStatus(res)
	if p.span != nil {
		p.span.SetAttributes(attribute.String(tracing.AttrTUIExitStatus, string(status)))
		p.span.End()
	}

	m.mu.Lock()
	if m.current == p {
		m.current = nil
	}

	if p.procRowID != 0 {
		code := res.Code
		if err := m.st.CloseRuntimeProcess(p.procRowID, &code); err != nil {
			log.Warn(log.CatTui, "Failed to close TUI process row", "error", err)
		}
	}
	if err := m.rec.Record(p.sessionID, events.WrapperTuiExited, tuiExitedPayload{
		Code:   res.Code,
		Signal: res.Signal,
		Status: string(status),
	}); err != nil {
		log.Warn(log.CatTui, "Failed to record TUI exit", "sessionId", p.sessionID, "error", err)
	}

	pending := m.pending
	if pending == nil {
		// Final exit for this instance: settle the whole subtree.
		if err := m.st.CascadeMarkSessionEnded(p.sessionID, status); err != nil {
			log.Warn(log.CatTui, "Failed to end session tree", "sessionId", p.sessionID, "error", err)
		}
		m.mu.Unlock()
		m.done <- TuiExit{SessionID: p.sessionID, Result: res, Status: status}
		return
	}

	// The conversation moves on; the source session stays resumable.
	m.pending = nil
	pending.stopGrace()
	if err := m.st.UpdateSessionStatus(p.sessionID, store.StatusActive); err != nil {
		log.Warn(log.CatTui, "Failed to mark source session active", "sessionId", p.sessionID, "error", err)
	}

	launchErr := m.launchLocked(context.Background(), pending.target, pending.resumeID)
	if launchErr != nil {
		m.mu.Unlock()
		log.ErrorErr(log.CatTui, "Failed to launch TUI for switch target", launchErr,
			"sessionId", pending.target)
		pending.reject(launchErr)
		m.done <- TuiExit{SessionID: p.sessionID, Result: res, Status: store.StatusFailed, Err: launchErr}
		return
	}
	m.mu.Unlock()

	if err := m.rec.Record(pending.target, events.WrapperCheckoutActivated, checkoutActivatedPayload{
		FromSessionID:   p.sessionID,
		ClaudeSessionID: pending.resumeID,
	}); err != nil {
		log.Warn(log.CatTui, "Failed to record checkout activation", "error", err)
	}
	pending.resolve(pending.resumeID)
}

// StopCurrent terminates the live TUI child, escalating to SIGKILL
// after the switch grace period. Used on teardown paths; any pending
// switch still consumes the exit.
func (m *TuiManager) StopCurrent() {
	m.mu.Lock()
	p := m.current
	m.mu.Unlock()
	if p == nil {
		return
	}

	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	deadline := time.Now().Add(m.grace + time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		gone := m.current != p
		m.mu.Unlock()
		if gone {
			return
		}
		time.Sleep(m.interval)
	}
	log.Warn(log.CatTui, "TUI ignored SIGTERM, killing", "pid", p.pid)
	_ = p.cmd.Process.Kill()
}

// ttyName reports the controlling terminal of this process, best
// effort.
func ttyName() string {
	if name, err := os.Readlink("/proc/self/fd/0"); err == nil && strings.HasPrefix(name, "/dev/") {
		return name
	}
	return ""
}

type tuiSpawnedPayload struct {
	Pid    int    `json:"pid"`
	Resume string `json:"resume,omitempty"`
}

type tuiExitedPayload struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
	Status string `json:"status"`
}
