package wrapper

import (
	"context"
	"errors"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/klaude/internal/agent"
	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/proc"
	"github.com/zjrosen/klaude/internal/runtime"
	"github.com/zjrosen/klaude/internal/runtime/backends/native"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/tracing"
	"github.com/zjrosen/klaude/internal/wire"
)

// minStopWait floors how long EnsureStopped waits after SIGTERM.
const minStopWait = 5 * time.Second

// EnsureStopped terminates any supervised runtime for the session:
// cancels pending startup retries, SIGTERMs a live child, escalates to
// SIGKILL, and waits for supervision to settle the session. Reports
// whether a runtime was tracked at all.
func (m *RuntimeManager) EnsureStopped(ctx context.Context, sessionID string, wait time.Duration) (bool, error) {
	h := m.handleFor(sessionID)
	if h == nil {
		return false, nil
	}

	ctx, span := m.tracer.Start(ctx, tracing.SpanRuntimeStop,
		trace.WithAttributes(attribute.String(tracing.AttrSessionID, sessionID)))
	defer span.End()

	h.retryCancel()

	if p := h.liveProc(); p != nil && p.IsRunning() {
		pid := p.PID()
		termWait := wait
		if termWait < minStopWait {
			termWait = minStopWait
		}
		if pid > 0 {
			if err := proc.Signal(pid, syscall.SIGTERM); err != nil {
				log.Warn(log.CatRuntime, "Failed to SIGTERM runtime", "pid", pid, "error", err)
			}
		}
		if !m.waitSettled(ctx, h, termWait) {
			log.Warn(log.CatRuntime, "Runtime ignored SIGTERM, killing", "sessionId", sessionID, "pid", pid)
			span.AddEvent(tracing.EventRuntimeKilled)
			if pid > 0 {
				_ = proc.Signal(pid, syscall.SIGKILL)
			} else {
				_ = p.Cancel()
			}
			if !m.waitSettled(ctx, h, time.Second) {
				return true, wire.Errorf(wire.CodeAgentRuntimeTimeout,
					"runtime for session %s did not exit", store.ShortID(sessionID))
			}
		}
		return true, nil
	}

	// No live child; the cancelled retry settles the session.
	if !m.waitSettled(ctx, h, time.Second) {
		return true, wire.Errorf(wire.CodeAgentRuntimeTimeout,
			"runtime supervision for session %s did not stop", store.ShortID(sessionID))
	}
	return true, nil
}

func (m *RuntimeManager) waitSettled(ctx context.Context, h *runtimeHandle, d time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return false
	}
}

// Message delivers a follow-up prompt to an agent session. Live native
// children take it on stdin; a dead native session is revived with the
// prompt as its initial payload; one-shot backends cannot be messaged.
func (m *RuntimeManager) Message(ctx context.Context, payload wire.MessagePayload) (*wire.MessageResult, error) {
	sess, err := resolveProjectSession(m.st, m.inst.ProjectID, payload.SessionID)
	if err != nil {
		return nil, err
	}

	if h := m.handleFor(sess.ID); h != nil {
		if p := h.liveProc(); p != nil && p.IsRunning() {
			return m.sendToLive(sess.ID, p, payload.Prompt)
		}
	} else if rp, rerr := m.st.GetCurrentRuntimeProcess(sess.ID); rerr == nil && proc.Alive(rp.Pid) {
		// The ledger names a live pid this manager does not supervise;
		// another instance (or a previous wrapper run) owns it.
		return nil, wire.Errorf(wire.CodeRuntimeEntryMissing,
			"runtime pid %d for session %s is not tracked by this instance", rp.Pid, store.ShortID(sess.ID))
	}

	meta, err := agent.DecodeMetadata(sess.MetadataJSON)
	if err != nil {
		log.Warn(log.CatRuntime, "Unreadable session metadata", "sessionId", sess.ID, "error", err)
	}
	if meta.Runtime.Primary != runtime.KindNative {
		return nil, wire.Errorf(wire.CodeAgentMessageUnsupported,
			"session %s runs on %s; only native runtimes accept follow-up messages",
			store.ShortID(sess.ID), meta.Runtime.Primary)
	}

	return m.reviveWithMessage(ctx, sess, meta, payload)
}

func (m *RuntimeManager) sendToLive(sessionID string, p runtime.AgentProcess, prompt string) (*wire.MessageResult, error) {
	writer, ok := p.(runtime.MessageWriter)
	if !ok {
		return nil, wire.Errorf(wire.CodeAgentMessageUnsupported,
			"%s runtimes cannot receive follow-up messages", p.Kind())
	}
	if err := writer.SendMessage(prompt); err != nil {
		if errors.Is(err, native.ErrStdinUnavailable) {
			return nil, wire.Errorf(wire.CodeAgentStdinUnavailable, "runtime stdin is closed: %v", err)
		}
		return nil, wire.Errorf(wire.CodeMessageSendFailed, "sending message: %v", err)
	}
	if err := m.rec.Record(sessionID, events.AgentMessageSent, messageSentPayload{Prompt: prompt}); err != nil {
		log.Warn(log.CatRuntime, "Failed to record sent message", "sessionId", sessionID, "error", err)
	}
	return &wire.MessageResult{Status: "queued", MessagesQueued: 1}, nil
}

// reviveWithMessage re-spawns a native runtime carrying the prompt as
// its init payload, resuming the session's conversation when one is
// known.
func (m *RuntimeManager) reviveWithMessage(ctx context.Context, sess *store.Session, meta agent.Metadata, payload wire.MessagePayload) (*wire.MessageResult, error) {
	// A handle still in its retry window must settle before the revival
	// takes the session over.
	if h := m.handleFor(sess.ID); h != nil {
		h.retryCancel()
		if !m.waitSettled(ctx, h, time.Second) {
			return nil, wire.Errorf(wire.CodeMessageSendFailed,
				"previous runtime for session %s is still settling", store.ShortID(sess.ID))
		}
	}

	wait := waitDuration(payload.WaitSeconds, defaultWaitSeconds)
	resumeID, _, err := resolveResumeID(ctx, m.st, sess.ID, wait, m.interval)
	if err != nil {
		// No conversation recorded yet; the revived child starts one.
		log.Debug(log.CatRuntime, "Reviving without resume", "sessionId", store.ShortID(sess.ID))
		resumeID = ""
	}

	def := meta.Definition
	if loaded, lerr := m.registry.Lookup(ctx, sess.AgentType); lerr == nil {
		// Stored metadata drops the instructions body; re-read it.
		def = loaded
	}

	spec := launchSpec{
		sessionID: sess.ID,
		agentType: sess.AgentType,
		prompt:    payload.Prompt,
		system:    defInstructions(def),
		model:     defModel(def),
		resumeID:  resumeID,
		selection: runtime.Selection{Primary: runtime.KindNative},
	}
	if mcpConfig, merr := agent.MarshalMCPConfig(meta.ResolvedMcps); merr == nil {
		spec.mcpConfig = mcpConfig
	}

	ready, err := m.launchRuntime(spec)
	if err != nil {
		return nil, err
	}
	if err := <-ready; err != nil {
		return nil, wire.Errorf(wire.CodeMessageSendFailed, "restarting runtime: %v", err)
	}

	if err := m.rec.Record(sess.ID, events.AgentMessageRuntimeStarted, messageRuntimeStartedPayload{
		Prompt: payload.Prompt,
		Resume: resumeID,
	}); err != nil {
		log.Warn(log.CatRuntime, "Failed to record runtime revival", "sessionId", sess.ID, "error", err)
	}
	return &wire.MessageResult{Status: "queued", MessagesQueued: 1}, nil
}

// Interrupt signals a live agent runtime. Defaults to SIGINT.
func (m *RuntimeManager) Interrupt(payload wire.InterruptPayload) (*wire.InterruptResult, error) {
	sess, err := resolveProjectSession(m.st, m.inst.ProjectID, payload.SessionID)
	if err != nil {
		return nil, err
	}

	h := m.handleFor(sess.ID)
	if h == nil {
		if rp, rerr := m.st.GetCurrentRuntimeProcess(sess.ID); rerr == nil && proc.Alive(rp.Pid) {
			return nil, wire.Errorf(wire.CodeRuntimeEntryMissing,
				"runtime pid %d for session %s is not tracked by this instance", rp.Pid, store.ShortID(sess.ID))
		}
		return nil, wire.Errorf(wire.CodeAgentNotRunning,
			"no runtime is tracked for session %s", store.ShortID(sess.ID))
	}
	p := h.liveProc()
	if p == nil || !p.IsRunning() {
		return nil, wire.Errorf(wire.CodeAgentNotRunning,
			"runtime for session %s is not running", store.ShortID(sess.ID))
	}
	pid := p.PID()
	if pid <= 0 {
		return nil, wire.Errorf(wire.CodeAgentPidUnavailable,
			"runtime for session %s has no usable pid", store.ShortID(sess.ID))
	}

	name := payload.Signal
	if name == "" {
		name = "SIGINT"
	}
	sig, err := proc.SignalByName(name)
	if err != nil {
		return nil, wire.Errorf(wire.CodeInterruptFailed, "unknown signal %q", payload.Signal)
	}
	if err := proc.Signal(pid, sig); err != nil {
		return nil, wire.Errorf(wire.CodeInterruptFailed, "signalling pid %d: %v", pid, err)
	}

	if err := m.rec.Record(sess.ID, events.AgentInterrupted, interruptedPayload{
		Signal: name,
		Pid:    pid,
	}); err != nil {
		log.Warn(log.CatRuntime, "Failed to record interrupt", "sessionId", sess.ID, "error", err)
	}
	return &wire.InterruptResult{SessionID: sess.ID, Signal: name, Pid: pid}, nil
}

// Shutdown stops every supervised runtime and waits for the
// supervision goroutines to drain.
func (m *RuntimeManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.EnsureStopped(ctx, id, 0); err != nil {
			log.Warn(log.CatRuntime, "Runtime did not stop during shutdown", "sessionId", id, "error", err)
		}
	}
	m.cancel()
	m.wg.Wait()
}

type messageSentPayload struct {
	Prompt string `json:"prompt"`
}

type messageRuntimeStartedPayload struct {
	Prompt string `json:"prompt"`
	Resume string `json:"resume,omitempty"`
}

type interruptedPayload struct {
	Signal string `json:"signal"`
	Pid    int    `json:"pid"`
}
