package wrapper

import (
	"context"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/tracing"
	"github.com/zjrosen/klaude/internal/wire"
)

// pendingSwitch is the single in-flight checkout. The TUI exit handler
// resolves it; the grace timer escalates a stubborn child to SIGKILL.
type pendingSwitch struct {
	target   string
	resumeID string
	from     string
	result   chan switchResult
	grace    *time.Timer
}

type switchResult struct {
	claudeSessionID string
	err             error
}

func (p *pendingSwitch) resolve(claudeID string) {
	p.result <- switchResult{claudeSessionID: claudeID}
}

func (p *pendingSwitch) reject(err error) {
	p.result <- switchResult{err: err}
}

func (p *pendingSwitch) stopGrace() {
	if p.grace != nil {
		p.grace.Stop()
	}
}

// Checkout swaps the foreground TUI onto another session. The reply is
// deferred until the swap resolved, so callers observe the outcome,
// not the request.
func (m *TuiManager) Checkout(ctx context.Context, payload wire.CheckoutPayload) (*wire.CheckoutResult, error) {
	wait := waitDuration(payload.WaitSeconds, defaultWaitSeconds)

	ctx, span := m.tracer.Start(ctx, tracing.SpanCheckout,
		trace.WithAttributes(attribute.Float64(tracing.AttrWaitSeconds, wait.Seconds())))
	defer span.End()

	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return nil, wire.Errorf(wire.CodeCheckoutInProgress, "a checkout is already in progress")
	}
	currentID := m.currentID
	m.mu.Unlock()

	target, err := m.resolveTarget(payload, currentID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrCheckoutTarget, target.ID))

	// The request is logged against the session being switched away
	// from; with no TUI on screen it lands on the target instead.
	requestedOn := currentID
	if requestedOn == "" {
		requestedOn = target.ID
	}
	if err := m.rec.Record(requestedOn, events.WrapperCheckoutRequested, checkoutRequestedPayload{
		TargetSessionID: target.ID,
		FromSessionID:   currentID,
		WaitSeconds:     wait.Seconds(),
	}); err != nil {
		log.Warn(log.CatWrapper, "Failed to record checkout request", "error", err)
	}

	resumeID, reason, err := resolveResumeID(ctx, m.st, target.ID, wait, m.interval)
	if err != nil {
		return nil, err
	}
	span.AddEvent(tracing.EventResumeResolved, trace.WithAttributes(
		attribute.String(tracing.AttrResumeID, resumeID),
		attribute.String(tracing.AttrResumeSource, reason)))
	if err := m.rec.Record(target.ID, events.WrapperCheckoutResumeChoice, resumeSelectedPayload{
		ClaudeSessionID: resumeID,
		Reason:          reason,
	}); err != nil {
		log.Warn(log.CatWrapper, "Failed to record resume choice", "error", err)
	}

	// The TUI and a headless child must not share one conversation.
	if target.ID != currentID && m.runtimes != nil {
		stopped, err := m.runtimes.EnsureStopped(ctx, target.ID, wait)
		if err != nil {
			return nil, err
		}
		if stopped {
			if err := m.rec.Record(target.ID, events.WrapperCheckoutRuntimeStop, nil); err != nil {
				log.Warn(log.CatWrapper, "Failed to record runtime stop", "error", err)
			}
		}
	}

	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return nil, wire.Errorf(wire.CodeCheckoutInProgress, "a checkout is already in progress")
	}

	if target.ID == m.currentID && m.current != nil {
		m.mu.Unlock()
		if err := m.rec.Record(target.ID, events.WrapperCheckoutAlreadyActive, nil); err != nil {
			log.Warn(log.CatWrapper, "Failed to record checkout no-op", "error", err)
		}
		return &wire.CheckoutResult{
			SessionID:       target.ID,
			ClaudeSessionID: resumeID,
			Status:          wire.CheckoutAlreadyActive,
		}, nil
	}

	if m.current == nil {
		// No TUI on screen; take the session over directly.
		if err := m.launchLocked(ctx, target.ID, resumeID); err != nil {
			m.mu.Unlock()
			return nil, err
		}
		m.mu.Unlock()
		if err := m.rec.Record(target.ID, events.WrapperCheckoutActivated, checkoutActivatedPayload{
			FromSessionID:   currentID,
			ClaudeSessionID: resumeID,
		}); err != nil {
			log.Warn(log.CatWrapper, "Failed to record checkout activation", "error", err)
		}
		return &wire.CheckoutResult{
			SessionID:       target.ID,
			ClaudeSessionID: resumeID,
			Status:          wire.CheckoutActivated,
		}, nil
	}

	// Hand off: ask the current TUI to exit and let its exit handler
	// complete the swap.
	pending := &pendingSwitch{
		target:   target.ID,
		resumeID: resumeID,
		from:     m.currentID,
		result:   make(chan switchResult, 1),
	}
	current := m.current
	m.pending = pending
	pending.grace = time.AfterFunc(m.grace, func() {
		m.killForSwitch(current)
	})
	if err := current.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warn(log.CatWrapper, "Failed to signal TUI for switch", "pid", current.pid, "error", err)
	}
	m.mu.Unlock()

	select {
	case res := <-pending.result:
		if res.err != nil {
			return nil, res.err
		}
		span.AddEvent(tracing.EventTUIStopped)
		return &wire.CheckoutResult{
			SessionID:       target.ID,
			ClaudeSessionID: res.claudeSessionID,
			Status:          wire.CheckoutActivated,
		}, nil
	case <-ctx.Done():
		return nil, wire.Errorf(wire.CodeInternal, "checkout interrupted: %v", ctx.Err())
	}
}

// resolveTarget picks the session the checkout lands on: the requested
// id, or the parent of the session being switched away from.
func (m *TuiManager) resolveTarget(payload wire.CheckoutPayload, currentID string) (*store.Session, error) {
	if payload.SessionID != "" {
		return resolveProjectSession(m.st, m.inst.ProjectID, payload.SessionID)
	}

	base := payload.FromSessionID
	if base == "" {
		base = currentID
	}
	from, err := resolveProjectSession(m.st, m.inst.ProjectID, base)
	if err != nil {
		return nil, err
	}
	if from.ParentID == "" {
		return nil, wire.Errorf(wire.CodeSwitchTargetMissing,
			"session %s has no parent to return to", store.ShortID(from.ID))
	}
	return resolveProjectSession(m.st, m.inst.ProjectID, from.ParentID)
}

// killForSwitch escalates to SIGKILL when the TUI outlives the switch
// grace period.
func (m *TuiManager) killForSwitch(p *tuiProcess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != p || m.pending == nil {
		return
	}
	log.Warn(log.CatTui, "TUI ignored SIGTERM during switch, killing", "pid", p.pid)
	_ = p.cmd.Process.Kill()
}

type checkoutRequestedPayload struct {
	TargetSessionID string  `json:"targetSessionId"`
	FromSessionID   string  `json:"fromSessionId,omitempty"`
	WaitSeconds     float64 `json:"waitSeconds"`
}

type resumeSelectedPayload struct {
	ClaudeSessionID string `json:"claudeSessionId"`
	Reason          string `json:"reason"`
}

type checkoutActivatedPayload struct {
	FromSessionID   string `json:"fromSessionId,omitempty"`
	ClaudeSessionID string `json:"claudeSessionId,omitempty"`
}
