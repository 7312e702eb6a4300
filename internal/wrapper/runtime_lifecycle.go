package wrapper

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/klaude/internal/agent"
	"github.com/zjrosen/klaude/internal/config"
	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/runtime"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/tracing"
	"github.com/zjrosen/klaude/internal/wire"
)

// spawnFunc creates a runtime child. Swapped out in tests.
type spawnFunc func(ctx context.Context, kind runtime.Kind, cfg runtime.Config) (runtime.AgentProcess, error)

func backendSpawn(ctx context.Context, kind runtime.Kind, cfg runtime.Config) (runtime.AgentProcess, error) {
	backend, err := runtime.NewBackend(kind)
	if err != nil {
		return nil, err
	}
	return backend.Spawn(ctx, cfg)
}

// runtimeHandle tracks one supervised agent session: the live child if
// any, the retry gate, and the inferred status of the last exit.
type runtimeHandle struct {
	sessionID string
	agentType string

	retryCtx    context.Context
	retryCancel context.CancelFunc
	done        chan struct{}

	mu        sync.Mutex
	proc      runtime.AgentProcess
	kind      runtime.Kind
	lastExit  store.SessionStatus
}

func (h *runtimeHandle) setProc(p runtime.AgentProcess, kind runtime.Kind) {
	h.mu.Lock()
	h.proc = p
	h.kind = kind
	h.mu.Unlock()
}

func (h *runtimeHandle) liveProc() runtime.AgentProcess {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proc
}

func (h *runtimeHandle) setLastExit(s store.SessionStatus) {
	h.mu.Lock()
	h.lastExit = s
	h.mu.Unlock()
}

func (h *runtimeHandle) lastExitOr(def store.SessionStatus) store.SessionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastExit == "" {
		return def
	}
	return h.lastExit
}

func (h *runtimeHandle) cancelled() bool {
	return h.retryCtx.Err() != nil
}

// launchSpec carries everything one spawn attempt needs.
type launchSpec struct {
	sessionID string
	agentType string
	prompt    string
	system    string
	model     string
	resumeID  string
	mcpConfig string
	selection runtime.Selection
}

// RuntimeManager spawns and supervises headless agent children. One
// goroutine per session owns its spawn-pump-retry loop, so events for
// a session are recorded in stream order.
type RuntimeManager struct {
	st       *store.Store
	rec      *Recorder
	cfg      *config.Config
	inst     InstanceInfo
	registry *agent.Registry
	selector *runtime.Selector
	tracer   trace.Tracer

	spawn          spawnFunc
	commandFactory runtime.CommandFactoryFunc
	interval       time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	handles map[string]*runtimeHandle
	wg      sync.WaitGroup
}

// NewRuntimeManager builds the manager. The selector is seeded with
// whichever one-shot backends the config declares.
func NewRuntimeManager(st *store.Store, rec *Recorder, cfg *config.Config, inst InstanceInfo, registry *agent.Registry, tracer trace.Tracer) *RuntimeManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &RuntimeManager{
		st:       st,
		rec:      rec,
		cfg:      cfg,
		inst:     inst,
		registry: registry,
		selector: runtime.NewSelector(configuredKinds(cfg.Wrapper.Gpt)...),
		tracer:   tracer,
		spawn:    backendSpawn,
		interval: pollInterval,
		baseCtx:  ctx,
		cancel:   cancel,
		handles:  make(map[string]*runtimeHandle),
	}
}

func configuredKinds(g config.GptConfig) []runtime.Kind {
	var kinds []runtime.Kind
	if g.Exec.Configured() {
		kinds = append(kinds, runtime.KindGptExec)
	}
	if g.Stream.Configured() {
		kinds = append(kinds, runtime.KindGptStream)
	}
	if g.StreamEnv.Configured() {
		kinds = append(kinds, runtime.KindGptStreamEnv)
	}
	return kinds
}

// StartAgent validates a start-agent request against the parent
// session and the agent definition, creates the child session(s), and
// spawns their runtimes.
func (m *RuntimeManager) StartAgent(ctx context.Context, payload wire.StartAgentPayload, currentSessionID string) (*wire.StartAgentResult, error) {
	parent, err := m.resolveParent(payload.ParentSessionID, currentSessionID)
	if err != nil {
		return nil, err
	}

	def, err := m.loadDefinition(ctx, payload.AgentType)
	if err != nil {
		return nil, err
	}

	if err := m.checkAllowed(parent, payload.AgentType); err != nil {
		return nil, err
	}
	depth, err := m.checkDepth(parent)
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(tracing.AttrParentSessionID, parent.ID),
		attribute.String(tracing.AttrAgentType, payload.AgentType),
		attribute.Int(tracing.AttrSessionDepth, depth))

	resolvedMcps := m.resolveMcps(def, parent)

	selection, err := m.selector.Select(defRuntime(def), defModel(def))
	if err != nil {
		return nil, wire.Errorf(wire.CodeAgentTypeInvalid,
			"runtime for agent type %q: %v", payload.AgentType, err)
	}

	var opts wire.StartAgentOptions
	if payload.Options != nil {
		opts = *payload.Options
	}

	resumeID := ""
	if opts.Share {
		// The child joins the parent's conversation; same precedence
		// as checkout.
		if id, reason, ok := lookupResumeID(m.st, parent.ID); ok {
			resumeID = id
			log.Debug(log.CatRuntime, "Sharing parent conversation",
				"parent", store.ShortID(parent.ID), "reason", reason)
		}
	}

	count := payload.AgentCount
	if count < 1 {
		count = 1
	}

	result := &wire.StartAgentResult{}
	for i := 0; i < count; i++ {
		sess, err := m.createSession(parent, payload, def, selection, resolvedMcps)
		if err != nil {
			return nil, err
		}

		spec := launchSpec{
			sessionID: sess.ID,
			agentType: sess.AgentType,
			prompt:    payload.Prompt,
			system:    defInstructions(def),
			model:     defModel(def),
			resumeID:  resumeID,
			selection: selection,
		}
		if mcpConfig, err := agent.MarshalMCPConfig(resolvedMcps); err == nil {
			spec.mcpConfig = mcpConfig
		} else {
			log.Warn(log.CatRuntime, "Failed to encode MCP config", "error", err)
		}

		ready, err := m.launchRuntime(spec)
		if err != nil {
			return nil, err
		}
		if !opts.Detach {
			if err := <-ready; err != nil {
				return nil, wire.Errorf(wire.CodeInternal,
					"spawning %s runtime: %v", selection.Primary, err)
			}
		}
		result.Agents = append(result.Agents, wire.SpawnedAgent{
			SessionID: sess.ID,
			AgentType: sess.AgentType,
			Runtime:   string(selection.Primary),
		})
	}
	result.SessionID = result.Agents[0].SessionID
	return result, nil
}

func (m *RuntimeManager) resolveParent(parentSessionID, currentSessionID string) (*store.Session, error) {
	id := parentSessionID
	if id == "" {
		id = currentSessionID
	}
	if id == "" {
		return nil, wire.Errorf(wire.CodeSessionNotFound, "no parent session available")
	}
	return resolveProjectSession(m.st, m.inst.ProjectID, id)
}

// loadDefinition resolves the agent definition. Only general-purpose
// may run without one.
func (m *RuntimeManager) loadDefinition(ctx context.Context, agentType string) (*agent.Definition, error) {
	def, err := m.registry.Lookup(ctx, agentType)
	if err == nil {
		if strings.TrimSpace(def.Instructions) == "" {
			return nil, wire.Errorf(wire.CodeAgentInstructionsMissing,
				"agent type %q has no instructions body", agentType)
		}
		return def, nil
	}
	if errors.Is(err, agent.ErrNotFound) {
		if agentType == agent.TypeGeneralPurpose {
			return nil, nil
		}
		return nil, wire.Errorf(wire.CodeAgentTypeInvalid,
			"unknown agent type %q (available: %s)", agentType, strings.Join(m.registry.Types(), ", "))
	}
	return nil, wire.Errorf(wire.CodeAgentTypeInvalid, "loading agent type %q: %v", agentType, err)
}

// checkAllowed enforces the parent definition's allowedAgents set. The
// root TUI session may spawn anything.
func (m *RuntimeManager) checkAllowed(parent *store.Session, agentType string) error {
	if parent.AgentType == store.AgentTypeTui {
		return nil
	}
	meta, err := agent.DecodeMetadata(parent.MetadataJSON)
	if err != nil {
		log.Warn(log.CatRuntime, "Unreadable parent metadata, treating as unrestricted",
			"sessionId", parent.ID, "error", err)
		return nil
	}
	if !meta.Definition.Allows(agentType) {
		return wire.Errorf(wire.CodeAgentTypeNotAllowed,
			"agent type %q is not allowed by parent %s", agentType, store.ShortID(parent.ID))
	}
	return nil
}

// checkDepth returns the depth the child would occupy, or refuses when
// that exceeds the configured maximum.
func (m *RuntimeManager) checkDepth(parent *store.Session) (int, error) {
	depth, err := m.st.CalculateSessionDepth(parent.ID)
	if err != nil {
		return 0, err
	}
	if depth+1 > m.cfg.Wrapper.MaxAgentDepth {
		return 0, wire.Errorf(wire.CodeMaxDepthExceeded,
			"agent would sit at depth %d, maximum is %d", depth+1, m.cfg.Wrapper.MaxAgentDepth)
	}
	return depth + 1, nil
}

// resolveMcps merges project and parent MCP servers per the
// definition's inheritance flags. Resolution failures log and spawn
// without servers rather than blocking the agent.
func (m *RuntimeManager) resolveMcps(def *agent.Definition, parent *store.Session) map[string]json.RawMessage {
	project, err := agent.LoadProjectMcps(m.inst.RootPath)
	if err != nil {
		log.Warn(log.CatRuntime, "Failed to load project MCP manifest", "error", err)
	}
	var parentResolved map[string]json.RawMessage
	if meta, err := agent.DecodeMetadata(parent.MetadataJSON); err == nil {
		parentResolved = meta.ResolvedMcps
	}
	resolved, err := agent.ResolveMcps(def, project, parentResolved)
	if err != nil {
		log.Warn(log.CatRuntime, "MCP resolution failed, spawning without servers", "error", err)
		return nil
	}
	return resolved
}

func (m *RuntimeManager) createSession(parent *store.Session, payload wire.StartAgentPayload, def *agent.Definition, sel runtime.Selection, resolved map[string]json.RawMessage) (*store.Session, error) {
	meta, err := agent.EncodeMetadata(agent.Metadata{
		Definition:   def,
		Runtime:      sel,
		ResolvedMcps: resolved,
	})
	if err != nil {
		return nil, err
	}

	sess := &store.Session{
		ProjectID:    m.inst.ProjectID,
		ParentID:     parent.ID,
		AgentType:    payload.AgentType,
		InstanceID:   m.inst.InstanceID,
		Title:        sessionTitle(payload.Prompt),
		Prompt:       payload.Prompt,
		MetadataJSON: meta,
	}
	if err := m.st.CreateSession(sess); err != nil {
		return nil, err
	}

	if err := m.rec.Record(sess.ID, events.AgentSessionCreated, agentSessionCreatedPayload{
		AgentType:       sess.AgentType,
		ParentSessionID: parent.ID,
		Runtime:         string(sel.Primary),
	}); err != nil {
		log.Warn(log.CatRuntime, "Failed to record session creation", "sessionId", sess.ID, "error", err)
	}
	return sess, nil
}

// launchRuntime registers a handle and starts the supervision
// goroutine. The returned channel reports the first spawn attempt's
// outcome exactly once.
func (m *RuntimeManager) launchRuntime(spec launchSpec) (<-chan error, error) {
	h := &runtimeHandle{
		sessionID: spec.sessionID,
		agentType: spec.agentType,
		done:      make(chan struct{}),
	}
	h.retryCtx, h.retryCancel = context.WithCancel(m.baseCtx)

	m.mu.Lock()
	if _, exists := m.handles[spec.sessionID]; exists {
		m.mu.Unlock()
		return nil, wire.Errorf(wire.CodeInternal,
			"session %s already has a supervised runtime", store.ShortID(spec.sessionID))
	}
	m.handles[spec.sessionID] = h
	m.mu.Unlock()

	ready := make(chan error, 1)
	m.wg.Add(1)
	log.SafeGo("runtime-"+store.ShortID(spec.sessionID), func() {
		defer m.wg.Done()
		m.supervise(h, spec, ready)
	})
	return ready, nil
}

// supervise owns one session's runtime from first spawn to final
// status: pumps envelopes, retries silent startup failures with
// backoff, falls back to the secondary backend at most once, and
// settles the session when the last child is gone.
func (m *RuntimeManager) supervise(h *runtimeHandle, spec launchSpec, ready chan<- error) {
	defer close(h.done)
	defer m.dropHandle(h)

	kind := spec.selection.Primary
	fellBack := false
	attempt := 1
	notified := false
	notify := func(err error) {
		if !notified {
			ready <- err
			notified = true
		}
	}

	for {
		if h.cancelled() {
			m.finalize(h, h.lastExitOr(store.StatusInterrupted))
			notify(h.retryCtx.Err())
			return
		}

		policy := m.retryPolicy(kind)
		spawnCtx, span := m.tracer.Start(m.baseCtx, tracing.SpanRuntimeStart,
			trace.WithAttributes(
				attribute.String(tracing.AttrSessionID, h.sessionID),
				attribute.String(tracing.AttrAgentType, h.agentType),
				attribute.String(tracing.AttrRuntimeKind, string(kind)),
				attribute.Int(tracing.AttrRuntimeAttempt, attempt)))
		proc, err := m.spawn(spawnCtx, kind, m.runtimeConfig(spec, kind))
		if err != nil {
			span.RecordError(err)
			span.End()
			m.recordProcessError(h.sessionID, kind, err)
			if !fellBack && spec.selection.HasFallback() {
				log.Warn(log.CatRuntime, "Primary runtime failed to spawn, falling back",
					"sessionId", h.sessionID, "primary", string(kind), "fallback", string(spec.selection.Fallback), "error", err)
				kind = spec.selection.Fallback
				fellBack = true
				attempt = 1
				continue
			}
			m.finalize(h, store.StatusFailed)
			notify(err)
			return
		}

		h.setProc(proc, kind)
		pid := proc.PID()
		span.SetAttributes(attribute.Int(tracing.AttrRuntimePID, pid))
		span.AddEvent(tracing.EventRuntimeSpawned)

		row := &store.RuntimeProcess{SessionID: h.sessionID, Pid: pid, Kind: string(kind)}
		if err := m.st.OpenRuntimeProcess(row); err != nil {
			log.Warn(log.CatRuntime, "Failed to record runtime process", "sessionId", h.sessionID, "error", err)
		}
		if err := m.rec.Record(h.sessionID, events.AgentRuntimeSpawned, runtimeSpawnedPayload{
			Kind:    string(kind),
			Pid:     pid,
			Attempt: attempt,
			Resume:  spec.resumeID,
		}); err != nil {
			log.Warn(log.CatRuntime, "Failed to record runtime spawn", "sessionId", h.sessionID, "error", err)
		}
		notify(nil)

		m.pumpEvents(spawnCtx, h, proc)
		_ = proc.Wait()

		exit, _ := proc.ExitState()
		h.setProc(nil, kind)

		if row.ID != 0 {
			code := exit.Code
			if err := m.st.CloseRuntimeProcess(row.ID, &code); err != nil {
				log.Warn(log.CatRuntime, "Failed to close runtime process row", "error", err)
			}
		}
		if err := m.rec.Record(h.sessionID, events.AgentRuntimeProcessExited, processExitedPayload{
			Kind:   string(kind),
			Pid:    pid,
			Code:   exit.Code,
			Signal: exit.Signal,
		}); err != nil {
			log.Warn(log.CatRuntime, "Failed to record runtime exit", "sessionId", h.sessionID, "error", err)
		}

		inferred := runtimeExitStatus(proc.Status(), exit)
		h.setLastExit(inferred)

		// A child that died without a single output byte never started;
		// retry it instead of surfacing the failure.
		retry := !proc.SawOutput() && inferred != store.StatusInterrupted && policy.ShouldRetry(attempt)
		if retry {
			span.AddEvent(tracing.EventRuntimeRetried)
		}
		span.End()

		if retry {
			next := attempt + 1
			delay := policy.Backoff(next)
			if err := m.rec.Record(h.sessionID, events.AgentRuntimeRetry, retryPayload{
				Kind:        string(kind),
				Attempt:     next,
				MaxAttempts: policy.MaxAttempts,
				DelayMs:     delay.Milliseconds(),
			}); err != nil {
				log.Warn(log.CatRuntime, "Failed to record retry", "sessionId", h.sessionID, "error", err)
			}
			select {
			case <-h.retryCtx.Done():
				if err := m.rec.Record(h.sessionID, events.AgentRuntimeRetryCancelled, retryCancelledPayload{
					Attempt: next,
				}); err != nil {
					log.Warn(log.CatRuntime, "Failed to record retry cancellation", "error", err)
				}
				m.finalize(h, h.lastExitOr(store.StatusFailed))
				return
			case <-time.After(delay):
			}
			attempt = next
			continue
		}

		// A failed primary hands the prompt to the fallback, once.
		if inferred == store.StatusFailed && !fellBack && spec.selection.HasFallback() && !h.cancelled() {
			log.Warn(log.CatRuntime, "Primary runtime failed, switching to fallback",
				"sessionId", h.sessionID, "primary", string(kind), "fallback", string(spec.selection.Fallback))
			kind = spec.selection.Fallback
			fellBack = true
			attempt = 1
			continue
		}

		m.finalize(h, inferred)
		return
	}
}

// pumpEvents drains the child's channels until stdout and stderr both
// close.
func (m *RuntimeManager) pumpEvents(ctx context.Context, h *runtimeHandle, p runtime.AgentProcess) {
	evCh := p.Events()
	stderrCh := p.Stderr()
	errCh := p.Errors()

	for evCh != nil || stderrCh != nil {
		select {
		case env, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			m.handleEnvelope(ctx, h, env)
		case line, ok := <-stderrCh:
			if !ok {
				stderrCh = nil
				continue
			}
			if err := m.rec.Record(h.sessionID, events.AgentRuntimeStderr, stderrPayload{Line: line}); err != nil {
				log.Warn(log.CatRuntime, "Failed to record stderr line", "sessionId", h.sessionID, "error", err)
			}
		case err := <-errCh:
			m.recordProcessError(h.sessionID, p.Kind(), err)
		}
	}
}

// handleEnvelope records one child event and applies its session
// side-effects.
func (m *RuntimeManager) handleEnvelope(ctx context.Context, h *runtimeHandle, env runtime.Envelope) {
	if err := m.rec.Record(h.sessionID, env.EventKind(), envelopePayload(env)); err != nil {
		log.ErrorErr(log.CatRuntime, "Failed to record runtime event", err,
			"sessionId", h.sessionID, "kind", string(env.EventKind()))
	}

	switch env.Type {
	case runtime.EventStatus:
		m.applyStatus(h, env.Status)
	case runtime.EventMessage:
		m.forwardUpdate(ctx, h, env)
	case runtime.EventError:
		m.settleSession(h, store.StatusFailed)
	case runtime.EventDone:
		m.settleSession(h, doneStatus(env.Status))
	case runtime.EventClaudeSession:
		m.linkClaudeSession(ctx, h, env)
	}
}

// envelopePayload prefers the child's raw line so nothing is lost in
// the typed representation.
func envelopePayload(env runtime.Envelope) any {
	if len(env.Raw) > 0 {
		return json.RawMessage(env.Raw)
	}
	return env
}

func (m *RuntimeManager) applyStatus(h *runtimeHandle, status string) {
	switch status {
	case "running":
		if err := m.st.UpdateSessionStatus(h.sessionID, store.StatusRunning); err != nil {
			log.Warn(log.CatRuntime, "Failed to mark session running", "sessionId", h.sessionID, "error", err)
		}
	case "completed":
		sess, err := m.st.GetSession(h.sessionID)
		if err != nil || sess.Status != store.StatusRunning {
			return
		}
		if err := m.st.MarkSessionEnded(h.sessionID, store.StatusDone); err != nil {
			log.Warn(log.CatRuntime, "Failed to mark session done", "sessionId", h.sessionID, "error", err)
		}
	}
}

// forwardUpdate surfaces an [UPDATE] message to the parent session.
// Best effort; a failure never disturbs the stream.
func (m *RuntimeManager) forwardUpdate(ctx context.Context, h *runtimeHandle, env runtime.Envelope) {
	text, ok := env.UpdateText()
	if !ok {
		return
	}
	sess, err := m.st.GetSession(h.sessionID)
	if err != nil || sess.ParentID == "" {
		return
	}
	if err := m.st.InsertAgentUpdate(&store.AgentUpdate{
		SessionID:       h.sessionID,
		ParentSessionID: sess.ParentID,
		UpdateText:      text,
	}); err != nil {
		log.Warn(log.CatRuntime, "Failed to queue agent update", "sessionId", h.sessionID, "error", err)
		return
	}
	trace.SpanFromContext(ctx).AddEvent(tracing.EventUpdateForwarded)
}

func (m *RuntimeManager) linkClaudeSession(ctx context.Context, h *runtimeHandle, env runtime.Envelope) {
	if env.SessionID == "" {
		return
	}
	if err := m.st.ActivateLink(&store.ClaudeSessionLink{
		SessionID:       h.sessionID,
		ClaudeSessionID: env.SessionID,
		TranscriptPath:  env.TranscriptPath,
		Source:          store.LinkSourceRuntime,
	}); err != nil {
		log.Warn(log.CatRuntime, "Failed to activate session link", "sessionId", h.sessionID, "error", err)
	} else {
		trace.SpanFromContext(ctx).AddEvent(tracing.EventLinkActivated,
			trace.WithAttributes(attribute.String(tracing.AttrClaudeSessionID, env.SessionID)))
	}
	if err := m.st.SetSessionClaudeSession(h.sessionID, env.SessionID, env.TranscriptPath); err != nil {
		log.Warn(log.CatRuntime, "Failed to cache conversation id", "sessionId", h.sessionID, "error", err)
	}
}

// settleSession marks a session terminal unless an earlier event
// already did.
func (m *RuntimeManager) settleSession(h *runtimeHandle, status store.SessionStatus) {
	sess, err := m.st.GetSession(h.sessionID)
	if err != nil {
		log.Warn(log.CatRuntime, "Failed to load session for settling", "sessionId", h.sessionID, "error", err)
		return
	}
	if sess.Status.Terminal() {
		return
	}
	if err := m.st.MarkSessionEnded(h.sessionID, status); err != nil {
		log.Warn(log.CatRuntime, "Failed to settle session", "sessionId", h.sessionID, "error", err)
	}
}

// finalize settles the session after supervision ends.
func (m *RuntimeManager) finalize(h *runtimeHandle, status store.SessionStatus) {
	m.settleSession(h, status)
}

func (m *RuntimeManager) recordProcessError(sessionID string, kind runtime.Kind, err error) {
	if recErr := m.rec.Record(sessionID, events.AgentRuntimeProcessError, processErrorPayload{
		Kind:  string(kind),
		Error: err.Error(),
	}); recErr != nil {
		log.Warn(log.CatRuntime, "Failed to record process error", "sessionId", sessionID, "error", recErr)
	}
}

func (m *RuntimeManager) dropHandle(h *runtimeHandle) {
	m.mu.Lock()
	if m.handles[h.sessionID] == h {
		delete(m.handles, h.sessionID)
	}
	m.mu.Unlock()
}

func (m *RuntimeManager) handleFor(sessionID string) *runtimeHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles[sessionID]
}

// runtimeConfig assembles the spawn config for one attempt.
func (m *RuntimeManager) runtimeConfig(spec launchSpec, kind runtime.Kind) runtime.Config {
	cfg := runtime.Config{
		WorkDir:         m.inst.RootPath,
		SessionID:       spec.sessionID,
		Prompt:          spec.prompt,
		SystemPrompt:    spec.system,
		ResumeID:        spec.resumeID,
		Model:           spec.model,
		FallbackModel:   m.cfg.SDK.FallbackModel,
		PermissionMode:  m.cfg.SDK.PermissionMode,
		ReasoningEffort: m.cfg.SDK.ReasoningEffort,
		MCPConfig:       spec.mcpConfig,
		Env: map[string]string{
			EnvProjectHash:    m.inst.ProjectHash,
			EnvInstanceID:     m.inst.InstanceID,
			EnvSessionID:      spec.sessionID,
			EnvSessionIDShort: store.ShortID(spec.sessionID),
		},
		CommandFactory: m.commandFactory,
	}
	if cfg.Model == "" {
		cfg.Model = m.cfg.SDK.Model
	}
	if kind == runtime.KindNative {
		cfg.BinaryPath = m.cfg.SDK.RunnerBinary
	} else if backend, ok := m.cfg.Wrapper.Gpt.Backend(kind.GptName()); ok {
		cfg.BinaryPath = backend.BinaryPath
	}
	return cfg
}

// retryPolicy returns the startup-retry policy for a kind. Native
// children get a single attempt; retries are a one-shot concern.
func (m *RuntimeManager) retryPolicy(kind runtime.Kind) runtime.RetryPolicy {
	backend, ok := m.cfg.Wrapper.Gpt.Backend(kind.GptName())
	if !ok {
		return runtime.RetryPolicy{MaxAttempts: 1}
	}
	policy := runtime.RetryPolicy{
		MaxAttempts: backend.StartupRetries,
		Delay:       time.Duration(backend.StartupRetryDelayMs) * time.Millisecond,
		Jitter:      time.Duration(backend.StartupRetryJitterMs) * time.Millisecond,
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return policy
}

func defRuntime(def *agent.Definition) string {
	if def == nil {
		return ""
	}
	return def.Runtime
}

func defModel(def *agent.Definition) string {
	if def == nil {
		return ""
	}
	return def.Model
}

func defInstructions(def *agent.Definition) string {
	if def == nil {
		return ""
	}
	return def.Instructions
}

func doneStatus(s string) store.SessionStatus {
	switch s {
	case "failed":
		return store.StatusFailed
	case "interrupted":
		return store.StatusInterrupted
	default:
		return store.StatusDone
	}
}

// sessionTitle derives a short title from the prompt's first line.
func sessionTitle(prompt string) string {
	line := strings.TrimSpace(prompt)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	const maxRunes = 64
	if utf8.RuneCountInString(line) <= maxRunes {
		return line
	}
	runes := []rune(line)
	return string(runes[:maxRunes-3]) + "..."
}

type agentSessionCreatedPayload struct {
	AgentType       string `json:"agentType"`
	ParentSessionID string `json:"parentSessionId"`
	Runtime         string `json:"runtime"`
}

type runtimeSpawnedPayload struct {
	Kind    string `json:"kind"`
	Pid     int    `json:"pid"`
	Attempt int    `json:"attempt"`
	Resume  string `json:"resume,omitempty"`
}

type processExitedPayload struct {
	Kind   string `json:"kind"`
	Pid    int    `json:"pid"`
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

type processErrorPayload struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type stderrPayload struct {
	Line string `json:"line"`
}

type retryPayload struct {
	Kind        string `json:"kind"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	DelayMs     int64  `json:"delayMs"`
}

type retryCancelledPayload struct {
	Attempt int `json:"attempt"`
}
