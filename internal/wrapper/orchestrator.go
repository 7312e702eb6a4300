package wrapper

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/zjrosen/klaude/internal/agent"
	"github.com/zjrosen/klaude/internal/config"
	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/tracing"
)

// instanceMetadata is persisted on the instance row so later launches
// (switch relaunch in particular) reuse the same TUI arguments.
type instanceMetadata struct {
	TuiArgs []string `json:"tuiArgs,omitempty"`
}

// Orchestrator composes one wrapper instance: shared store, recorder,
// control socket, TUI lifecycle, runtime supervision, and the update
// watcher.
type Orchestrator struct {
	cfg      config.Config
	rootPath string
	tuiArgs  []string
	home     string

	st       *store.Store
	rec      *Recorder
	inst     InstanceInfo
	registry *store.InstanceRegistry
	tracer   *tracing.Provider
	tui      *TuiManager
	runtimes *RuntimeManager
	router   *Router
	server   *Server

	rootSessionID string
	bgCancel      context.CancelFunc
}

// New builds an orchestrator for the project rooted at rootPath.
// tuiArgs are passed through to every TUI launch.
func New(cfg config.Config, rootPath string, tuiArgs []string) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		rootPath: rootPath,
		tuiArgs:  tuiArgs,
		home:     paths.Home(),
	}
}

// Run owns the instance end to end: set everything up, launch the root
// TUI, serve the socket until the final TUI exit, then tear down.
// Returns the process exit code.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	if err := o.startup(ctx); err != nil {
		o.teardownEarly()
		return 1, err
	}
	exit := <-o.tui.Done()
	return o.shutdown(ctx, exit)
}

func (o *Orchestrator) startup(ctx context.Context) error {
	st, err := store.Open(paths.DBPath(o.home))
	if err != nil {
		return err
	}
	o.st = st

	project, err := st.EnsureProject(o.rootPath)
	if err != nil {
		return err
	}

	instanceID := store.NewID()
	o.inst = InstanceInfo{
		InstanceID:  instanceID,
		ProjectID:   project.ID,
		ProjectHash: project.ProjectHash,
		RootPath:    project.RootPath,
		Pid:         os.Getpid(),
	}

	meta, _ := json.Marshal(instanceMetadata{TuiArgs: o.tuiArgs})
	if err := st.CreateInstance(&store.Instance{
		InstanceID:   instanceID,
		ProjectID:    project.ID,
		Pid:          o.inst.Pid,
		Tty:          ttyName(),
		MetadataJSON: string(meta),
	}); err != nil {
		return err
	}

	socketPath := paths.SocketPath(o.cfg.Wrapper.ResolveSocketDir(o.home), project.ProjectHash, instanceID)
	o.registry = store.NewInstanceRegistry(paths.RegistryDir(o.home), project.ProjectHash)
	if err := o.registry.Register(store.RegistryEntry{
		InstanceID: instanceID,
		Pid:        o.inst.Pid,
		Tty:        ttyName(),
		RootPath:   project.RootPath,
		SocketPath: socketPath,
		StartedAt:  time.Now().UTC(),
	}); err != nil {
		log.Warn(log.CatWrapper, "Failed to register instance", "error", err)
	}

	o.rec = NewRecorder(st, project.ID, paths.SessionLogDir(o.cfg.Wrapper.ResolveProjectsDir(o.home), project.ProjectHash))
	o.tracer = o.newTracer()

	root := &store.Session{
		ProjectID:  project.ID,
		AgentType:  store.AgentTypeTui,
		InstanceID: instanceID,
	}
	if err := st.CreateSession(root); err != nil {
		return err
	}
	o.rootSessionID = root.ID

	o.runtimes = NewRuntimeManager(st, o.rec, &o.cfg, o.inst, agent.NewRegistry(o.rootPath), o.tracer.Tracer())
	o.tui = NewTuiManager(st, o.rec, o.cfg.Wrapper, o.inst, o.tuiArgs, o.tracer.Tracer())
	o.tui.AttachRuntimes(o.runtimes)
	o.router = NewRouter(st, o.tui, o.runtimes, o.inst, o.tracer.Tracer())
	o.server = NewServer(socketPath, o.router)

	if err := o.server.Start(ctx); err != nil {
		return err
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	o.bgCancel = bgCancel
	watcher := NewUpdateWatcher(st, o.rec, instanceID)
	log.SafeGo("update-watcher", func() { watcher.Run(bgCtx) })
	log.SafeGo("failure-log", func() { o.logRuntimeFailures(bgCtx) })

	if err := o.rec.Record(root.ID, events.WrapperStart, wrapperStartPayload{
		InstanceID: instanceID,
		Pid:        o.inst.Pid,
		RootPath:   project.RootPath,
		SocketPath: socketPath,
	}); err != nil {
		log.Warn(log.CatWrapper, "Failed to record wrapper start", "error", err)
	}
	log.Info(log.CatWrapper, "Wrapper instance started",
		"instanceId", instanceID, "project", project.ProjectHash, "socket", socketPath)

	// Foreground launch blocks until the session-start hook has linked
	// the conversation.
	return o.tui.LaunchForSession(ctx, root.ID, "")
}

// logRuntimeFailures mirrors agent failure events into the shared
// wrapper log, so one tail of klaude.log covers every session of the
// instance. Per-session detail stays in the JSONL logs.
func (o *Orchestrator) logRuntimeFailures(ctx context.Context) {
	for ev := range o.rec.Events().Subscribe(ctx) {
		detail, ok := runtimeFailureDetail(ev.Payload.Line)
		if !ok {
			continue
		}
		log.Warn(log.CatRuntime, "Agent runtime failure",
			"sessionId", ev.Payload.SessionID, "kind", string(ev.Payload.Line.Kind), "error", detail)
	}
}

// runtimeFailureDetail reports whether a recorded event is an agent
// failure worth a wrapper-log line, and extracts its error text.
func runtimeFailureDetail(line events.LogLine) (string, bool) {
	switch line.Kind {
	case events.AgentRuntimeError, events.AgentRuntimeProcessError:
	default:
		return "", false
	}
	detail := line.PayloadField("error")
	if detail == "" {
		detail = line.PayloadField("message")
	}
	return detail, true
}

func (o *Orchestrator) newTracer() *tracing.Provider {
	tcfg := tracing.Config{
		Enabled:      o.cfg.Tracing.Enabled,
		Exporter:     o.cfg.Tracing.Exporter,
		FilePath:     o.cfg.Tracing.FilePath,
		OTLPEndpoint: o.cfg.Tracing.OTLPEndpoint,
		SampleRate:   o.cfg.Tracing.SampleRate,
		ServiceName:  "klaude",
	}
	if tcfg.FilePath == "" {
		tcfg.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tcfg)
	if err != nil {
		log.Warn(log.CatWrapper, "Tracing disabled", "error", err)
		provider, _ = tracing.NewProvider(tracing.Config{Enabled: false})
	}
	return provider
}

func (o *Orchestrator) shutdown(ctx context.Context, exit TuiExit) (int, error) {
	if o.bgCancel != nil {
		o.bgCancel()
	}
	o.runtimes.Shutdown(ctx)
	o.server.Stop()

	code := finalExitCode(exit)
	if err := o.rec.Record(exit.SessionID, events.WrapperFinalized, wrapperFinalizedPayload{
		ExitCode: code,
		Status:   string(exit.Status),
	}); err != nil {
		log.Warn(log.CatWrapper, "Failed to record finalization", "error", err)
	}

	if err := o.st.EndInstance(o.inst.InstanceID, code); err != nil {
		log.Warn(log.CatWrapper, "Failed to end instance row", "error", err)
	}
	if err := o.registry.Deregister(o.inst.InstanceID); err != nil {
		log.Warn(log.CatWrapper, "Failed to deregister instance", "error", err)
	}

	o.rec.Close()
	if err := o.tracer.Shutdown(ctx); err != nil {
		log.Warn(log.CatWrapper, "Tracer shutdown failed", "error", err)
	}
	if err := o.st.Close(); err != nil {
		log.Warn(log.CatWrapper, "Store close failed", "error", err)
	}

	log.Info(log.CatWrapper, "Wrapper instance finished",
		"instanceId", o.inst.InstanceID, "exitCode", code, "status", string(exit.Status))
	if exit.Err != nil {
		return code, exit.Err
	}
	return code, nil
}

// teardownEarly cleans up a partial startup so a failed launch leaks
// neither the instance row nor the socket.
func (o *Orchestrator) teardownEarly() {
	if o.tui != nil {
		o.tui.StopCurrent()
	}
	if o.runtimes != nil {
		o.runtimes.Shutdown(context.Background())
	}
	if o.bgCancel != nil {
		o.bgCancel()
	}
	if o.server != nil {
		o.server.Stop()
	}
	if o.st != nil {
		if o.inst.InstanceID != "" {
			if err := o.st.EndInstance(o.inst.InstanceID, 1); err != nil {
				log.Warn(log.CatWrapper, "Failed to end instance row", "error", err)
			}
		}
		if o.registry != nil {
			if err := o.registry.Deregister(o.inst.InstanceID); err != nil {
				log.Warn(log.CatWrapper, "Failed to deregister instance", "error", err)
			}
		}
		_ = o.st.Close()
	}
	if o.rec != nil {
		o.rec.Close()
	}
	if o.tracer != nil {
		_ = o.tracer.Shutdown(context.Background())
	}
}

// finalExitCode maps the final TUI exit onto the wrapper's own exit
// code: the TUI's code when it exited on its own, 1 for
// signal-terminated or failed relaunch.
func finalExitCode(exit TuiExit) int {
	switch {
	case exit.Err != nil:
		return 1
	case exit.Result.Signal != "":
		return 1
	case exit.Result.Code >= 0:
		return exit.Result.Code
	default:
		return 1
	}
}

type wrapperStartPayload struct {
	InstanceID string `json:"instanceId"`
	Pid        int    `json:"pid"`
	RootPath   string `json:"rootPath"`
	SocketPath string `json:"socketPath"`
}

type wrapperFinalizedPayload struct {
	ExitCode int    `json:"exitCode"`
	Status   string `json:"status"`
}
