package tracing

// Span attribute keys for wrapper tracing.
// These constants define the semantic conventions for span attributes
// across the control channel, checkout, and runtime lifecycles.
const (
	// Control channel attributes
	AttrRequestAction = "request.action"
	AttrErrorCode     = "request.error_code"

	// Session attributes
	AttrSessionID       = "session.id"
	AttrParentSessionID = "session.parent_id"
	AttrAgentType       = "agent.type"
	AttrSessionDepth    = "session.depth"

	// Runtime attributes
	AttrRuntimeKind    = "runtime.kind"
	AttrRuntimePID     = "runtime.pid"
	AttrRuntimeAttempt = "runtime.attempt"

	// Checkout attributes
	AttrCheckoutTarget = "checkout.target"
	AttrResumeID       = "checkout.resume_id"
	AttrResumeSource   = "checkout.resume_source"
	AttrWaitSeconds    = "checkout.wait_seconds"

	// Foreground TUI attributes
	AttrTUIPID        = "tui.pid"
	AttrTUIExitStatus = "tui.exit_status"

	// Vendor conversation attributes
	AttrClaudeSessionID = "claude.session_id"
)

// Span names for the wrapper's instrumented operations. Control channel
// requests append the action name to SpanPrefixRequest ("sock.checkout",
// "sock.start-agent", ...).
const (
	SpanPrefixRequest = "sock."
	SpanCheckout      = "checkout.switch"
	SpanRuntimeStart  = "runtime.start"
	SpanRuntimeStop   = "runtime.stop"
	SpanTUIRun        = "tui.run"
)

// Event names for span events.
const (
	EventResumeResolved  = "checkout.resume_resolved"
	EventTUIStopped      = "checkout.tui_stopped"
	EventRuntimeSpawned  = "runtime.spawned"
	EventRuntimeRetried  = "runtime.retried"
	EventRuntimeKilled   = "runtime.killed"
	EventLinkActivated   = "claude_session.linked"
	EventUpdateForwarded = "update.forwarded"
)
