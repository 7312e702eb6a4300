package wrapper

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/tracing"
	"github.com/zjrosen/klaude/internal/wire"
)

// Router dispatches decoded control requests to the managers and maps
// failures onto protocol errors.
type Router struct {
	st     *store.Store
	tui    *TuiManager
	rt     *RuntimeManager
	inst   InstanceInfo
	tracer trace.Tracer
}

// NewRouter builds the dispatch layer for one instance.
func NewRouter(st *store.Store, tui *TuiManager, rt *RuntimeManager, inst InstanceInfo, tracer trace.Tracer) *Router {
	return &Router{st: st, tui: tui, rt: rt, inst: inst, tracer: tracer}
}

// Handle answers one request. Never panics outward; every failure is a
// typed protocol error.
func (r *Router) Handle(ctx context.Context, req wire.Request) wire.Response {
	ctx, span := r.tracer.Start(ctx, tracing.SpanPrefixRequest+req.Action,
		trace.WithAttributes(attribute.String(tracing.AttrRequestAction, req.Action)))
	defer span.End()

	result, err := r.dispatch(ctx, req)
	if err != nil {
		werr := wire.AsError(err)
		span.RecordError(err)
		span.SetAttributes(attribute.String(tracing.AttrErrorCode, string(werr.Code)))
		log.Warn(log.CatSock, "Request failed",
			"action", req.Action, "code", string(werr.Code), "error", werr.Message)
		return wire.ErrResponse(werr)
	}
	return wire.OKResponse(result)
}

func (r *Router) dispatch(ctx context.Context, req wire.Request) (any, error) {
	switch req.Action {
	case wire.ActionPing:
		return &wire.PingResult{Pong: true, Timestamp: time.Now().UTC().Format(time.RFC3339)}, nil

	case wire.ActionStatus:
		return r.status(), nil

	case wire.ActionStartAgent:
		var p wire.StartAgentPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.AgentType) == "" {
			return nil, wire.Errorf(wire.CodeAgentTypeRequired, "agentType is required")
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, wire.Errorf(wire.CodePromptRequired, "prompt is required")
		}
		result, err := r.rt.StartAgent(ctx, p, r.tui.CurrentSessionID())
		if err != nil {
			return nil, err
		}
		if p.Options != nil && p.Options.Checkout {
			// Spawn succeeded; a checkout failure is reported but must
			// not unwind the started agents.
			if _, err := r.tui.Checkout(ctx, wire.CheckoutPayload{SessionID: result.SessionID}); err != nil {
				log.Warn(log.CatWrapper, "Checkout after spawn failed",
					"sessionId", result.SessionID, "error", err)
			}
		}
		return result, nil

	case wire.ActionCheckout:
		var p wire.CheckoutPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if err := validateWait(p.WaitSeconds); err != nil {
			return nil, err
		}
		return r.tui.Checkout(ctx, p)

	case wire.ActionMessage:
		var p wire.MessagePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.SessionID) == "" {
			return nil, wire.Errorf(wire.CodeSessionNotFound, "sessionId is required")
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, wire.Errorf(wire.CodePromptRequired, "prompt is required")
		}
		if err := validateWait(p.WaitSeconds); err != nil {
			return nil, err
		}
		return r.rt.Message(ctx, p)

	case wire.ActionInterrupt:
		var p wire.InterruptPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.SessionID) == "" {
			return nil, wire.Errorf(wire.CodeSessionNotFound, "sessionId is required")
		}
		return r.rt.Interrupt(p)

	default:
		return nil, wire.Errorf(wire.CodeUnsupportedAction, "unsupported action %q", req.Action)
	}
}

func (r *Router) status() *wire.StatusResult {
	sid := r.tui.CurrentSessionID()
	result := &wire.StatusResult{
		InstanceID:  r.inst.InstanceID,
		ProjectHash: r.inst.ProjectHash,
		RootPath:    r.inst.RootPath,
		SessionID:   sid,
		TuiPid:      r.tui.CurrentPid(),
		Switching:   r.tui.Switching(),
	}
	if sess, err := r.st.GetSession(sid); err == nil {
		result.SessionStatus = string(sess.Status)
	}
	return result
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return wire.Errorf(wire.CodeInvalidJSON, "invalid payload: %v", err)
	}
	return nil
}

func validateWait(v *float64) error {
	if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return wire.Errorf(wire.CodeInvalidWaitValue, "waitSeconds must be a non-negative number")
	}
	return nil
}
