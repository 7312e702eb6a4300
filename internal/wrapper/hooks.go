package wrapper

import (
	"fmt"
	"os"

	"github.com/zjrosen/klaude/internal/store"
)

// HookPayload is the JSON the TUI pipes to its lifecycle hooks.
type HookPayload struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	Source         string `json:"source,omitempty"`
	HookEventName  string `json:"hook_event_name,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// HookEnv is the wrapper identity a hook process inherits from its
// environment. A TUI launched outside any wrapper has none of it.
type HookEnv struct {
	ProjectHash string
	InstanceID  string
	SessionID   string
}

// HookEnvFromOS reads the wrapper exports.
func HookEnvFromOS() HookEnv {
	return HookEnv{
		ProjectHash: os.Getenv(EnvProjectHash),
		InstanceID:  os.Getenv(EnvInstanceID),
		SessionID:   os.Getenv(EnvSessionID),
	}
}

// Managed reports whether the calling TUI was launched by a wrapper.
func (e HookEnv) Managed() bool {
	return e.SessionID != ""
}

// HandleSessionStart links the conversation the TUI just opened to the
// owning session: activates the session link and caches the id on the
// session row. Startup and resume subtypes both land here.
func HandleSessionStart(st *store.Store, env HookEnv, payload HookPayload) error {
	if !env.Managed() {
		return nil
	}
	if payload.SessionID == "" {
		return fmt.Errorf("session-start hook carried no session_id")
	}

	source := store.LinkSourceStartup
	if payload.Source == "resume" {
		source = store.LinkSourceResume
	}

	if err := st.ActivateLink(&store.ClaudeSessionLink{
		SessionID:       env.SessionID,
		ClaudeSessionID: payload.SessionID,
		TranscriptPath:  payload.TranscriptPath,
		Source:          source,
	}); err != nil {
		return fmt.Errorf("activating session link: %w", err)
	}
	if err := st.SetSessionClaudeSession(env.SessionID, payload.SessionID, payload.TranscriptPath); err != nil {
		return fmt.Errorf("caching conversation id: %w", err)
	}
	return nil
}

// HandleSessionEnd closes the link for the conversation that ended.
// Unknown conversations are a no-op; the hook must never disturb the
// TUI.
func HandleSessionEnd(st *store.Store, env HookEnv, payload HookPayload) error {
	if !env.Managed() || payload.SessionID == "" {
		return nil
	}
	return st.EndLinkByClaudeID(payload.SessionID)
}
