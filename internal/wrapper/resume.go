package wrapper

import (
	"context"
	"time"

	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

// Reasons recorded with a resume-id decision.
const (
	resumeReasonActiveLink   = "active_link"
	resumeReasonLatestLink   = "latest_link"
	resumeReasonCached       = "cached"
	resumeReasonWaitedActive = "waited_active_link"
	resumeReasonWaitedLatest = "waited_latest_link"
	resumeReasonWaitedCached = "waited_cached"
)

// lookupResumeID picks the conversation id to resume for a session:
// the active link wins, then the most recently started link, then the
// id cached on the session row.
func lookupResumeID(st *store.Store, sessionID string) (string, string, bool) {
	if link, err := st.GetActiveLink(sessionID); err == nil {
		return link.ClaudeSessionID, resumeReasonActiveLink, true
	}
	if link, err := st.GetLatestLink(sessionID); err == nil {
		return link.ClaudeSessionID, resumeReasonLatestLink, true
	}
	if sess, err := st.GetSession(sessionID); err == nil && sess.LastClaudeSessionID != "" {
		return sess.LastClaudeSessionID, resumeReasonCached, true
	}
	return "", "", false
}

// resolveResumeID resolves the conversation id for a session, polling
// up to wait when nothing is known yet. While polling, a cached id is
// remembered but not returned early: a link recorded before the
// deadline supersedes it. Returns the id and the reason it was chosen.
func resolveResumeID(ctx context.Context, st *store.Store, sessionID string, wait, interval time.Duration) (string, string, error) {
	if id, reason, ok := lookupResumeID(st, sessionID); ok {
		return id, reason, nil
	}
	if wait <= 0 {
		return "", "", wire.Errorf(wire.CodeSwitchTargetMissing,
			"no conversation recorded for session %s", store.ShortID(sessionID))
	}

	var cached string
	deadline := time.Now().Add(wait)
	for {
		if link, err := st.GetActiveLink(sessionID); err == nil {
			return link.ClaudeSessionID, resumeReasonWaitedActive, nil
		}
		if link, err := st.GetLatestLink(sessionID); err == nil {
			return link.ClaudeSessionID, resumeReasonWaitedLatest, nil
		}
		if cached == "" {
			if sess, err := st.GetSession(sessionID); err == nil {
				cached = sess.LastClaudeSessionID
			}
		}

		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			if cached != "" {
				return cached, resumeReasonWaitedCached, nil
			}
			return "", "", wire.Errorf(wire.CodeSwitchTargetMissing,
				"wait for session %s interrupted: %v", store.ShortID(sessionID), ctx.Err())
		case <-time.After(interval):
		}
	}

	if cached != "" {
		return cached, resumeReasonWaitedCached, nil
	}
	return "", "", wire.Errorf(wire.CodeSwitchTargetMissing,
		"no conversation recorded for session %s after waiting", store.ShortID(sessionID))
}
