package wrapper

import (
	"context"
	"time"

	"github.com/zjrosen/klaude/internal/events"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/store"
)

// updateInterval paces the pending-update sweep.
const updateInterval = 2 * time.Second

// UpdateWatcher polls the shared store for unacknowledged child
// updates addressed to this instance's sessions and surfaces each as
// an event on the parent session. Children in other instances write
// updates through the same database, so polling is the delivery path.
type UpdateWatcher struct {
	st         *store.Store
	rec        *Recorder
	instanceID string
	interval   time.Duration
}

// NewUpdateWatcher builds the watcher for one instance.
func NewUpdateWatcher(st *store.Store, rec *Recorder, instanceID string) *UpdateWatcher {
	return &UpdateWatcher{st: st, rec: rec, instanceID: instanceID, interval: updateInterval}
}

// Run sweeps until the context ends.
func (w *UpdateWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.deliverPending()
		}
	}
}

func (w *UpdateWatcher) deliverPending() {
	updates, err := w.st.ListPendingUpdatesForInstance(w.instanceID)
	if err != nil {
		log.Warn(log.CatWrapper, "Failed to list pending updates", "error", err)
		return
	}
	if len(updates) == 0 {
		return
	}

	acked := make([]int64, 0, len(updates))
	for _, u := range updates {
		if err := w.rec.Record(u.ParentSessionID, events.AgentUpdateDelivered, updateDeliveredPayload{
			FromSessionID: u.SessionID,
			Text:          u.UpdateText,
		}); err != nil {
			// Leave unacknowledged; the next sweep retries it.
			log.Warn(log.CatWrapper, "Failed to deliver agent update", "updateId", u.ID, "error", err)
			continue
		}
		acked = append(acked, u.ID)
	}
	if len(acked) == 0 {
		return
	}
	if err := w.st.AcknowledgeAgentUpdates(acked); err != nil {
		log.Warn(log.CatWrapper, "Failed to acknowledge updates", "error", err)
	}
}

type updateDeliveredPayload struct {
	FromSessionID string `json:"fromSessionId"`
	Text          string `json:"text"`
}
