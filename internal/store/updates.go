package store

import (
	"database/sql"
)

// InsertAgentUpdate records a progress note extracted from an agent's
// output stream, addressed to its parent session.
func (s *Store) InsertAgentUpdate(u *AgentUpdate) error {
	now := nowMillis()
	res, err := s.db.Exec(
		`INSERT INTO agent_updates (session_id, parent_session_id, update_text, acknowledged, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		u.SessionID, nullStr(u.ParentSessionID), u.UpdateText, now,
	)
	if err != nil {
		return dbErr("insert agent update", err)
	}
	u.ID, _ = res.LastInsertId()
	u.CreatedAt = fromMillis(now)
	return nil
}

// ListPendingUpdatesForInstance returns unacknowledged updates whose
// parent session is foregrounded on the given wrapper instance, oldest
// first. These are the notes the wrapper surfaces to the user.
func (s *Store) ListPendingUpdatesForInstance(instanceID string) ([]*AgentUpdate, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.session_id, u.parent_session_id, u.update_text, u.acknowledged, u.created_at
		 FROM agent_updates u
		 JOIN sessions p ON p.id = u.parent_session_id
		 WHERE p.instance_id = ? AND u.acknowledged = 0
		 ORDER BY u.id`,
		instanceID,
	)
	if err != nil {
		return nil, dbErr("list agent updates", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAgentUpdates(rows)
}

// ListSessionUpdates returns every update a session has emitted.
func (s *Store) ListSessionUpdates(sessionID string) ([]*AgentUpdate, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, parent_session_id, update_text, acknowledged, created_at
		 FROM agent_updates WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, dbErr("list agent updates", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAgentUpdates(rows)
}

// AcknowledgeAgentUpdates marks the given update rows delivered.
func (s *Store) AcknowledgeAgentUpdates(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr("ack agent updates", err)
	}
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE agent_updates SET acknowledged = 1 WHERE id = ?`, id); err != nil {
			_ = tx.Rollback()
			return dbErr("ack agent updates", err)
		}
	}
	return dbErr("ack agent updates", tx.Commit())
}

func scanAgentUpdates(rows *sql.Rows) ([]*AgentUpdate, error) {
	var out []*AgentUpdate
	for rows.Next() {
		var u AgentUpdate
		var parent sql.NullString
		var acked int
		var created int64
		if err := rows.Scan(&u.ID, &u.SessionID, &parent, &u.UpdateText, &acked, &created); err != nil {
			return nil, dbErr("scan agent update", err)
		}
		u.ParentSessionID = parent.String
		u.Acknowledged = acked != 0
		u.CreatedAt = fromMillis(created)
		out = append(out, &u)
	}
	return out, dbErr("list agent updates", rows.Err())
}
