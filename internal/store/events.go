package store

import (
	"database/sql"
)

// InsertEvent appends one event row and returns its rowid.
func (s *Store) InsertEvent(ev *Event) (int64, error) {
	now := nowMillis()
	res, err := s.db.Exec(
		`INSERT INTO events (project_id, klaude_session_id, kind, payload_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ProjectID, nullStr(ev.SessionID), ev.Kind, ev.PayloadJSON, now,
	)
	if err != nil {
		return 0, dbErr("insert event", err)
	}
	ev.ID, _ = res.LastInsertId()
	ev.CreatedAt = fromMillis(now)
	return ev.ID, nil
}

// ListSessionEvents returns a session's events in insertion order,
// optionally capped to the most recent limit rows (limit <= 0 means all).
func (s *Store) ListSessionEvents(klaudeSessionID string, limit int) ([]*Event, error) {
	query := `SELECT id, project_id, klaude_session_id, kind, payload_json, created_at
		 FROM events WHERE klaude_session_id = ? ORDER BY id`
	args := []any{klaudeSessionID}
	if limit > 0 {
		query = `SELECT id, project_id, klaude_session_id, kind, payload_json, created_at FROM (
			SELECT id, project_id, klaude_session_id, kind, payload_json, created_at
			FROM events WHERE klaude_session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}
	return s.queryEvents(query, args...)
}

// ListProjectEvents returns a project's events in insertion order,
// capped like ListSessionEvents.
func (s *Store) ListProjectEvents(projectID int64, limit int) ([]*Event, error) {
	query := `SELECT id, project_id, klaude_session_id, kind, payload_json, created_at
		 FROM events WHERE project_id = ? ORDER BY id`
	args := []any{projectID}
	if limit > 0 {
		query = `SELECT id, project_id, klaude_session_id, kind, payload_json, created_at FROM (
			SELECT id, project_id, klaude_session_id, kind, payload_json, created_at
			FROM events WHERE project_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}
	return s.queryEvents(query, args...)
}

func (s *Store) queryEvents(query string, args ...any) ([]*Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, dbErr("list events", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Event
	for rows.Next() {
		var ev Event
		var projectID sql.NullInt64
		var sessionID, payload sql.NullString
		var created int64
		if err := rows.Scan(&ev.ID, &projectID, &sessionID, &ev.Kind, &payload, &created); err != nil {
			return nil, dbErr("scan event", err)
		}
		if projectID.Valid {
			id := projectID.Int64
			ev.ProjectID = &id
		}
		ev.SessionID = sessionID.String
		ev.PayloadJSON = payload.String
		ev.CreatedAt = fromMillis(created)
		out = append(out, &ev)
	}
	return out, dbErr("list events", rows.Err())
}
