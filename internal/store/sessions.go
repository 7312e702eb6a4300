package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// maxDepthWalk aborts the parent-chain walk; a chain this long can only
// mean the adjacency list has a cycle.
const maxDepthWalk = 100

// CreateSession inserts a new session row. ID is generated when empty and
// status defaults to active.
func (s *Store) CreateSession(sess *Session) error {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.Status == "" {
		sess.Status = StatusActive
	}
	sess.CreatedAt = fromMillis(nowMillis())
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, project_id, parent_id, agent_type, instance_id, title, prompt, status, created_at, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ProjectID, nullStr(sess.ParentID), sess.AgentType, nullStr(sess.InstanceID),
		nullStr(sess.Title), nullStr(sess.Prompt), string(sess.Status),
		sess.CreatedAt.UnixMilli(), nullStr(sess.MetadataJSON),
	)
	return dbErr("create session", err)
}

const sessionColumns = `id, project_id, parent_id, agent_type, instance_id, title, prompt, status,
	created_at, updated_at, ended_at, last_claude_session_id, last_transcript_path,
	current_process_pid, metadata_json`

// GetSession looks a session up by full id.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ResolveSessionID resolves a full id or an id suffix (as exported in
// KLAUDE_SESSION_ID_SHORT) to a unique session in the project. A full
// id belonging to another project does not match.
func (s *Store) ResolveSessionID(projectID int64, idOrSuffix string) (*Session, error) {
	if sess, err := s.GetSession(idOrSuffix); err == nil && sess.ProjectID == projectID {
		return sess, nil
	}
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM sessions WHERE project_id = ? AND id LIKE ? ORDER BY created_at DESC LIMIT 2`,
		projectID, "%"+strings.ToUpper(idOrSuffix))
	if err != nil {
		return nil, dbErr("resolve session", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("resolve session", err)
	}
	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("session id %q is ambiguous", idOrSuffix)
	}
}

// ListProjectSessions returns every session of the project, oldest first.
func (s *Store) ListProjectSessions(projectID int64) ([]*Session, error) {
	return s.querySessions(
		`SELECT `+sessionColumns+` FROM sessions WHERE project_id = ? ORDER BY created_at`, projectID)
}

// ListChildren returns the direct children of a session.
func (s *Store) ListChildren(parentID string) ([]*Session, error) {
	return s.querySessions(
		`SELECT `+sessionColumns+` FROM sessions WHERE parent_id = ? ORDER BY created_at`, parentID)
}

// ListInstanceSessions returns the sessions owned by one wrapper instance.
func (s *Store) ListInstanceSessions(instanceID string) ([]*Session, error) {
	return s.querySessions(
		`SELECT `+sessionColumns+` FROM sessions WHERE instance_id = ? ORDER BY created_at`, instanceID)
}

func (s *Store) querySessions(query string, args ...any) ([]*Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, dbErr("list sessions", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, dbErr("list sessions", rows.Err())
}

// UpdateSessionStatus transitions a session's status. Terminal statuses
// are absorbing: updates against an already-ended session are silently
// dropped so late child-exit callbacks cannot resurrect it.
func (s *Store) UpdateSessionStatus(id string, status SessionStatus) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET status = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN ('done','failed','interrupted','orphaned')`,
		string(status), nowMillis(), id,
	)
	return dbErr("update session status", err)
}

// MarkSessionEnded sets a terminal status and stamps ended_at, keeping an
// earlier end time if one was already recorded.
func (s *Store) MarkSessionEnded(id string, status SessionStatus) error {
	now := nowMillis()
	_, err := s.db.Exec(
		`UPDATE sessions SET status = ?, updated_at = ?, ended_at = COALESCE(ended_at, ?), current_process_pid = NULL
		 WHERE id = ? AND status NOT IN ('done','failed','interrupted','orphaned')`,
		string(status), now, now, id,
	)
	return dbErr("mark session ended", err)
}

// CascadeMarkSessionEnded ends a session and orphans its direct children
// in one transaction. The child sweep runs even when the parent row was
// already terminal.
func (s *Store) CascadeMarkSessionEnded(id string, status SessionStatus) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr("cascade end", err)
	}
	now := nowMillis()
	_, err = tx.Exec(
		`UPDATE sessions SET status = ?, updated_at = ?, ended_at = COALESCE(ended_at, ?), current_process_pid = NULL
		 WHERE id = ? AND status NOT IN ('done','failed','interrupted','orphaned')`,
		string(status), now, now, id,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("cascade end", err)
	}
	_, err = tx.Exec(
		`UPDATE sessions SET status = 'orphaned', updated_at = ?, ended_at = COALESCE(ended_at, ?), current_process_pid = NULL
		 WHERE parent_id = ? AND status NOT IN ('done','failed','interrupted','orphaned')`,
		now, now, id,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("cascade end", err)
	}
	return dbErr("cascade end", tx.Commit())
}

// SetSessionClaudeSession caches the most recent underlying conversation
// id and transcript path on the session row.
func (s *Store) SetSessionClaudeSession(id, claudeSessionID, transcriptPath string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET last_claude_session_id = ?,
			last_transcript_path = COALESCE(NULLIF(?, ''), last_transcript_path),
			updated_at = ?
		 WHERE id = ?`,
		claudeSessionID, transcriptPath, nowMillis(), id,
	)
	return dbErr("set claude session", err)
}

// SetSessionTitle updates the display title.
func (s *Store) SetSessionTitle(id, title string) error {
	_, err := s.db.Exec(`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`, title, nowMillis(), id)
	return dbErr("set session title", err)
}

// SetSessionMetadata replaces the metadata JSON blob.
func (s *Store) SetSessionMetadata(id, metadataJSON string) error {
	_, err := s.db.Exec(`UPDATE sessions SET metadata_json = ?, updated_at = ? WHERE id = ?`, metadataJSON, nowMillis(), id)
	return dbErr("set session metadata", err)
}

// CalculateSessionDepth walks the parent chain to a root and returns the
// number of edges. Roots have depth 0. Walks longer than 100 fail with
// ErrDepthCycle.
func (s *Store) CalculateSessionDepth(id string) (int, error) {
	depth := 0
	current := id
	for {
		var parent sql.NullString
		err := s.db.QueryRow(`SELECT parent_id FROM sessions WHERE id = ?`, current).Scan(&parent)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, dbErr("session depth", err)
		}
		if !parent.Valid || parent.String == "" {
			return depth, nil
		}
		depth++
		if depth > maxDepthWalk {
			return 0, ErrDepthCycle
		}
		current = parent.String
	}
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var parent, instance, title, prompt, lastClaude, lastTranscript, metadata sql.NullString
	var status string
	var created int64
	var updated, ended, pid sql.NullInt64
	err := row.Scan(&sess.ID, &sess.ProjectID, &parent, &sess.AgentType, &instance, &title, &prompt,
		&status, &created, &updated, &ended, &lastClaude, &lastTranscript, &pid, &metadata)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr("scan session", err)
	}
	sess.ParentID = parent.String
	sess.InstanceID = instance.String
	sess.Title = title.String
	sess.Prompt = prompt.String
	sess.Status = SessionStatus(status)
	sess.CreatedAt = fromMillis(created)
	if updated.Valid {
		t := fromMillis(updated.Int64)
		sess.UpdatedAt = &t
	}
	if ended.Valid {
		t := fromMillis(ended.Int64)
		sess.EndedAt = &t
	}
	sess.LastClaudeSessionID = lastClaude.String
	sess.LastTranscriptPath = lastTranscript.String
	if pid.Valid {
		p := int(pid.Int64)
		sess.CurrentProcessPid = &p
	}
	sess.MetadataJSON = metadata.String
	return &sess, nil
}
