package store

import (
	"database/sql"
)

// ActivateLink records that a klaude session is now bound to an
// underlying conversation id. Any other open link for the session is
// closed first, then the link is inserted or reactivated, and the
// session's cached last_claude_session_id is refreshed. All in one
// transaction so readers never observe two active links.
func (s *Store) ActivateLink(link *ClaudeSessionLink) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr("activate link", err)
	}
	now := nowMillis()
	_, err = tx.Exec(
		`UPDATE claude_session_links SET ended_at = ?
		 WHERE klaude_session_id = ? AND claude_session_id <> ? AND ended_at IS NULL`,
		now, link.SessionID, link.ClaudeSessionID,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("activate link", err)
	}
	res, err := tx.Exec(
		`UPDATE claude_session_links SET klaude_session_id = ?, ended_at = NULL,
			transcript_path = COALESCE(NULLIF(?, ''), transcript_path),
			source = ?
		 WHERE claude_session_id = ?`,
		link.SessionID, link.TranscriptPath, link.Source, link.ClaudeSessionID,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("activate link", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = tx.Exec(
			`INSERT INTO claude_session_links (klaude_session_id, claude_session_id, transcript_path, source, started_at)
			 VALUES (?, ?, ?, ?, ?)`,
			link.SessionID, link.ClaudeSessionID, nullStr(link.TranscriptPath), link.Source, now,
		)
		if err != nil {
			_ = tx.Rollback()
			return dbErr("activate link", err)
		}
	}
	_, err = tx.Exec(
		`UPDATE sessions SET last_claude_session_id = ?,
			last_transcript_path = COALESCE(NULLIF(?, ''), last_transcript_path),
			updated_at = ?
		 WHERE id = ?`,
		link.ClaudeSessionID, link.TranscriptPath, now, link.SessionID,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("activate link", err)
	}
	return dbErr("activate link", tx.Commit())
}

// EndActiveLinks closes every open link of a session.
func (s *Store) EndActiveLinks(klaudeSessionID string) error {
	_, err := s.db.Exec(
		`UPDATE claude_session_links SET ended_at = ? WHERE klaude_session_id = ? AND ended_at IS NULL`,
		nowMillis(), klaudeSessionID,
	)
	return dbErr("end links", err)
}

// EndLinkByClaudeID closes the link for one underlying conversation id,
// if it is open.
func (s *Store) EndLinkByClaudeID(claudeSessionID string) error {
	_, err := s.db.Exec(
		`UPDATE claude_session_links SET ended_at = ? WHERE claude_session_id = ? AND ended_at IS NULL`,
		nowMillis(), claudeSessionID,
	)
	return dbErr("end link", err)
}

const linkColumns = `id, klaude_session_id, claude_session_id, transcript_path, source, started_at, ended_at`

// GetActiveLink returns the session's open link, or ErrNotFound.
func (s *Store) GetActiveLink(klaudeSessionID string) (*ClaudeSessionLink, error) {
	row := s.db.QueryRow(
		`SELECT `+linkColumns+` FROM claude_session_links
		 WHERE klaude_session_id = ? AND ended_at IS NULL
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		klaudeSessionID,
	)
	return scanLink(row)
}

// GetLatestLink returns the most recently started link regardless of
// whether it is still open.
func (s *Store) GetLatestLink(klaudeSessionID string) (*ClaudeSessionLink, error) {
	row := s.db.QueryRow(
		`SELECT `+linkColumns+` FROM claude_session_links
		 WHERE klaude_session_id = ?
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		klaudeSessionID,
	)
	return scanLink(row)
}

// ListLinks returns the session's links oldest first.
func (s *Store) ListLinks(klaudeSessionID string) ([]*ClaudeSessionLink, error) {
	rows, err := s.db.Query(
		`SELECT `+linkColumns+` FROM claude_session_links WHERE klaude_session_id = ? ORDER BY started_at, id`,
		klaudeSessionID,
	)
	if err != nil {
		return nil, dbErr("list links", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ClaudeSessionLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, dbErr("list links", rows.Err())
}

func scanLink(row rowScanner) (*ClaudeSessionLink, error) {
	var link ClaudeSessionLink
	var transcript sql.NullString
	var started int64
	var ended sql.NullInt64
	err := row.Scan(&link.ID, &link.SessionID, &link.ClaudeSessionID, &transcript, &link.Source, &started, &ended)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr("scan link", err)
	}
	link.TranscriptPath = transcript.String
	link.StartedAt = fromMillis(started)
	if ended.Valid {
		t := fromMillis(ended.Int64)
		link.EndedAt = &t
	}
	return &link, nil
}
