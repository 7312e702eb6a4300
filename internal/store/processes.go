package store

import (
	"database/sql"
)

// OpenRuntimeProcess records a freshly spawned runtime. The session's
// previous current process (if any) loses its flag and the session row
// picks up the new pid, so at most one row per session is current.
func (s *Store) OpenRuntimeProcess(proc *RuntimeProcess) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr("open runtime process", err)
	}
	now := nowMillis()
	_, err = tx.Exec(
		`UPDATE runtime_processes SET is_current = 0 WHERE klaude_session_id = ? AND is_current = 1`,
		proc.SessionID,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("open runtime process", err)
	}
	res, err := tx.Exec(
		`INSERT INTO runtime_processes (klaude_session_id, pid, kind, started_at, is_current)
		 VALUES (?, ?, ?, ?, 1)`,
		proc.SessionID, proc.Pid, proc.Kind, now,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("open runtime process", err)
	}
	proc.ID, _ = res.LastInsertId()
	proc.StartedAt = fromMillis(now)
	proc.IsCurrent = true
	_, err = tx.Exec(
		`UPDATE sessions SET current_process_pid = ?, updated_at = ? WHERE id = ?`,
		proc.Pid, now, proc.SessionID,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("open runtime process", err)
	}
	return dbErr("open runtime process", tx.Commit())
}

// CloseRuntimeProcess marks a runtime row exited. The session's cached
// pid is cleared only when it still points at this process.
func (s *Store) CloseRuntimeProcess(id int64, exitCode *int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr("close runtime process", err)
	}
	now := nowMillis()
	_, err = tx.Exec(
		`UPDATE runtime_processes SET exited_at = COALESCE(exited_at, ?), exit_code = COALESCE(exit_code, ?), is_current = 0
		 WHERE id = ?`,
		now, nullIntPtr(exitCode), id,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("close runtime process", err)
	}
	_, err = tx.Exec(
		`UPDATE sessions SET current_process_pid = NULL, updated_at = ?
		 WHERE id = (SELECT klaude_session_id FROM runtime_processes WHERE id = ?)
		   AND current_process_pid = (SELECT pid FROM runtime_processes WHERE id = ?)`,
		now, id, id,
	)
	if err != nil {
		_ = tx.Rollback()
		return dbErr("close runtime process", err)
	}
	return dbErr("close runtime process", tx.Commit())
}

// GetCurrentRuntimeProcess returns the session's live runtime row, or
// ErrNotFound when no runtime is attached.
func (s *Store) GetCurrentRuntimeProcess(klaudeSessionID string) (*RuntimeProcess, error) {
	row := s.db.QueryRow(
		`SELECT id, klaude_session_id, pid, kind, started_at, exited_at, exit_code, is_current
		 FROM runtime_processes
		 WHERE klaude_session_id = ? AND is_current = 1
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		klaudeSessionID,
	)
	return scanRuntimeProcess(row)
}

// ListRuntimeProcesses returns every runtime ever attached to the
// session, oldest first.
func (s *Store) ListRuntimeProcesses(klaudeSessionID string) ([]*RuntimeProcess, error) {
	rows, err := s.db.Query(
		`SELECT id, klaude_session_id, pid, kind, started_at, exited_at, exit_code, is_current
		 FROM runtime_processes WHERE klaude_session_id = ? ORDER BY started_at, id`,
		klaudeSessionID,
	)
	if err != nil {
		return nil, dbErr("list runtime processes", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*RuntimeProcess
	for rows.Next() {
		proc, err := scanRuntimeProcess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, proc)
	}
	return out, dbErr("list runtime processes", rows.Err())
}

func scanRuntimeProcess(row rowScanner) (*RuntimeProcess, error) {
	var proc RuntimeProcess
	var started int64
	var exited, exitCode sql.NullInt64
	var current int
	err := row.Scan(&proc.ID, &proc.SessionID, &proc.Pid, &proc.Kind, &started, &exited, &exitCode, &current)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr("scan runtime process", err)
	}
	proc.StartedAt = fromMillis(started)
	if exited.Valid {
		t := fromMillis(exited.Int64)
		proc.ExitedAt = &t
	}
	if exitCode.Valid {
		c := int(exitCode.Int64)
		proc.ExitCode = &c
	}
	proc.IsCurrent = current != 0
	return &proc, nil
}
