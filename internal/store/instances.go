package store

import "database/sql"

// CreateInstance registers a running wrapper process.
func (s *Store) CreateInstance(inst *Instance) error {
	if inst.InstanceID == "" {
		inst.InstanceID = NewID()
	}
	inst.StartedAt = fromMillis(nowMillis())
	_, err := s.db.Exec(
		`INSERT INTO instances (instance_id, project_id, pid, tty, started_at, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		inst.InstanceID, inst.ProjectID, inst.Pid, nullStr(inst.Tty),
		inst.StartedAt.UnixMilli(), nullStr(inst.MetadataJSON),
	)
	return dbErr("create instance", err)
}

// EndInstance marks the instance finished, keeping the first recorded end
// time if the call races a crash-recovery sweep.
func (s *Store) EndInstance(instanceID string, exitCode int) error {
	_, err := s.db.Exec(
		`UPDATE instances SET ended_at = COALESCE(ended_at, ?), exit_code = ? WHERE instance_id = ?`,
		nowMillis(), exitCode, instanceID,
	)
	return dbErr("end instance", err)
}

// GetInstance looks an instance up by id.
func (s *Store) GetInstance(instanceID string) (*Instance, error) {
	row := s.db.QueryRow(
		`SELECT instance_id, project_id, pid, tty, started_at, ended_at, exit_code, metadata_json
		 FROM instances WHERE instance_id = ?`, instanceID)
	return scanInstance(row)
}

// ListActiveInstances returns instances of a project with no recorded end.
// Rows whose process has died without cleanup are the caller's problem;
// pair with a liveness probe before trusting the pid.
func (s *Store) ListActiveInstances(projectID int64) ([]*Instance, error) {
	rows, err := s.db.Query(
		`SELECT instance_id, project_id, pid, tty, started_at, ended_at, exit_code, metadata_json
		 FROM instances WHERE project_id = ? AND ended_at IS NULL ORDER BY started_at`, projectID)
	if err != nil {
		return nil, dbErr("list instances", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, dbErr("list instances", rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*Instance, error) {
	var inst Instance
	var tty, metadata sql.NullString
	var started int64
	var ended, exitCode sql.NullInt64
	err := row.Scan(&inst.InstanceID, &inst.ProjectID, &inst.Pid, &tty, &started, &ended, &exitCode, &metadata)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr("scan instance", err)
	}
	inst.Tty = tty.String
	inst.MetadataJSON = metadata.String
	inst.StartedAt = fromMillis(started)
	if ended.Valid {
		t := fromMillis(ended.Int64)
		inst.EndedAt = &t
	}
	if exitCode.Valid {
		c := int(exitCode.Int64)
		inst.ExitCode = &c
	}
	return &inst, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
