package store

import (
	"database/sql"

	"github.com/zjrosen/klaude/internal/paths"
)

// EnsureProject returns the project row for rootPath, creating it on
// first use. Projects are never deleted.
func (s *Store) EnsureProject(rootPath string) (*Project, error) {
	hash := paths.ProjectHash(rootPath)
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO projects (root_path, project_hash, created_at) VALUES (?, ?, ?)`,
		rootPath, hash, nowMillis(),
	)
	if err != nil {
		return nil, dbErr("ensure project", err)
	}
	return s.GetProjectByHash(hash)
}

// GetProject looks a project up by row id.
func (s *Store) GetProject(id int64) (*Project, error) {
	return s.scanProject(s.db.QueryRow(
		`SELECT id, root_path, project_hash, created_at FROM projects WHERE id = ?`, id))
}

// GetProjectByHash looks a project up by its 24-char path hash.
func (s *Store) GetProjectByHash(hash string) (*Project, error) {
	return s.scanProject(s.db.QueryRow(
		`SELECT id, root_path, project_hash, created_at FROM projects WHERE project_hash = ?`, hash))
}

func (s *Store) scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var created int64
	err := row.Scan(&p.ID, &p.RootPath, &p.ProjectHash, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr("scan project", err)
	}
	p.CreatedAt = fromMillis(created)
	return &p, nil
}
