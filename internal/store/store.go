// Package store persists the shared klaude state: projects, wrapper
// instances, the session tree, claude-session links, the runtime process
// ledger, the append-only event stream, and queued agent updates.
//
// The database is one SQLite file shared by every klaude process on the
// host. WAL mode lets CLI readers run concurrently with the wrapper's
// writes; writes serialize inside the engine.
package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/klaude/internal/log"
)

// Store wraps the shared SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies
// migrations. The parent directory is created with 0700. When an existing
// database is about to be migrated, a .bak copy is written first.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, dbErr("open", fmt.Errorf("creating data directory: %w", err))
	}

	if _, err := os.Stat(path); err == nil {
		if err := backupFile(path, path+".bak"); err != nil {
			log.Warn(log.CatDB, "pre-migration backup failed", "path", path, "error", err)
		}
	}

	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, dbErr("open", err)
	}
	// One connection per process: in-process writers serialize here
	// instead of tripping over SQLITE_BUSY between their own statements.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, dbErr("open", fmt.Errorf("database engine unavailable (delete %s to rebuild): %w", path, err))
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, dbErr("migrate", err)
	}

	return &Store{db: db, path: path}, nil
}

// OpenMemory opens a private in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, dbErr("open", err)
	}
	db.SetMaxOpenConns(1)
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, dbErr("migrate", err)
	}
	return &Store{db: db, path: ":memory:"}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying connection for tests and ad-hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

func backupFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: src is the store's own db path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:gosec // G304: derived from db path
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
