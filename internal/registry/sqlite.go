package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// threadsSchema mirrors the flat-file record one column per field.
// id is the primary key, matching the one-live-record-per-id invariant.
const threadsSchema = `
CREATE TABLE IF NOT EXISTS threads (
	id            INTEGER PRIMARY KEY,
	branch        TEXT NOT NULL,
	backend_port  INTEGER NOT NULL,
	frontend_port INTEGER NOT NULL,
	worktree_path TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	status        TEXT NOT NULL
)`

// SQLiteStore is the embedded transactional registry backend. It honors the
// same durability contract as the file store: ReplaceAll is a single
// transaction, so a reader never observes a partial rewrite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the registry database at path,
// with WAL journaling and a busy timeout so concurrent short-lived processes
// queue instead of erroring.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping registry db %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.Exec(threadsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create threads table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns all live records ordered by id.
func (s *SQLiteStore) Load() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, branch, backend_port, frontend_port, worktree_path, created_at, status
		 FROM threads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Branch, &r.BackendPort, &r.FrontendPort,
			&r.WorktreePath, &createdAt, (*string)(&r.Status)); err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ReplaceAll rewrites the full table in one transaction.
func (s *SQLiteStore) ReplaceAll(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin registry rewrite: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec("DELETE FROM threads"); err != nil {
		return fmt.Errorf("clear threads: %w", err)
	}
	for _, r := range records {
		_, err := tx.Exec(
			`INSERT INTO threads (id, branch, backend_port, frontend_port, worktree_path, created_at, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Branch, r.BackendPort, r.FrontendPort,
			r.WorktreePath, r.CreatedAt.UTC().Format(time.RFC3339), string(r.Status))
		if err != nil {
			return fmt.Errorf("insert thread %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the record for id, or ErrNotFound.
func (s *SQLiteStore) Get(id int) (Record, error) {
	return getRecord(s, id)
}

var _ Store = (*SQLiteStore)(nil)
