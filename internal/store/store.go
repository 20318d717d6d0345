// Package store is the sole writer of the triage engine's persistent
// state: an 8-table SQLite database (emails, suggestions, waiting_for,
// agent_state, sender_profiles, llm_request_log, action_log, task_sync).
// All other components read through its typed operations; nothing else
// opens the database file directly.
//
// Grounded on the teacher's internal/database/db.go: the same
// go:embed-backed migration, the same WAL/busy-timeout/foreign-keys DSN,
// and the same single-writer connection pool restriction. The explicit
// owner-only file permission restriction below is carried over from
// original_source/db/models.py's init_database, which the teacher does
// not do itself.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

//go:embed migrations/001_initial.sql
var initialMigration string

// Store wraps the SQL database connection.
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path, enabling WAL mode and
// restricting the file (and its -wal/-shm sidecars) to owner-only
// permissions.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &triageerr.StoreError{Op: "mkdir", Err: err}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "open", Err: err}
	}

	sqlDB.SetMaxOpenConns(1) // SQLite does not support concurrent writers
	sqlDB.SetMaxIdleConns(1)

	s := &Store{sqlDB}

	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, &triageerr.StoreError{Op: "migrate", Err: err}
	}

	if err := restrictPermissions(path); err != nil {
		sqlDB.Close()
		return nil, &triageerr.StoreError{Op: "chmod", Err: err}
	}

	return s, nil
}

// MustOpen opens the database or exits the process. Used by cmd/ entry
// points where a failed store open is always fatal.
func MustOpen(path string) *Store {
	s, err := Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return s
}

func (s *Store) migrate() error {
	var name string
	err := s.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='emails'`).Scan(&name)
	if err == nil {
		return nil // already migrated
	}
	if err != sql.ErrNoRows {
		return err
	}
	_, err = s.Exec(initialMigration)
	return err
}

// restrictPermissions chmods the DB file and its WAL/SHM sidecars to
// owner read/write only (0600), matching original_source's
// init_database, which the teacher's DSN-based WAL setup does not do.
func restrictPermissions(path string) error {
	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		sidecar := path + suffix
		if _, err := os.Stat(sidecar); err == nil {
			if err := os.Chmod(sidecar, 0600); err != nil {
				return err
			}
		}
	}
	return nil
}

// Transaction runs fn inside a transaction, committing on success and
// rolling back on error or panic.
func (s *Store) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return &triageerr.StoreError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return &triageerr.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.PingContext(ctx)
}

// NullString / NullFloat64 / StringPtr / Float64Ptr mirror the teacher's
// helpers for bridging nullable columns to pointer-typed struct fields.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func NullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func StringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func Float64Ptr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
