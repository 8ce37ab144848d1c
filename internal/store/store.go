// Package store implements the passcode, session and validation-log store
// contracts on SQLite. modernc.org/sqlite is pure Go, so the binary stays
// cross-compilable and CGO-free. A single long-lived database/sql pool backs
// all operations; uniqueness is enforced by UNIQUE constraints and mapped to
// the engine's sentinel errors.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"passauth/internal/passcode"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query method works
// unchanged inside a transaction handed out by InTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the SQLite pool. The engine-facing contracts are implemented by
// the per-concern types below, which share a dbtx so they work both on the
// pool and inside a transaction; Store itself carries the admin read paths
// and implements passcode.TxRunner.
type Store struct {
	db *sql.DB
	q  dbtx
}

// Passcodes implements passcode.PasscodeStore.
type Passcodes struct {
	q dbtx
}

// Sessions implements passcode.SessionStore.
type Sessions struct {
	q dbtx
}

// Logs implements passcode.ValidationLog.
type Logs struct {
	q dbtx
}

var (
	_ passcode.PasscodeStore = (*Passcodes)(nil)
	_ passcode.SessionStore  = (*Sessions)(nil)
	_ passcode.ValidationLog = (*Logs)(nil)
	_ passcode.TxRunner      = (*Store)(nil)
)

// Open opens or creates the SQLite database at path and applies pending
// migrations. Use ":memory:" for tests. Foreign keys are enabled and a busy
// timeout absorbs writer contention between the server and the admin CLI.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each new connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

// Close releases the database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn with stores scoped to a single transaction, committing on nil
// and rolling back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(passcode.Stores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(storesOver(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Stores returns the engine's store bundle backed by this Store's pool.
func (s *Store) Stores() passcode.Stores {
	return storesOver(s.q)
}

func storesOver(q dbtx) passcode.Stores {
	return passcode.Stores{
		Passcodes: &Passcodes{q: q},
		Sessions:  &Sessions{q: q},
		Log:       &Logs{q: q},
	}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Timestamps are stored as RFC 3339 UTC strings; expiry dates as date-only
// strings. Both orders lexicographically, which the stats queries rely on.

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func scanNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanNullDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := passcode.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
