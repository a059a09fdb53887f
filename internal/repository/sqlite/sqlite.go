// Package sqlite implements the repository interfaces on an embedded
// SQLite database.
//
// modernc.org/sqlite is a pure-Go translation of SQLite, so the binary
// builds without cgo and the whole store is one file on disk (or
// ":memory:" in tests).
//
// database/sql recap:
//   - sql.DB   is a connection pool, not a connection
//   - sql.Rows must be closed
//   - sql.ErrNoRows is how QueryRow reports "nothing matched"
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/glicoflow/internal/repository"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps the connection pool and hands out the two repositories.
type DB struct {
	conn    *sql.DB
	users   *UserDB
	records *RecordDB
}

var _ repository.Store = (*DB)(nil)

// New opens (creating if needed) the database at path and migrates it.
//
// Pragmas go in the DSN rather than through Exec: foreign_keys and
// busy_timeout are per-connection settings, and the pool opens new
// connections whenever it likes.
func New(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == MemoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database,
	// so an in-memory store must never have more than one.
	if path == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	now := func() time.Time { return time.Now() }
	db.users = &UserDB{conn: conn, now: now}
	db.records = &RecordDB{conn: conn, now: now}
	return db, nil
}

// Users returns the Credential Store.
func (db *DB) Users() repository.UserRepository { return db.users }

// Records returns the Record Store.
func (db *DB) Records() repository.RecordRepository { return db.records }

// Ping reports whether the database answers. It backs /health.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it runs on every start.
//
// Only username carries a UNIQUE constraint. Email uniqueness is a policy
// switch checked by the auth service, so users.email is indexed, not unique.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS glucose_records (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			value      INTEGER NOT NULL,
			date       TEXT NOT NULL,
			time       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_glucose_records_user_date
			ON glucose_records(user_id, date, time);
	`)
	if err != nil {
		return fmt.Errorf("creating glucose_records table: %w", err)
	}

	return nil
}

// uniqueViolation reports whether err is a UNIQUE/PRIMARY KEY constraint
// failure and, if so, which column tripped it ("users.username" → "username").
func uniqueViolation(err error) (column string, ok bool) {
	var sqlErr *msqlite.Error
	if !errors.As(err, &sqlErr) {
		return "", false
	}

	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
	default:
		// Without extended result codes only the primary code is set.
		if sqlErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT || !strings.Contains(sqlErr.Error(), "UNIQUE") {
			return "", false
		}
	}

	// Message shape: "constraint failed: UNIQUE constraint failed: users.username (2067)"
	msg := sqlErr.Error()
	if i := strings.LastIndex(msg, "failed: "); i >= 0 {
		col := msg[i+len("failed: "):]
		if j := strings.IndexAny(col, " ,"); j >= 0 {
			col = col[:j]
		}
		if k := strings.IndexByte(col, '.'); k >= 0 {
			col = col[k+1:]
		}
		return col, true
	}
	return "", true
}
