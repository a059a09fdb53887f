// Package postgres implements the repository interfaces on PostgreSQL,
// through pgx's database/sql driver.
//
// The schema is owned by goose migrations embedded in the binary, so a
// fresh database is brought up to date on start.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"

	"github.com/sakif/glicoflow/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

// uniqueViolationCode is SQLSTATE unique_violation.
const uniqueViolationCode = "23505"

// DB wraps the connection pool and hands out the two repositories.
type DB struct {
	conn    *sql.DB
	users   *UserDB
	records *RecordDB
}

var _ repository.Store = (*DB)(nil)

// New connects to dsn and applies pending migrations.
func New(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}

	return NewWithDB(conn), nil
}

// NewWithDB wraps an already-open, already-migrated pool. Tests hand it a
// sqlmock connection.
func NewWithDB(conn *sql.DB) *DB {
	now := func() time.Time { return time.Now() }
	return &DB{
		conn:    conn,
		users:   &UserDB{conn: conn, now: now},
		records: &RecordDB{conn: conn, now: now},
	}
}

func migrate(ctx context.Context, conn *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, conn, "migrations")
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

// uniqueViolation reports whether err is a unique_violation and, if so,
// which column it concerns, derived from the constraint name
// ("users_username_key" → "username").
func uniqueViolation(err error) (column string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return "", false
	}
	name := strings.TrimSuffix(pgErr.ConstraintName, "_key")
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[i+1:]
	}
	return name, true
}
