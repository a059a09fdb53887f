package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
)

// UserDB is the SQLite Credential Store.
type UserDB struct {
	conn *sql.DB
	now  func() time.Time
}

var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts u, filling in ID and CreatedAt.
//
// The UNIQUE constraint on users.username is the real duplicate check. The
// service looks the name up first for a friendly error, but two concurrent
// registrations can both pass that lookup; only one INSERT wins here.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = u.now().UnixMilli()

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		if col, ok := uniqueViolation(err); ok {
			return apperror.DuplicateUsername(col)
		}
		return apperror.Storage("inserting user", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound when no user has that id.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getOne(ctx, "id", id)
}

// GetByUsername is case-sensitive: SQLite's default BINARY collation
// compares bytes.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getOne(ctx, "username", username)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getOne(ctx, "email", email)
}

// getOne selects a single user by one column. column is always a literal
// from this file, never caller input.
func (u *UserDB) getOne(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User
	err := u.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE `+column+` = ? LIMIT 1`,
		value,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, apperror.Storage("getting user by "+column, err)
	}
	return &user, nil
}
