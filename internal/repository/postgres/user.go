package postgres

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

// UserDB is the PostgreSQL Credential Store.
type UserDB struct {
	conn *sql.DB
	now  func() time.Time
}

var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts user, filling in ID and CreatedAt. The users_username_key
// constraint settles races between concurrent registrations.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = u.now().UnixMilli()

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
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

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getOne(ctx, "id", id)
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getOne(ctx, "username", username)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getOne(ctx, "email", email)
}

// getOne selects a single user by column; column is a literal from this file.
func (u *UserDB) getOne(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User
	err := u.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE `+column+` = $1 LIMIT 1`,
		value,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, apperror.Storage("getting user by "+column, err)
	}
	return &user, nil
}
