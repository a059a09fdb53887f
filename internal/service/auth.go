// Package service holds the business rules, between the HTTP handlers and
// the stores:
//
//	handler (HTTP) → service (rules) → repository (SQL)
//	                        ↘ auth (tokens, bcrypt)
//
// Services take repository interfaces, never concrete stores, so tests run
// them against in-memory fakes and main can pick SQLite or Postgres.
// They know nothing about HTTP; failures come back as apperror values and
// the handler decides the status code.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/auth"
	"github.com/sakif/glicoflow/internal/metrics"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
)

// Registration limits.
const (
	MaxUsernameLength = 64
	MaxEmailLength    = 255
	MinPasswordLength = 6
	MaxPasswordBytes  = 72 // bcrypt input limit
)

// AuthOptions are the policy switches of the Auth Service.
type AuthOptions struct {
	// UniqueEmail rejects a registration whose email is already in use.
	UniqueEmail bool
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// AuthService registers and logs in users and authenticates requests.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	opts      AuthOptions
	logger    *slog.Logger
}

var _ auth.Authenticator = (*AuthService)(nil)

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		opts:      opts,
		logger:    logger,
	}
}

// AuthResult is what register and login hand back: the account, with its
// password hash cleared, and a fresh session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// CheckUsernameAvailable reports whether no account uses username yet.
// It writes nothing.
func (s *AuthService) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, apperror.ValidationFailed("username", "username is required")
	}

	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, apperror.ErrNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("service/auth: checking username: %w", err)
	}
}

// Register creates an account and signs the new user in.
//
//  1. validate the input
//  2. refuse a taken username (and a taken email when UniqueEmail is on)
//  3. bcrypt the password
//  4. insert; the store's UNIQUE constraint catches a concurrent duplicate
//  5. issue a session token
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	if err := s.ensureFree(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}

	s.opts.Metrics.Registered()
	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return &AuthResult{User: withoutHash(user), Token: token}, nil
}

// ensureFree looks for an existing account with the same username (and
// email, if configured) so the common case gets a clean error before any
// hashing work.
func (s *AuthService) ensureFree(ctx context.Context, username, email string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return apperror.DuplicateUsername("username")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/auth: looking up username: %w", err)
	}

	if !s.opts.UniqueEmail {
		return nil
	}
	_, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		return apperror.DuplicateUsername("email")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/auth: looking up email: %w", err)
	}
	return nil
}

// Login checks a username/password pair and issues a session token.
// An unknown username and a wrong password are different errors; the
// handler sends both as 401.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.opts.Metrics.Login("user_not_found")
			return nil, apperror.UserNotFound(username)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.opts.Metrics.Login("invalid_credentials")
			s.logger.Warn("login failed: wrong password", slog.String("username", username))
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}

	s.opts.Metrics.Login("success")
	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: withoutHash(user), Token: token}, nil
}

// Authenticate turns a bearer token into the identity it asserts.
// No token is apperror.ErrUnauthorized; a token that fails verification
// for any reason is apperror.ErrForbidden.
func (s *AuthService) Authenticate(token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, apperror.Unauthorized()
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("token rejected", slog.String("error", err.Error()))
		return model.Identity{}, apperror.Forbidden("invalid or expired token")
	}
	return id, nil
}

// CurrentUser loads the stored account behind an authenticated identity.
func (s *AuthService) CurrentUser(ctx context.Context, id model.Identity) (*model.User, error) {
	if id.UserID == "" {
		return nil, apperror.Unauthorized()
	}
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// A validly signed token for an account that is gone.
			return nil, apperror.Forbidden("account no longer exists")
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id.UserID, err)
	}
	return withoutHash(user), nil
}

func validateRegistration(username, email, password string) error {
	switch {
	case username == "":
		return apperror.ValidationFailed("username", "username is required")
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	case strings.ContainsAny(username, " \t\r\n"):
		return apperror.ValidationFailed("username", "username must not contain spaces")
	case email == "":
		return apperror.ValidationFailed("email", "email is required")
	case len(email) > MaxEmailLength || !strings.Contains(email, "@"):
		return apperror.ValidationFailed("email", "email is not valid")
	case password == "":
		return apperror.ValidationFailed("password", "password is required")
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
	}
	return nil
}

// withoutHash returns a copy of u that is safe to hand outward.
func withoutHash(u *model.User) *model.User {
	c := *u
	c.PasswordHash = ""
	return &c
}
