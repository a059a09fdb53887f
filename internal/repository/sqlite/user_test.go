package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/model"
)

// newTestDB opens a fresh in-memory database that disappears when the test
// ends. Each test gets its own, so nothing leaks between them.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if that errors.
func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$not-a-real-hash",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// OPEN
// =========================================================================

func TestNew_FileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glicoflow.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	user := createTestUser(t, db, "alice")
	db.Close()

	// Reopening runs the migrations again; they must be idempotent.
	db, err = New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	got, err := db.Users().GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() after reopen error = %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

// =========================================================================
// CREATE
// =========================================================================

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: "hash",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Pointer receiver: the caller's struct is filled in.
	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt == 0 {
		t.Error("Create() did not set user.CreatedAt")
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	dup := &model.User{Username: "alice", Email: "other@x.com", PasswordHash: "h"}
	err := db.Users().Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrDuplicateUsername) {
		t.Fatalf("Create() error = %v, want ErrDuplicateUsername", err)
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "username" {
		t.Errorf("Field = %q, want username", appErr.Field)
	}
}

func TestUserCreate_UsernameIsCaseSensitive(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	other := &model.User{Username: "Alice", Email: "a2@x.com", PasswordHash: "h"}
	if err := db.Users().Create(context.Background(), other); err != nil {
		t.Fatalf("Create(Alice) error = %v, usernames differing in case are distinct", err)
	}
}

// =========================================================================
// LOOKUPS
// =========================================================================

func TestUserLookups(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "bob")
	ctx := context.Background()

	byID, err := db.Users().GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	byName, err := db.Users().GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	byEmail, err := db.Users().GetByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}

	for _, got := range []*model.User{byID, byName, byEmail} {
		if *got != *created {
			t.Errorf("lookup returned %+v, want %+v", *got, *created)
		}
	}
}

func TestUserLookups_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Users().GetByID(ctx, "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.Users().GetByUsername(ctx, "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrNotFound", err)
	}
	if _, err := db.Users().GetByEmail(ctx, "no@x.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUserLookups_ClosedDatabaseIsStorageError(t *testing.T) {
	db := newTestDB(t)
	db.Close()

	_, err := db.Users().GetByUsername(context.Background(), "alice")
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
	if errors.Is(err, apperror.ErrNotFound) {
		t.Error("a storage failure must not look like NotFound")
	}
}
