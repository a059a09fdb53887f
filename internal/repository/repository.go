// Package repository defines the storage contracts the services depend on.
//
// Implementations live in sub-packages (sqlite, postgres). Every method
// that fails for an infrastructure reason returns an error matching
// apperror.ErrStorage, so callers can tell "nothing there" from
// "could not ask".
package repository

import (
	"context"

	"github.com/sakif/glicoflow/internal/model"
)

// UserRepository is the Credential Store.
type UserRepository interface {
	// Create assigns ID and CreatedAt and inserts u. A username (or, when
	// the store enforces it, email) that already exists yields
	// apperror.ErrDuplicateUsername.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// RecordFilter restricts a record listing to an inclusive date range.
// The range applies only when both bounds are set; a lone bound is ignored.
// Dates are YYYY-MM-DD strings, so the stores compare them lexicographically.
type RecordFilter struct {
	StartDate string
	EndDate   string
}

// Ranged reports whether f carries both bounds.
func (f RecordFilter) Ranged() bool {
	return f.StartDate != "" && f.EndDate != ""
}

// RecordRepository is the Record Store.
type RecordRepository interface {
	// Create assigns ID and CreatedAt and inserts r.
	Create(ctx context.Context, r *model.GlucoseRecord) error
	// List returns ownerID's records, newest measurement first:
	// date DESC, time DESC, created_at DESC, id DESC.
	List(ctx context.Context, ownerID string, f RecordFilter) ([]model.GlucoseRecord, error)
}

// Store bundles both repositories over one database handle.
type Store interface {
	Users() UserRepository
	Records() RecordRepository
	Ping(ctx context.Context) error
	Close() error
}
