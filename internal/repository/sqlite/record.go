package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
)

// RecordDB is the SQLite Record Store.
type RecordDB struct {
	conn *sql.DB
	now  func() time.Time
}

var _ repository.RecordRepository = (*RecordDB)(nil)

// Create inserts r, filling in ID and CreatedAt. Records are never updated
// afterwards, so there is no Update.
func (s *RecordDB) Create(ctx context.Context, r *model.GlucoseRecord) error {
	r.ID = xid.New().String()
	r.CreatedAt = s.now().UnixMilli()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO glucose_records (id, user_id, value, date, time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.UserID,
		r.Value,
		r.Date,
		r.Time,
		r.CreatedAt,
	)
	if err != nil {
		return apperror.Storage("inserting glucose record", err)
	}
	return nil
}

// List returns ownerID's records, newest measurement first.
//
// The owner predicate is always present; the date range is appended only
// when both bounds are set. Both date and time are zero-padded text, so string comparison
// and ORDER BY give chronological order.
func (s *RecordDB) List(ctx context.Context, ownerID string, f repository.RecordFilter) ([]model.GlucoseRecord, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, value, date, time, created_at
		 FROM glucose_records
		 WHERE user_id = ?`)
	args := []any{ownerID}

	if f.Ranged() {
		sb.WriteString(` AND date >= ? AND date <= ?`)
		args = append(args, f.StartDate, f.EndDate)
	}
	sb.WriteString(` ORDER BY date DESC, time DESC, created_at DESC, id DESC`)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperror.Storage("listing glucose records", err)
	}
	defer rows.Close()

	// Non-nil so an empty result encodes as [] rather than null.
	records := make([]model.GlucoseRecord, 0)
	for rows.Next() {
		var r model.GlucoseRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Value, &r.Date, &r.Time, &r.CreatedAt); err != nil {
			return nil, apperror.Storage("scanning glucose record", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("iterating glucose records", err)
	}
	return records, nil
}
