package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
)

// RecordDB is the PostgreSQL Record Store.
type RecordDB struct {
	conn *sql.DB
	now  func() time.Time
}

var _ repository.RecordRepository = (*RecordDB)(nil)

func (s *RecordDB) Create(ctx context.Context, r *model.GlucoseRecord) error {
	r.ID = xid.New().String()
	r.CreatedAt = s.now().UnixMilli()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO glucose_records (id, user_id, value, date, time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.Value, r.Date, r.Time, r.CreatedAt,
	)
	if err != nil {
		return apperror.Storage("inserting glucose record", err)
	}
	return nil
}

// List returns ownerID's records, newest measurement first. The inclusive
// date range applies only when both bounds are set.
func (s *RecordDB) List(ctx context.Context, ownerID string, f repository.RecordFilter) ([]model.GlucoseRecord, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, value, date, time, created_at
		 FROM glucose_records
		 WHERE user_id = $1`)
	args := []any{ownerID}

	if f.Ranged() {
		args = append(args, f.StartDate, f.EndDate)
		sb.WriteString(` AND date >= $` + strconv.Itoa(len(args)-1) + ` AND date <= $` + strconv.Itoa(len(args)))
	}
	sb.WriteString(` ORDER BY date DESC, time DESC, created_at DESC, id DESC`)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperror.Storage("listing glucose records", err)
	}
	defer rows.Close()

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
