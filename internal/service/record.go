package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/metrics"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
	"github.com/sakif/glicoflow/internal/stats"
)

// Accepted glucose range in mg/dL. Meters read roughly 20..600; the bounds
// only keep out typos and garbage.
const (
	MinGlucoseValue = 1
	MaxGlucoseValue = 1000
)

// TrendPoints is how many readings the dashboard chart shows.
const TrendPoints = 10

// RecordService creates and lists glucose records for their owner.
// Every method takes the owner's id from the authenticated identity, and
// every store call is scoped to it.
type RecordService struct {
	repo    repository.RecordRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRecordService creates a RecordService. m may be nil.
func NewRecordService(repo repository.RecordRepository, m *metrics.Metrics, logger *slog.Logger) *RecordService {
	return &RecordService{repo: repo, metrics: m, logger: logger}
}

// Create validates and stores one reading.
//
// If the caller goes away after the insert commits, the row stays. A client
// that retries on timeout can therefore store the same reading twice; the
// store does not deduplicate.
func (s *RecordService) Create(ctx context.Context, ownerID string, value int, date, clock string) (*model.GlucoseRecord, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized()
	}
	if value < MinGlucoseValue || value > MaxGlucoseValue {
		return nil, apperror.ValidationFailed("value",
			fmt.Sprintf("value must be between %d and %d mg/dL", MinGlucoseValue, MaxGlucoseValue))
	}
	if !ValidDate(date) {
		return nil, apperror.ValidationFailed("date", "date must be YYYY-MM-DD")
	}
	if !ValidTime(clock) {
		return nil, apperror.ValidationFailed("time", "time must be HH:mm (24-hour)")
	}

	r := &model.GlucoseRecord{
		UserID: ownerID,
		Value:  value,
		Date:   date,
		Time:   clock,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("service/record: creating record: %w", err)
	}

	s.metrics.RecordCreated()
	s.logger.Debug("record created",
		slog.String("recordID", r.ID),
		slog.String("userID", ownerID),
	)
	return r, nil
}

// List returns the owner's records, newest measurement first, restricted to
// an inclusive date range when both bounds are given. A lone bound is
// format-checked and otherwise ignored.
func (s *RecordService) List(ctx context.Context, ownerID string, f repository.RecordFilter) ([]model.GlucoseRecord, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized()
	}
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	if !f.Ranged() {
		f = repository.RecordFilter{}
	}

	records, err := s.repo.List(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("service/record: listing records: %w", err)
	}
	return records, nil
}

// RecordStats is the dashboard payload.
type RecordStats struct {
	stats.Summary
	Daily []stats.DailyAverage `json:"daily"`
	Trend []stats.Point        `json:"trend"`
}

// Stats lists the owner's records and derives the dashboard numbers.
// A storage failure is an error, never an all-zero result.
func (s *RecordService) Stats(ctx context.Context, ownerID string, f repository.RecordFilter) (*RecordStats, error) {
	records, err := s.List(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	return &RecordStats{
		Summary: stats.Summarize(records),
		Daily:   stats.DailyAverages(records),
		Trend:   stats.Trend(records, TrendPoints),
	}, nil
}

// RecordHistory is the print view payload: the dashboard summary plus
// every reading grouped by day.
type RecordHistory struct {
	Summary stats.Summary `json:"summary"`
	Days    []stats.Day   `json:"days"`
}

// History lists the owner's records grouped by day for the print view.
func (s *RecordService) History(ctx context.Context, ownerID string, f repository.RecordFilter) (*RecordHistory, error) {
	records, err := s.List(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	return &RecordHistory{
		Summary: stats.Summarize(records),
		Days:    stats.GroupByDay(records),
	}, nil
}

// ValidDate reports whether s is a real calendar date written YYYY-MM-DD.
// time.Parse alone would also accept some shorter forms, hence the length
// check.
func ValidDate(s string) bool {
	if len(s) != len(model.DateLayout) {
		return false
	}
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

// ValidTime reports whether s is a 24-hour HH:mm clock time.
func ValidTime(s string) bool {
	if len(s) != len(model.TimeLayout) {
		return false
	}
	_, err := time.Parse(model.TimeLayout, s)
	return err == nil
}

func validateFilter(f repository.RecordFilter) error {
	if f.StartDate != "" && !ValidDate(f.StartDate) {
		return apperror.ValidationFailed("startDate", "startDate must be YYYY-MM-DD")
	}
	if f.EndDate != "" && !ValidDate(f.EndDate) {
		return apperror.ValidationFailed("endDate", "endDate must be YYYY-MM-DD")
	}
	if f.Ranged() && f.StartDate > f.EndDate {
		return apperror.ValidationFailed("startDate", "startDate must not be after endDate")
	}
	return nil
}
