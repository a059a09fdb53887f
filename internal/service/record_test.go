package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/metrics"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
	"github.com/sakif/glicoflow/internal/stats"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeRecordRepo is an in-memory repository.RecordRepository that filters
// and orders the way the SQL stores do.
type fakeRecordRepo struct {
	mu      sync.Mutex
	records []model.GlucoseRecord
	nextID  int

	createErr error
	listErr   error
}

func (f *fakeRecordRepo) Create(ctx context.Context, r *model.GlucoseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	r.ID = time.Unix(int64(f.nextID), 0).UTC().Format("20060102150405")
	r.CreatedAt = int64(f.nextID)
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeRecordRepo) List(ctx context.Context, ownerID string, flt repository.RecordFilter) ([]model.GlucoseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.GlucoseRecord, 0)
	for _, r := range f.records {
		if r.UserID != ownerID {
			continue
		}
		if flt.StartDate != "" && r.Date < flt.StartDate {
			continue
		}
		if flt.EndDate != "" && r.Date > flt.EndDate {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		return a.CreatedAt > b.CreatedAt
	})
	return out, nil
}

func newTestRecordService(repo *fakeRecordRepo) *RecordService {
	return NewRecordService(repo, metrics.New(), testLogger())
}

// =========================================================================
// Create
// =========================================================================

func TestCreateRecord_Success(t *testing.T) {
	repo := &fakeRecordRepo{}
	svc := newTestRecordService(repo)

	r, err := svc.Create(context.Background(), "user-1", 120, "2024-01-05", "08:00")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.ID == "" || r.CreatedAt == 0 {
		t.Errorf("Create() did not fill ID/CreatedAt: %+v", r)
	}
	if r.UserID != "user-1" || r.Value != 120 || r.Date != "2024-01-05" || r.Time != "08:00" {
		t.Errorf("Create() = %+v", r)
	}
}

func TestCreateRecord_Validation(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		date      string
		clock     string
		wantField string
	}{
		{"zero value", 0, "2024-01-05", "08:00", "value"},
		{"negative value", -5, "2024-01-05", "08:00", "value"},
		{"above max", MaxGlucoseValue + 1, "2024-01-05", "08:00", "value"},
		{"empty date", 100, "", "08:00", "date"},
		{"unpadded date", 100, "2024-1-5", "08:00", "date"},
		{"impossible date", 100, "2024-02-30", "08:00", "date"},
		{"slash date", 100, "2024/01/05", "08:00", "date"},
		{"empty time", 100, "2024-01-05", "", "time"},
		{"unpadded time", 100, "2024-01-05", "8:00", "time"},
		{"seconds", 100, "2024-01-05", "08:00:00", "time"},
		{"hour 24", 100, "2024-01-05", "24:00", "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRecordRepo{}
			svc := newTestRecordService(repo)

			_, err := svc.Create(context.Background(), "user-1", tt.value, tt.date, tt.clock)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			if len(repo.records) != 0 {
				t.Error("invalid record must not be stored")
			}
		})
	}
}

func TestCreateRecord_BoundsAccepted(t *testing.T) {
	svc := newTestRecordService(&fakeRecordRepo{})

	for _, v := range []int{MinGlucoseValue, MaxGlucoseValue} {
		if _, err := svc.Create(context.Background(), "user-1", v, "2024-01-05", "23:59"); err != nil {
			t.Errorf("Create(value=%d) error = %v", v, err)
		}
	}
}

func TestCreateRecord_NoOwner(t *testing.T) {
	svc := newTestRecordService(&fakeRecordRepo{})

	if _, err := svc.Create(context.Background(), "", 100, "2024-01-05", "08:00"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestCreateRecord_StorageError(t *testing.T) {
	repo := &fakeRecordRepo{createErr: apperror.Storage("inserting", errors.New("disk full"))}
	svc := newTestRecordService(repo)

	if _, err := svc.Create(context.Background(), "user-1", 100, "2024-01-05", "08:00"); !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
}

// =========================================================================
// List
// =========================================================================

func TestListRecords_OnlyOwnerAndOrdered(t *testing.T) {
	repo := &fakeRecordRepo{}
	svc := newTestRecordService(repo)
	ctx := context.Background()

	svc.Create(ctx, "alice", 100, "2024-01-01", "08:00")
	svc.Create(ctx, "bob", 300, "2024-01-02", "08:00")
	svc.Create(ctx, "alice", 140, "2024-01-02", "07:00")
	svc.Create(ctx, "alice", 90, "2024-01-01", "22:00")

	got, err := svc.List(ctx, "alice", repository.RecordFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []int{140, 90, 100}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d records, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.UserID != "alice" {
			t.Fatalf("List(alice) returned a record owned by %s", r.UserID)
		}
		if r.Value != want[i] {
			t.Errorf("List()[%d].Value = %d, want %d", i, r.Value, want[i])
		}
	}
}

func TestListRecords_FilterValidation(t *testing.T) {
	svc := newTestRecordService(&fakeRecordRepo{})

	tests := []struct {
		name   string
		filter repository.RecordFilter
	}{
		{"bad start", repository.RecordFilter{StartDate: "01/01/2024"}},
		{"bad end", repository.RecordFilter{EndDate: "2024-13-01"}},
		{"inverted range", repository.RecordFilter{StartDate: "2024-02-01", EndDate: "2024-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.List(context.Background(), "alice", tt.filter); !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestListRecords_LoneBoundReturnsEverything(t *testing.T) {
	repo := &fakeRecordRepo{}
	svc := newTestRecordService(repo)
	ctx := context.Background()

	svc.Create(ctx, "bob", 100, "2024-01-03", "08:00")
	svc.Create(ctx, "bob", 120, "2024-01-01", "08:00")

	tests := []struct {
		name   string
		filter repository.RecordFilter
		want   int
	}{
		{"start only", repository.RecordFilter{StartDate: "2024-01-02"}, 2},
		{"end only", repository.RecordFilter{EndDate: "2024-01-02"}, 2},
		{"both", repository.RecordFilter{StartDate: "2024-01-02", EndDate: "2024-01-03"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(ctx, "bob", tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestListRecords_StorageErrorIsNotEmptySuccess(t *testing.T) {
	repo := &fakeRecordRepo{listErr: apperror.Storage("listing", errors.New("connection refused"))}
	svc := newTestRecordService(repo)

	got, err := svc.List(context.Background(), "alice", repository.RecordFilter{})
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
	if got != nil {
		t.Error("List() returned records alongside an error")
	}

	if _, err := svc.Stats(context.Background(), "alice", repository.RecordFilter{}); !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("Stats() error = %v, want ErrStorage", err)
	}
}

// =========================================================================
// Stats / History
// =========================================================================

func TestStats_SameDayAverage(t *testing.T) {
	svc := newTestRecordService(&fakeRecordRepo{})
	ctx := context.Background()

	svc.Create(ctx, "alice", 100, "2024-01-01", "08:00")
	svc.Create(ctx, "alice", 140, "2024-01-01", "12:00")

	got, err := svc.Stats(ctx, "alice", repository.RecordFilter{})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(got.Daily) != 1 || got.Daily[0] != (stats.DailyAverage{Date: "2024-01-01", Average: 120, Count: 2}) {
		t.Errorf("Daily = %+v", got.Daily)
	}
	if got.Last != 140 {
		t.Errorf("Last = %d, want 140", got.Last)
	}
	if len(got.Trend) != 2 || got.Trend[0].Value != 100 {
		t.Errorf("Trend = %+v", got.Trend)
	}
}

func TestHistory(t *testing.T) {
	svc := newTestRecordService(&fakeRecordRepo{})
	ctx := context.Background()

	svc.Create(ctx, "alice", 65, "2024-01-01", "08:00")
	svc.Create(ctx, "alice", 200, "2024-01-02", "08:00")

	h, err := svc.History(ctx, "alice", repository.RecordFilter{})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if h.Summary.Count != 2 {
		t.Errorf("Summary.Count = %d, want 2", h.Summary.Count)
	}
	days := h.Days
	if len(days) != 2 || days[0].Date != "2024-01-02" {
		t.Fatalf("History() = %+v", days)
	}
	if days[1].Readings[0].Status != stats.StatusLow {
		t.Errorf("status = %q, want low", days[1].Readings[0].Status)
	}
}

// =========================================================================
// END TO END (services + fakes)
// =========================================================================

// register → create one reading → list → dashboard numbers.
func TestScenario_AliceFirstReading(t *testing.T) {
	ctx := context.Background()
	authSvc := newTestAuthService(t, newFakeUserRepo())
	recordSvc := newTestRecordService(&fakeRecordRepo{})

	reg, err := authSvc.Register(ctx, "alice", "alice@x.com", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	id, err := authSvc.Authenticate(reg.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	created, err := recordSvc.Create(ctx, id.UserID, 120, "2024-01-05", "08:00")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := recordSvc.List(ctx, id.UserID, repository.RecordFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Value != 120 {
		t.Fatalf("List() = %+v, want one record with value 120", list)
	}
	if list[0].Date != created.Date || list[0].Time != created.Time || list[0].ID != created.ID {
		t.Errorf("round trip mismatch: created %+v, listed %+v", created, list[0])
	}

	st, err := recordSvc.Stats(ctx, id.UserID, repository.RecordFilter{})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Summary != (stats.Summary{Average: 120, Count: 1, Last: 120}) {
		t.Errorf("Summary = %+v, want {120 1 120}", st.Summary)
	}
}
