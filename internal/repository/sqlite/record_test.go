package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/repository"
)

func createTestRecord(t *testing.T, db *DB, ownerID string, value int, date, clock string) *model.GlucoseRecord {
	t.Helper()
	r := &model.GlucoseRecord{UserID: ownerID, Value: value, Date: date, Time: clock}
	if err := db.Records().Create(context.Background(), r); err != nil {
		t.Fatalf("failed to create test record: %v", err)
	}
	return r
}

func values(records []model.GlucoseRecord) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Value
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =========================================================================
// CREATE
// =========================================================================

func TestRecordCreate_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	created := createTestRecord(t, db, alice.ID, 120, "2024-01-05", "08:00")
	if created.ID == "" || created.CreatedAt == 0 {
		t.Fatalf("Create() did not fill ID/CreatedAt: %+v", created)
	}

	got, err := db.Records().List(context.Background(), alice.ID, repository.RecordFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(got))
	}
	if got[0] != *created {
		t.Errorf("List()[0] = %+v, want %+v", got[0], *created)
	}
}

func TestRecordCreate_UnknownOwner(t *testing.T) {
	db := newTestDB(t)

	r := &model.GlucoseRecord{UserID: "ghost", Value: 100, Date: "2024-01-01", Time: "08:00"}
	if err := db.Records().Create(context.Background(), r); !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("Create() with unknown owner error = %v, want ErrStorage (foreign key)", err)
	}
}

func TestRecordCreate_DuplicatesAreKept(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	a := createTestRecord(t, db, alice.ID, 100, "2024-01-01", "08:00")
	b := createTestRecord(t, db, alice.ID, 100, "2024-01-01", "08:00")
	if a.ID == b.ID {
		t.Fatal("identical inserts must still get distinct ids")
	}

	got, _ := db.Records().List(context.Background(), alice.ID, repository.RecordFilter{})
	if len(got) != 2 {
		t.Errorf("List() returned %d records, want 2", len(got))
	}
}

// =========================================================================
// LIST
// =========================================================================

func TestRecordList_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	got, err := db.Records().List(context.Background(), alice.ID, repository.RecordFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", got)
	}
}

func TestRecordList_Ordering(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	// Inserted out of order on purpose.
	createTestRecord(t, db, alice.ID, 1, "2024-01-01", "08:00")
	createTestRecord(t, db, alice.ID, 2, "2024-01-03", "07:30")
	createTestRecord(t, db, alice.ID, 3, "2024-01-01", "21:15")
	createTestRecord(t, db, alice.ID, 4, "2024-01-03", "19:00")
	createTestRecord(t, db, alice.ID, 5, "2023-12-31", "23:59")

	got, err := db.Records().List(context.Background(), alice.ID, repository.RecordFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []int{4, 2, 3, 1, 5}
	if !equalInts(values(got), want) {
		t.Errorf("List() order = %v, want %v", values(got), want)
	}
}

func TestRecordList_SameMomentNewestInsertFirst(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	base := time.UnixMilli(1_700_000_000_000)
	tick := 0
	db.records.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	createTestRecord(t, db, alice.ID, 10, "2024-01-01", "08:00")
	createTestRecord(t, db, alice.ID, 20, "2024-01-01", "08:00")

	got, _ := db.Records().List(context.Background(), alice.ID, repository.RecordFilter{})
	if want := []int{20, 10}; !equalInts(values(got), want) {
		t.Errorf("List() order = %v, want %v", values(got), want)
	}
}

func TestRecordList_DateFilter(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	createTestRecord(t, db, alice.ID, 1, "2024-01-01", "08:00")
	createTestRecord(t, db, alice.ID, 2, "2024-01-02", "08:00")
	createTestRecord(t, db, alice.ID, 3, "2024-01-03", "08:00")
	createTestRecord(t, db, alice.ID, 4, "2024-01-04", "08:00")

	tests := []struct {
		name   string
		filter repository.RecordFilter
		want   []int
	}{
		{"no bounds", repository.RecordFilter{}, []int{4, 3, 2, 1}},
		{"inclusive both ends", repository.RecordFilter{StartDate: "2024-01-02", EndDate: "2024-01-03"}, []int{3, 2}},
		{"single day", repository.RecordFilter{StartDate: "2024-01-04", EndDate: "2024-01-04"}, []int{4}},
		{"start only is ignored", repository.RecordFilter{StartDate: "2024-01-03"}, []int{4, 3, 2, 1}},
		{"end only is ignored", repository.RecordFilter{EndDate: "2024-01-01"}, []int{4, 3, 2, 1}},
		{"empty range", repository.RecordFilter{StartDate: "2025-01-01", EndDate: "2025-12-31"}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Records().List(context.Background(), alice.ID, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if !equalInts(values(got), tt.want) {
				t.Errorf("List() = %v, want %v", values(got), tt.want)
			}
		})
	}
}

// Two users writing at the same time must never see each other's rows.
func TestRecordList_TenantIsolationUnderInterleavedWrites(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	const perUser = 25
	var wg sync.WaitGroup
	errs := make(chan error, 2*perUser)

	for _, owner := range []*model.User{alice, bob} {
		wg.Add(1)
		go func(ownerID string) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				r := &model.GlucoseRecord{
					UserID: ownerID,
					Value:  100 + i,
					Date:   fmt.Sprintf("2024-02-%02d", i%28+1),
					Time:   "12:00",
				}
				if err := db.Records().Create(context.Background(), r); err != nil {
					errs <- err
				}
			}
		}(owner.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Create() error = %v", err)
	}

	for _, owner := range []*model.User{alice, bob} {
		got, err := db.Records().List(context.Background(), owner.ID, repository.RecordFilter{})
		if err != nil {
			t.Fatalf("List(%s) error = %v", owner.Username, err)
		}
		if len(got) != perUser {
			t.Errorf("List(%s) returned %d records, want %d", owner.Username, len(got), perUser)
		}
		for _, r := range got {
			if r.UserID != owner.ID {
				t.Fatalf("List(%s) leaked a record owned by %s", owner.Username, r.UserID)
			}
		}
	}
}

func TestRecordList_ClosedDatabaseIsStorageError(t *testing.T) {
	db := newTestDB(t)
	db.Close()

	got, err := db.Records().List(context.Background(), "anyone", repository.RecordFilter{})
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("List() error = %v, want ErrStorage", err)
	}
	if got != nil {
		t.Error("a failed List() must not also return records")
	}
}
