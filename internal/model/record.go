package model

// Date and time layouts for GlucoseRecord.Date and GlucoseRecord.Time.
// Both are zero-padded, so lexicographic order equals chronological order
// and the stores can compare them as plain strings.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// GlucoseRecord is one blood-glucose measurement.
//
// Date and Time are what the user says the measurement was taken at;
// CreatedAt is when the row was inserted (ms since epoch). The two are
// independent: a reading can be back-filled days later.
//
// Records are immutable once stored.
type GlucoseRecord struct {
	ID        string `json:"id"        db:"id"`
	UserID    string `json:"userId"    db:"user_id"`
	Value     int    `json:"value"     db:"value"` // mg/dL
	Date      string `json:"date"      db:"date"`  // YYYY-MM-DD
	Time      string `json:"time"      db:"time"`  // HH:mm, 24-hour
	CreatedAt int64  `json:"createdAt" db:"created_at"`
}
