// Package stats derives the numbers shown to the user from a list of
// glucose records: averages, the latest reading, per-day series, and a
// clinical status for a single value.
//
// Everything here is a pure function of its arguments. Nothing does I/O,
// holds state, or mutates the slice it is given.
package stats

import (
	"math"
	"sort"

	"github.com/sakif/glicoflow/internal/model"
)

// Status is the clinical band a reading falls into.
type Status string

const (
	StatusLow      Status = "low"      // < 70
	StatusNormal   Status = "normal"   // 70..130
	StatusElevated Status = "elevated" // 131..180
	StatusHigh     Status = "high"     // > 180
)

// Band edges in mg/dL. Fixed policy, not configuration.
const (
	lowBelow    = 70
	normalMax   = 130
	elevatedMax = 180
)

// Classify maps a value in mg/dL to its Status.
func Classify(value int) Status {
	switch {
	case value < lowBelow:
		return StatusLow
	case value <= normalMax:
		return StatusNormal
	case value <= elevatedMax:
		return StatusElevated
	default:
		return StatusHigh
	}
}

// Average is the arithmetic mean of the values, rounded half away from
// zero. An empty slice averages to 0.
func Average(records []model.GlucoseRecord) int {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.Value
	}
	return roundedMean(sum, len(records))
}

func roundedMean(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

// MostRecent returns the value of the latest measurement, or 0 for an
// empty slice.
//
// "Latest" is the greatest (Date, Time). Ties go to the greatest
// CreatedAt, then the greatest ID, so the answer does not depend on the
// order of the input.
func MostRecent(records []model.GlucoseRecord) int {
	if len(records) == 0 {
		return 0
	}
	best := records[0]
	for _, r := range records[1:] {
		if newer(r, best) {
			best = r
		}
	}
	return best.Value
}

// newer reports whether a sorts after b chronologically.
func newer(a, b model.GlucoseRecord) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	if a.Time != b.Time {
		return a.Time > b.Time
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID > b.ID
}

// DailyAverage is one point of the per-day series.
type DailyAverage struct {
	Date    string `json:"date"`
	Average int    `json:"avg"`
	Count   int    `json:"count"`
}

// DailyAverages groups records by Date and returns the rounded mean of each
// day, oldest day first.
func DailyAverages(records []model.GlucoseRecord) []DailyAverage {
	type acc struct{ sum, n int }
	byDate := make(map[string]*acc)
	for _, r := range records {
		a, ok := byDate[r.Date]
		if !ok {
			a = &acc{}
			byDate[r.Date] = a
		}
		a.sum += r.Value
		a.n++
	}

	out := make([]DailyAverage, 0, len(byDate))
	for date, a := range byDate {
		out = append(out, DailyAverage{Date: date, Average: roundedMean(a.sum, a.n), Count: a.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Summary is the dashboard header: overall average, number of readings,
// and the latest value.
type Summary struct {
	Average int `json:"avg"`
	Count   int `json:"count"`
	Last    int `json:"last"`
}

// Summarize computes the dashboard Summary.
func Summarize(records []model.GlucoseRecord) Summary {
	return Summary{
		Average: Average(records),
		Count:   len(records),
		Last:    MostRecent(records),
	}
}

// Point is one reading on the trend chart.
type Point struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Value  int    `json:"value"`
	Status Status `json:"status"`
}

// defaultTrend is the series length Trend uses when n <= 0.
const defaultTrend = 10

// Trend returns the n latest readings in chronological order (oldest
// first), the series the dashboard chart draws. n <= 0 means the default
// of 10.
func Trend(records []model.GlucoseRecord, n int) []Point {
	if n <= 0 {
		n = defaultTrend
	}
	sorted := sortedNewestFirst(records)
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]Point, len(sorted))
	for i, r := range sorted {
		out[len(sorted)-1-i] = Point{Date: r.Date, Time: r.Time, Value: r.Value, Status: Classify(r.Value)}
	}
	return out
}

// Day is one section of the history view.
type Day struct {
	Date     string  `json:"date"`
	Average  int     `json:"avg"`
	Readings []Point `json:"readings"`
}

// GroupByDay builds the history view: newest day first, and within a day
// readings in the order they were taken.
func GroupByDay(records []model.GlucoseRecord) []Day {
	sorted := sortedNewestFirst(records)

	var days []Day
	for _, r := range sorted {
		if len(days) == 0 || days[len(days)-1].Date != r.Date {
			days = append(days, Day{Date: r.Date})
		}
		d := &days[len(days)-1]
		d.Readings = append(d.Readings, Point{Date: r.Date, Time: r.Time, Value: r.Value, Status: Classify(r.Value)})
	}

	for i := range days {
		rs := days[i].Readings
		sum := 0
		for j := range rs {
			sum += rs[j].Value
		}
		days[i].Average = roundedMean(sum, len(rs))
		// Collected newest first; the view reads a day top to bottom.
		for l, r := 0, len(rs)-1; l < r; l, r = l+1, r-1 {
			rs[l], rs[r] = rs[r], rs[l]
		}
	}
	return days
}

// sortedNewestFirst returns a sorted copy; the input is left alone.
func sortedNewestFirst(records []model.GlucoseRecord) []model.GlucoseRecord {
	out := make([]model.GlucoseRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out
}
