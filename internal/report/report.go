// Package report renders a user's glucose history as a printable HTML page.
//
// The page is a single self-contained template (no external CSS or JS) so
// the browser's "Print" or "Save as PDF" gives a clean copy for a doctor.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sakif/glicoflow/internal/service"
	"github.com/sakif/glicoflow/internal/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

// Data is what the template sees.
type Data struct {
	Username    string
	StartDate   string
	EndDate     string
	GeneratedAt string
	Summary     stats.Summary
	Days        []stats.Day
}

// Renderer holds the parsed template; it is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded template once.
func New() (*Renderer, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"level": level,
	}).ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("report: parsing template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Build assembles the template data from a history and the filter it was
// listed with.
func Build(username, startDate, endDate string, h *service.RecordHistory, now time.Time) Data {
	d := Data{
		Username:    username,
		StartDate:   startDate,
		EndDate:     endDate,
		GeneratedAt: now.Format("2006-01-02 15:04"),
	}
	if h != nil {
		d.Summary = h.Summary
		d.Days = h.Days
	}
	return d
}

// Render writes the page to w.
func (r *Renderer) Render(w io.Writer, d Data) error {
	if err := r.tmpl.ExecuteTemplate(w, "report.html", d); err != nil {
		return fmt.Errorf("report: rendering: %w", err)
	}
	return nil
}

// level is the CSS class of a reading. Normal and elevated share "in-range".
func level(value int) string {
	switch stats.Classify(value) {
	case stats.StatusLow:
		return "low"
	case stats.StatusHigh:
		return "high"
	default:
		return "in-range"
	}
}
