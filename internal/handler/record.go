package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/auth"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/report"
	"github.com/sakif/glicoflow/internal/repository"
	"github.com/sakif/glicoflow/internal/service"
)

// RecordService is what RecordHandler needs from service.RecordService.
type RecordService interface {
	Create(ctx context.Context, ownerID string, value int, date, clock string) (*model.GlucoseRecord, error)
	List(ctx context.Context, ownerID string, f repository.RecordFilter) ([]model.GlucoseRecord, error)
	Stats(ctx context.Context, ownerID string, f repository.RecordFilter) (*service.RecordStats, error)
	History(ctx context.Context, ownerID string, f repository.RecordFilter) (*service.RecordHistory, error)
}

// RecordHandler serves the /api/records routes. Every route must sit behind
// auth.RequireAuth; the owner always comes from the token, never the request.
type RecordHandler struct {
	service RecordService
	report  *report.Renderer
	logger  *slog.Logger
	now     func() time.Time
}

func NewRecordHandler(svc RecordService, renderer *report.Renderer, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		service: svc,
		report:  renderer,
		logger:  logger,
		now:     time.Now,
	}
}

// createRecordRequest uses a pointer for Value so a missing field is told
// apart from an explicit 0; both are rejected, with different messages.
type createRecordRequest struct {
	Value *int   `json:"value"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// HandleCreate handles POST /api/records.
func (h *RecordHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
		return
	}

	var req createRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Value == nil {
		writeError(w, h.logger, apperror.ValidationFailed("value", "value is required"))
		return
	}

	rec, err := h.service.Create(r.Context(), id.UserID, *req.Value, req.Date, req.Time)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleList handles GET /api/records?startDate=&endDate=.
// An owner with no records gets [] rather than null.
func (h *RecordHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
		return
	}

	records, err := h.service.List(r.Context(), id.UserID, filterFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []model.GlucoseRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleStats handles GET /api/records/stats?startDate=&endDate=.
func (h *RecordHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
		return
	}

	st, err := h.service.Stats(r.Context(), id.UserID, filterFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleReport handles GET /api/records/report?startDate=&endDate= and
// returns the printable HTML history.
func (h *RecordHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
		return
	}

	f := filterFromQuery(r)
	history, err := h.service.History(r.Context(), id.UserID, f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Render into a buffer first so a template failure can still become a
	// clean 500 instead of half a page.
	var buf bytes.Buffer
	data := report.Build(id.Username, f.StartDate, f.EndDate, history, h.now())
	if err := h.report.Render(&buf, data); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("writing report failed", slog.String("error", err.Error()))
	}
}

func filterFromQuery(r *http.Request) repository.RecordFilter {
	q := r.URL.Query()
	return repository.RecordFilter{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}
}
