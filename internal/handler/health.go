package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is satisfied by repository.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and whether the database answers.
type HealthHandler struct {
	db      Pinger
	logger  *slog.Logger
	timeout time.Duration
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger, timeout: 2 * time.Second}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
}

// HandleHealth handles GET /health. The process is up if it can answer,
// so the status is always 200; "database" says whether the store pinged.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dbOK := true
	if err := h.db.Ping(ctx); err != nil {
		dbOK = false
		h.logger.Warn("health: database ping failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: dbOK})
}
