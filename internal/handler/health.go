package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

// JobCounter reports how many reminder jobs are live.
type JobCounter interface {
	Active() int
}

type HealthHandler struct {
	db     *sql.DB
	jobs   JobCounter
	logger *slog.Logger
}

func NewHealthHandler(db *sql.DB, jobs JobCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, jobs: jobs, logger: logger}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Detailed pings the database and reports the scheduler's job count.
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := map[string]any{
		"status":   "ok",
		"database": "ok",
	}
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database ping failed", "error", err)
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
		resp["database"] = "unavailable"
	}
	if h.jobs != nil {
		resp["scheduled_jobs"] = h.jobs.Active()
	}
	writeJSON(w, status, resp)
}
