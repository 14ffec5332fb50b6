package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/habits/internal/frequency"
	"github.com/dukerupert/habits/internal/store"
)

type FrequencyHandler struct {
	weekdays *store.WeekdayStore
	logger   *slog.Logger
}

func NewFrequencyHandler(weekdays *store.WeekdayStore, logger *slog.Logger) *FrequencyHandler {
	return &FrequencyHandler{weekdays: weekdays, logger: logger}
}

func (h *FrequencyHandler) ListFrequencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, frequency.All())
}

func (h *FrequencyHandler) ListWeekdays(w http.ResponseWriter, r *http.Request) {
	days, err := h.weekdays.List()
	if err != nil {
		h.logger.Error("list weekdays", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list weekdays")
		return
	}
	writeJSON(w, http.StatusOK, days)
}
