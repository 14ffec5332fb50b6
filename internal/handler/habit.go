package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/habits/internal/auth"
	"github.com/dukerupert/habits/internal/habit"
	"github.com/dukerupert/habits/internal/model"
	"github.com/dukerupert/habits/internal/websocket"
)

type HabitHandler struct {
	svc    *habit.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewHabitHandler(svc *habit.Service, hub *websocket.Hub, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{svc: svc, hub: hub, logger: logger}
}

// publish pushes feed changes caused by a write.
func (h *HabitHandler) publish(before, after *model.Habit) {
	if h.hub == nil {
		return
	}
	if ev, ok := websocket.PublicChange(before, after); ok {
		h.hub.Broadcast(ev)
	}
}

type habitRequest struct {
	Place        string     `json:"place"`
	Action       string     `json:"action"`
	Time         *time.Time `json:"time"`
	EndTime      *time.Time `json:"end_time"`
	IsPleasant   bool       `json:"is_pleasant"`
	RelatedHabit *int64     `json:"related_habit"`
	Reward       *string    `json:"reward"`
	Frequency    *string    `json:"frequency"`
	DaysOfWeek   []int      `json:"days_of_week"`
	TimeNeeded   *int       `json:"time_needed"`
	IsPublic     bool       `json:"is_public"`
}

func (req habitRequest) draft() habit.Draft {
	timeNeeded := model.MaxTimeNeeded
	if req.TimeNeeded != nil {
		timeNeeded = *req.TimeNeeded
	}
	return habit.Draft{
		Place:          strings.TrimSpace(req.Place),
		Action:         strings.TrimSpace(req.Action),
		Time:           req.Time,
		EndTime:        req.EndTime,
		IsPleasant:     req.IsPleasant,
		RelatedHabitID: req.RelatedHabit,
		Reward:         req.Reward,
		Frequency:      req.Frequency,
		DaysOfWeek:     req.DaysOfWeek,
		TimeNeeded:     timeNeeded,
		IsPublic:       req.IsPublic,
	}
}

func requireText(d habit.Draft) string {
	if d.Place == "" {
		return "place is required"
	}
	if d.Action == "" {
		return "action is required"
	}
	return ""
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	d := req.draft()
	if msg := requireText(d); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.svc.Create(r.Context(), auth.UserID(r.Context()), d)
	if err != nil {
		h.writeServiceError(w, err, "create")
		return
	}

	h.publish(nil, created)
	writeJSON(w, http.StatusCreated, created)
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), auth.UserID(r.Context()), queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		h.writeServiceError(w, err, "list")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	found, err := h.svc.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// Update replaces the whole habit.
func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req habitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	d := req.draft()
	if msg := requireText(d); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	h.save(w, r, id, func(*model.Habit) (habit.Draft, error) { return d, nil })
}

// Patch merges the given fields into the stored habit. The merged result is
// validated as a whole.
func (h *HabitHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var patch map[string]json.RawMessage
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	h.save(w, r, id, func(existing *model.Habit) (habit.Draft, error) {
		d := habit.DraftFrom(existing)
		if err := applyPatch(&d, patch); err != nil {
			return d, err
		}
		d.Place = strings.TrimSpace(d.Place)
		d.Action = strings.TrimSpace(d.Action)
		return d, nil
	})
}

func (h *HabitHandler) save(w http.ResponseWriter, r *http.Request, id int64, build func(*model.Habit) (habit.Draft, error)) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	existing, err := h.svc.Get(ctx, userID, id)
	if err != nil {
		h.writeServiceError(w, err, "update")
		return
	}
	d, err := build(existing)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := requireText(d); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.svc.Update(ctx, userID, id, d)
	if err != nil {
		h.writeServiceError(w, err, "update")
		return
	}

	h.publish(existing, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)

	existing, err := h.svc.Get(ctx, userID, id)
	if err != nil {
		h.writeServiceError(w, err, "delete")
		return
	}
	if err := h.svc.Delete(ctx, userID, id); err != nil {
		h.writeServiceError(w, err, "delete")
		return
	}

	h.publish(existing, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HabitHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	habits, err := h.svc.ListPublic(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list public")
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *HabitHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	var verr *habit.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, habit.ErrRelatedNotFound):
		writeError(w, http.StatusNotFound, "related habit not found")
	case errors.Is(err, habit.ErrNotFound):
		writeError(w, http.StatusNotFound, "habit not found")
	case errors.Is(err, habit.ErrForbidden):
		writeError(w, http.StatusForbidden, "you do not own this habit")
	default:
		h.logger.Error("habit "+op, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s habit", op))
	}
}

// applyPatch decodes each present field onto the draft. Unknown fields are
// rejected so typos do not silently do nothing.
func applyPatch(d *habit.Draft, patch map[string]json.RawMessage) error {
	fields := map[string]any{
		"place":         &d.Place,
		"action":        &d.Action,
		"time":          &d.Time,
		"end_time":      &d.EndTime,
		"is_pleasant":   &d.IsPleasant,
		"related_habit": &d.RelatedHabitID,
		"reward":        &d.Reward,
		"frequency":     &d.Frequency,
		"days_of_week":  &d.DaysOfWeek,
		"time_needed":   &d.TimeNeeded,
		"is_public":     &d.IsPublic,
	}
	for key, raw := range patch {
		dst, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown field %q", key)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("invalid %s", key)
		}
	}
	return nil
}
