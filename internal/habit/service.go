package habit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/habits/internal/model"
	"github.com/dukerupert/habits/internal/store"
)

var (
	ErrNotFound  = errors.New("habit not found")
	ErrForbidden = errors.New("habit belongs to another user")
)

const (
	DefaultPageSize = 5
	MaxPageSize     = 50
)

// Service runs every habit write through validation and scheduling.
type Service struct {
	habits    *store.HabitStore
	users     *store.UserStore
	validator *Validator
	compiler  *Compiler
	logger    *slog.Logger
}

func NewService(habits *store.HabitStore, users *store.UserStore, validator *Validator, compiler *Compiler, logger *slog.Logger) *Service {
	return &Service{
		habits:    habits,
		users:     users,
		validator: validator,
		compiler:  compiler,
		logger:    logger.With("component", "habit"),
	}
}

func (s *Service) Create(ctx context.Context, ownerID int64, d Draft) (*model.Habit, error) {
	v, err := s.validator.Validate(ctx, ownerID, d)
	if err != nil {
		return nil, err
	}
	owner, err := s.owner(ownerID)
	if err != nil {
		return nil, err
	}

	h, err := s.habits.Create(toModel(d, v, ownerID))
	if err != nil {
		return nil, err
	}

	if err := s.compiler.Apply(ctx, h, owner, v, false); err != nil {
		if derr := s.habits.Delete(h.ID); derr != nil {
			s.logger.Error("roll back habit", "habit_id", h.ID, "error", derr)
		}
		return nil, err
	}

	s.logger.Info("habit created", "habit_id", h.ID, "user_id", ownerID, "schedule", h.Schedule)
	return h, nil
}

// Get returns the habit if userID owns it.
func (s *Service) Get(ctx context.Context, userID, id int64) (*model.Habit, error) {
	h, err := s.habits.GetByID(id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrNotFound
	}
	if h.UserID != userID {
		return nil, ErrForbidden
	}
	return h, nil
}

// Update replaces the habit with d after validating the whole draft, then
// reschedules it.
func (s *Service) Update(ctx context.Context, userID, id int64, d Draft) (*model.Habit, error) {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if d.hasRelated() && *d.RelatedHabitID == id {
		return nil, reject("a habit cannot be its own related habit")
	}
	if existing.IsPleasant && !d.IsPleasant {
		n, err := s.habits.CountReferencing(id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, reject("habit is the related habit of another habit and must stay pleasant")
		}
	}
	v, err := s.validator.Validate(ctx, userID, d)
	if err != nil {
		return nil, err
	}
	owner, err := s.owner(userID)
	if err != nil {
		return nil, err
	}

	next := toModel(d, v, userID)
	next.ID = existing.ID
	h, err := s.habits.Update(next)
	if err != nil {
		return nil, err
	}
	if err := s.compiler.Apply(ctx, h, owner, v, true); err != nil {
		return nil, err
	}

	s.logger.Info("habit updated", "habit_id", h.ID, "schedule", h.Schedule)
	return h, nil
}

// Delete cancels the reminder job before removing the habit.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.compiler.Cancel(ctx, id); err != nil {
		return err
	}
	if err := s.habits.Delete(id); err != nil {
		return err
	}
	s.logger.Info("habit deleted", "habit_id", id)
	return nil
}

// List returns one page of the user's habits. Page numbers start at 1.
func (s *Service) List(ctx context.Context, userID int64, page, pageSize int) (*model.HabitPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	count, err := s.habits.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	results, err := s.habits.ListByUser(userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &model.HabitPage{Count: count, Page: page, PageSize: pageSize, Results: results}, nil
}

func (s *Service) ListPublic(ctx context.Context) ([]model.PublicHabit, error) {
	habits, err := s.habits.ListPublic()
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicHabit, len(habits))
	for i := range habits {
		out[i] = habits[i].Public()
	}
	return out, nil
}

func (s *Service) owner(id int64) (*model.User, error) {
	u, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("owner %d: %w", id, ErrNotFound)
	}
	return u, nil
}

// toModel builds the row for a validated draft. Useful habits store the
// canonical template from the vocabulary.
func toModel(d Draft, v Variant, ownerID int64) model.Habit {
	h := model.Habit{
		UserID:         ownerID,
		Place:          d.Place,
		Action:         d.Action,
		Time:           d.Time,
		EndTime:        d.EndTime,
		IsPleasant:     d.IsPleasant,
		RelatedHabitID: d.RelatedHabitID,
		Reward:         d.Reward,
		DaysOfWeek:     d.DaysOfWeek,
		TimeNeeded:     d.TimeNeeded,
		IsPublic:       d.IsPublic,
	}
	if !d.hasReward() {
		h.Reward = nil
	}
	if u, ok := v.(Useful); ok {
		tmpl := u.Cadence().Template
		h.Frequency = &tmpl
		if _, isReward := u.Incentive().(Reward); isReward {
			h.RelatedHabitID = nil
		} else {
			h.Reward = nil
		}
	}
	return h
}
