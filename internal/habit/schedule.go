package habit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/habits/internal/frequency"
	"github.com/dukerupert/habits/internal/model"
	"github.com/dukerupert/habits/internal/scheduler"
)

// ScheduleSetter persists a habit's compiled expression.
type ScheduleSetter interface {
	SetSchedule(id int64, expr string) error
}

// Compiler turns validated cadences into cron expressions and keeps the
// habit's reminder job in line with them.
type Compiler struct {
	registry scheduler.Registry
	habits   ScheduleSetter
	loc      *time.Location
	logger   *slog.Logger
}

func NewCompiler(registry scheduler.Registry, habits ScheduleSetter, loc *time.Location, logger *slog.Logger) *Compiler {
	if loc == nil {
		loc = time.UTC
	}
	return &Compiler{
		registry: registry,
		habits:   habits,
		loc:      loc,
		logger:   logger.With("component", "schedule"),
	}
}

// JobName is the registry key of a habit's reminder job.
func JobName(habitID int64) string {
	return fmt.Sprintf("reminder-habit-%d", habitID)
}

// Compile substitutes the cadence's time slots into its template. The
// template is never modified, so the result is stable across calls.
func (c *Compiler) Compile(u Useful) (string, error) {
	cad := u.Cadence()
	slots := frequency.SlotsFor(cad.Time, cad.EndTime, cad.Days, c.loc)
	return frequency.Compile(cad.Template, slots)
}

// Apply stores the compiled schedule on the habit and registers its reminder
// job when the owner can receive one. With update set, any previous job is
// cancelled first. Pleasant habits end up with an empty schedule and no job.
func (c *Compiler) Apply(ctx context.Context, h *model.Habit, owner *model.User, v Variant, update bool) error {
	var expr string
	if u, ok := v.(Useful); ok {
		var err error
		if expr, err = c.Compile(u); err != nil {
			return fmt.Errorf("compile schedule: %w", err)
		}
	}

	if err := c.habits.SetSchedule(h.ID, expr); err != nil {
		return err
	}
	h.Schedule = expr

	name := JobName(h.ID)
	if update {
		if err := c.registry.Cancel(ctx, name); err != nil {
			return fmt.Errorf("cancel reminder: %w", err)
		}
	}

	if expr == "" {
		return nil
	}
	if !owner.HasChannel() {
		c.logger.Debug("owner has no chat, reminder not registered", "habit_id", h.ID)
		return nil
	}
	if err := c.registry.Register(ctx, name, expr, h.ID); err != nil {
		return fmt.Errorf("register reminder: %w", err)
	}
	return nil
}

// Cancel removes the habit's reminder job if there is one.
func (c *Compiler) Cancel(ctx context.Context, habitID int64) error {
	if err := c.registry.Cancel(ctx, JobName(habitID)); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return nil
}
