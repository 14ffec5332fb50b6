package habit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/habits/internal/frequency"
	"github.com/dukerupert/habits/internal/model"
)

// ErrRelatedNotFound is returned when a draft points at a missing habit.
var ErrRelatedNotFound = errors.New("related habit not found")

// ValidationError carries a reason that is safe to show to the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func reject(reason string) error {
	return &ValidationError{Reason: reason}
}

// Draft is the full proposed attribute set of a habit, before or after an
// edit. Empty strings count as absent.
type Draft struct {
	Place          string
	Action         string
	Time           *time.Time
	EndTime        *time.Time
	IsPleasant     bool
	RelatedHabitID *int64
	Reward         *string
	Frequency      *string
	DaysOfWeek     []int
	TimeNeeded     int
	IsPublic       bool
}

// DraftFrom returns the draft describing an existing habit, the starting
// point for partial updates.
func DraftFrom(h *model.Habit) Draft {
	return Draft{
		Place:          h.Place,
		Action:         h.Action,
		Time:           h.Time,
		EndTime:        h.EndTime,
		IsPleasant:     h.IsPleasant,
		RelatedHabitID: h.RelatedHabitID,
		Reward:         h.Reward,
		Frequency:      h.Frequency,
		DaysOfWeek:     append([]int(nil), h.DaysOfWeek...),
		TimeNeeded:     h.TimeNeeded,
		IsPublic:       h.IsPublic,
	}
}

func (d Draft) hasReward() bool    { return d.Reward != nil && *d.Reward != "" }
func (d Draft) hasFrequency() bool { return d.Frequency != nil && *d.Frequency != "" }
func (d Draft) hasRelated() bool   { return d.RelatedHabitID != nil }

// HabitGetter looks up habits by id, returning nil when absent.
type HabitGetter interface {
	GetByID(id int64) (*model.Habit, error)
}

type Validator struct {
	habits HabitGetter
	loc    *time.Location
}

// NewValidator creates a validator comparing calendar dates in loc.
func NewValidator(habits HabitGetter, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{habits: habits, loc: loc}
}

// Validate checks ownerID's draft rule by rule and stops at the first
// violation. It never writes anything.
func (v *Validator) Validate(ctx context.Context, ownerID int64, d Draft) (Variant, error) {
	var template string
	if d.hasFrequency() {
		f, ok := frequency.Lookup(*d.Frequency)
		if !ok {
			return nil, reject(fmt.Sprintf("unknown frequency %q", *d.Frequency))
		}
		template = f.Template
	}

	if d.TimeNeeded > model.MaxTimeNeeded {
		return nil, reject("time_needed must be under 2 minutes (120 seconds)")
	}
	if d.TimeNeeded < 0 {
		return nil, reject("time_needed cannot be negative")
	}

	if d.hasRelated() {
		related, err := v.habits.GetByID(*d.RelatedHabitID)
		if err != nil {
			return nil, fmt.Errorf("load related habit: %w", err)
		}
		// another user's private habit is reported as missing
		if related == nil || (related.UserID != ownerID && !related.IsPublic) {
			return nil, ErrRelatedNotFound
		}
		if !related.IsPleasant {
			return nil, reject("related habit must be a pleasant habit")
		}
	}

	if d.hasRelated() && d.hasReward() {
		return nil, reject("a habit cannot have both a related habit and a reward")
	}

	if d.IsPleasant {
		if d.hasRelated() || d.hasReward() || d.hasFrequency() || d.Time != nil {
			return nil, reject("a pleasant habit cannot have a related habit, reward, frequency or time")
		}
	} else {
		scheduled := d.hasFrequency() && d.Time != nil
		if !scheduled || (!d.hasReward() && !d.hasRelated()) {
			return nil, reject("a useful habit needs a frequency, a time and either a reward or a related habit")
		}
	}

	multi := frequency.IsMultiPerDay(template)
	if multi && d.EndTime == nil {
		return nil, reject("this frequency repeats within a day and requires an end time")
	}
	if !multi && d.EndTime != nil {
		return nil, reject("end time is only allowed for frequencies that repeat within a day")
	}
	if d.Time != nil && d.EndTime != nil {
		if !sameDate(d.Time.In(v.loc), d.EndTime.In(v.loc)) {
			return nil, reject("end time must be on the same day as time")
		}
		if !d.EndTime.After(*d.Time) {
			return nil, reject("end time must be after time")
		}
	}

	daySpecific := frequency.IsDaySpecific(template)
	if daySpecific && len(d.DaysOfWeek) == 0 {
		return nil, reject("this frequency requires days of the week")
	}
	if !daySpecific && len(d.DaysOfWeek) > 0 {
		return nil, reject("days of the week are only allowed for day-specific frequencies")
	}
	for _, day := range d.DaysOfWeek {
		if day < 0 || day > 6 {
			return nil, reject(fmt.Sprintf("unknown day of the week %d", day))
		}
	}

	if d.IsPleasant {
		return Pleasant{}, nil
	}

	var incentive Incentive
	if d.hasReward() {
		incentive = Reward(*d.Reward)
	} else {
		incentive = RelatedHabit(*d.RelatedHabitID)
	}
	return Useful{
		incentive: incentive,
		cadence: Cadence{
			Template: template,
			Time:     *d.Time,
			EndTime:  d.EndTime,
			Days:     append([]int(nil), d.DaysOfWeek...),
		},
	}, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
