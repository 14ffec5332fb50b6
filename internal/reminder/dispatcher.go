package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/habits/internal/metrics"
	"github.com/dukerupert/habits/internal/model"
)

// ErrHabitNotFound means the job outlived its habit. Retrying cannot help.
var ErrHabitNotFound = errors.New("habit not found")

type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeTransportError Outcome = "transport_error"
)

type HabitSource interface {
	GetByID(id int64) (*model.Habit, error)
}

type UserSource interface {
	GetByID(id int64) (*model.User, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Dispatcher is the body of a reminder job. It keeps no state between runs.
type Dispatcher struct {
	habits   HabitSource
	users    UserSource
	notifier Notifier
	logger   *slog.Logger
}

func NewDispatcher(habits HabitSource, users UserSource, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		habits:   habits,
		users:    users,
		notifier: notifier,
		logger:   logger.With("component", "reminder"),
	}
}

// Dispatch sends one reminder for the habit. A failed delivery is reported
// as OutcomeTransportError rather than an error so the tick is not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, habitID int64) (Outcome, error) {
	h, err := d.habits.GetByID(habitID)
	if err != nil {
		return "", fmt.Errorf("load habit: %w", err)
	}
	if h == nil {
		metrics.RecordDispatch("not_found")
		return "", fmt.Errorf("dispatch habit %d: %w", habitID, ErrHabitNotFound)
	}

	owner, err := d.users.GetByID(h.UserID)
	if err != nil {
		return "", fmt.Errorf("load owner: %w", err)
	}
	if !owner.HasChannel() {
		metrics.RecordDispatch(string(OutcomeSkipped))
		d.logger.Debug("owner has no chat, skipping", "habit_id", habitID)
		return OutcomeSkipped, nil
	}

	reward, err := d.rewardFor(h)
	if err != nil {
		return "", err
	}

	text := ComposeText(h.Action, h.Place, reward)
	if err := d.notifier.SendMessage(ctx, *owner.TgChatID, text); err != nil {
		metrics.RecordDispatch(string(OutcomeTransportError))
		d.logger.Warn("reminder delivery failed", "habit_id", habitID, "error", err)
		return OutcomeTransportError, nil
	}

	metrics.RecordDispatch(string(OutcomeSent))
	d.logger.Info("reminder sent", "habit_id", habitID)
	return OutcomeSent, nil
}

// Run adapts Dispatch to the scheduler's job signature.
func (d *Dispatcher) Run(ctx context.Context, habitID int64) error {
	_, err := d.Dispatch(ctx, habitID)
	return err
}

// rewardFor picks the habit's own reward, else the related habit's action.
func (d *Dispatcher) rewardFor(h *model.Habit) (string, error) {
	if h.Reward != nil && *h.Reward != "" {
		return *h.Reward, nil
	}
	if h.RelatedHabitID == nil {
		return "", nil
	}
	related, err := d.habits.GetByID(*h.RelatedHabitID)
	if err != nil {
		return "", fmt.Errorf("load related habit: %w", err)
	}
	if related == nil {
		return "", nil
	}
	return related.Action, nil
}

func ComposeText(action, place, reward string) string {
	return fmt.Sprintf("It's time to '%s' at '%s'! Don't forget '%s' afterwards.", action, place, reward)
}
