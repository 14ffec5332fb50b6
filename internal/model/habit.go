package model

import "time"

const MaxTimeNeeded = 120

type Habit struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Place          string     `json:"place"`
	Action         string     `json:"action"`
	Time           *time.Time `json:"time"`
	EndTime        *time.Time `json:"end_time"`
	IsPleasant     bool       `json:"is_pleasant"`
	RelatedHabitID *int64     `json:"related_habit"`
	Reward         *string    `json:"reward"`
	Frequency      *string    `json:"frequency"`
	Schedule       string     `json:"schedule"`
	DaysOfWeek     []int      `json:"days_of_week"`
	TimeNeeded     int        `json:"time_needed"`
	IsPublic       bool       `json:"is_public"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PublicHabit is the reduced view shown in the public feed.
type PublicHabit struct {
	ID         int64  `json:"-"`
	Action     string `json:"action"`
	IsPleasant bool   `json:"is_pleasant"`
	TimeNeeded int    `json:"time_needed"`
}

func (h *Habit) Public() PublicHabit {
	return PublicHabit{
		ID:         h.ID,
		Action:     h.Action,
		IsPleasant: h.IsPleasant,
		TimeNeeded: h.TimeNeeded,
	}
}

type HabitPage struct {
	Count    int     `json:"count"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Results  []Habit `json:"results"`
}
