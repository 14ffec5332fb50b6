package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/habits/internal/model"
)

type WeekdayStore struct {
	db *sql.DB
}

func NewWeekdayStore(db *sql.DB) *WeekdayStore {
	return &WeekdayStore{db: db}
}

func (s *WeekdayStore) List() ([]model.Weekday, error) {
	rows, err := s.db.Query(`SELECT id, day FROM weekdays ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list weekdays: %w", err)
	}
	defer rows.Close()

	var days []model.Weekday
	for rows.Next() {
		var d model.Weekday
		if err := rows.Scan(&d.ID, &d.Day); err != nil {
			return nil, fmt.Errorf("scan weekday: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
