package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/habits/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	var start, end sql.NullTime
	var related sql.NullInt64
	var reward, freq sql.NullString
	var pleasant, public int

	err := scanner.Scan(
		&h.ID, &h.UserID, &h.Place, &h.Action, &start, &end, &pleasant,
		&related, &reward, &freq, &h.Schedule, &h.TimeNeeded, &public,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.IsPleasant = pleasant != 0
	h.IsPublic = public != 0
	if start.Valid {
		h.Time = &start.Time
	}
	if end.Valid {
		h.EndTime = &end.Time
	}
	if related.Valid {
		h.RelatedHabitID = &related.Int64
	}
	if reward.Valid {
		h.Reward = &reward.String
	}
	if freq.Valid {
		h.Frequency = &freq.String
	}
	h.DaysOfWeek = []int{}
	return &h, nil
}

const habitCols = `id, user_id, place, action, time, end_time, is_pleasant, related_habit_id, reward, frequency, schedule, time_needed, is_public, created_at, updated_at`

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Create inserts the habit and its weekdays in one transaction.
// The schedule column starts empty and is filled by SetSchedule.
func (s *HabitStore) Create(h model.Habit) (*model.Habit, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO habits (user_id, place, action, time, end_time, is_pleasant, related_habit_id, reward, frequency, time_needed, is_public)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.UserID, h.Place, h.Action, nullTime(h.Time), nullTime(h.EndTime), boolInt(h.IsPleasant),
		nullInt64(h.RelatedHabitID), nullString(h.Reward), nullString(h.Frequency), h.TimeNeeded, boolInt(h.IsPublic),
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := replaceDays(tx, id, h.DaysOfWeek); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func replaceDays(tx *sql.Tx, habitID int64, days []int) error {
	if _, err := tx.Exec(`DELETE FROM habit_weekdays WHERE habit_id = ?`, habitID); err != nil {
		return fmt.Errorf("clear habit weekdays: %w", err)
	}
	for _, d := range days {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO habit_weekdays (habit_id, weekday_id) VALUES (?, ?)`,
			habitID, d,
		); err != nil {
			return fmt.Errorf("insert habit weekday: %w", err)
		}
	}
	return nil
}

func (s *HabitStore) GetByID(id int64) (*model.Habit, error) {
	row := s.db.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	days, err := s.days(id)
	if err != nil {
		return nil, err
	}
	h.DaysOfWeek = days
	return h, nil
}

func (s *HabitStore) days(habitID int64) ([]int, error) {
	rows, err := s.db.Query(
		`SELECT weekday_id FROM habit_weekdays WHERE habit_id = ? ORDER BY weekday_id`, habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habit weekdays: %w", err)
	}
	defer rows.Close()

	days := []int{}
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan habit weekday: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// Update replaces every editable attribute of the habit. Ownership and the
// compiled schedule are left alone.
func (s *HabitStore) Update(h model.Habit) (*model.Habit, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE habits SET place = ?, action = ?, time = ?, end_time = ?, is_pleasant = ?,
		   related_habit_id = ?, reward = ?, frequency = ?, time_needed = ?, is_public = ?,
		   updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		h.Place, h.Action, nullTime(h.Time), nullTime(h.EndTime), boolInt(h.IsPleasant),
		nullInt64(h.RelatedHabitID), nullString(h.Reward), nullString(h.Frequency), h.TimeNeeded, boolInt(h.IsPublic),
		h.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	if err := replaceDays(tx, h.ID, h.DaysOfWeek); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(h.ID)
}

func (s *HabitStore) SetSchedule(id int64, expr string) error {
	_, err := s.db.Exec(`UPDATE habits SET schedule = ? WHERE id = ?`, expr, id)
	if err != nil {
		return fmt.Errorf("set schedule: %w", err)
	}
	return nil
}

func (s *HabitStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// ListByUser returns one page of the user's habits ordered by id.
func (s *HabitStore) ListByUser(userID int64, limit, offset int) ([]model.Habit, error) {
	rows, err := s.db.Query(
		`SELECT `+habitCols+` FROM habits WHERE user_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	habits, err := collectHabits(rows)
	if err != nil {
		return nil, err
	}
	return habits, s.attachDays(habits)
}

func (s *HabitStore) CountByUser(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM habits WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count habits: %w", err)
	}
	return n, nil
}

// CountReferencing returns how many habits name id as their related habit.
func (s *HabitStore) CountReferencing(id int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM habits WHERE related_habit_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referencing habits: %w", err)
	}
	return n, nil
}

func (s *HabitStore) ListPublic() ([]model.Habit, error) {
	rows, err := s.db.Query(`SELECT ` + habitCols + ` FROM habits WHERE is_public = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list public habits: %w", err)
	}
	habits, err := collectHabits(rows)
	if err != nil {
		return nil, err
	}
	return habits, s.attachDays(habits)
}

// collectHabits drains and closes rows before any follow-up query runs.
func collectHabits(rows *sql.Rows) ([]model.Habit, error) {
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

func (s *HabitStore) attachDays(habits []model.Habit) error {
	for i := range habits {
		days, err := s.days(habits[i].ID)
		if err != nil {
			return err
		}
		habits[i].DaysOfWeek = days
	}
	return nil
}
