package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/habits/internal/model"
)

type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func scanJob(scanner interface{ Scan(...any) error }) (*model.ScheduledJob, error) {
	var j model.ScheduledJob
	var enabled int
	var lastRun sql.NullTime
	err := scanner.Scan(&j.ID, &j.Name, &j.CronExpr, &j.HabitID, &enabled, &j.CreatedAt, &lastRun)
	if err != nil {
		return nil, err
	}
	j.Enabled = enabled != 0
	if lastRun.Valid {
		j.LastRunAt = &lastRun.Time
	}
	return &j, nil
}

const jobCols = `id, name, cron_expr, habit_id, enabled, created_at, last_run_at`

// Upsert creates the named job or overwrites its expression and payload,
// leaving it enabled either way.
func (s *JobStore) Upsert(name, expr string, habitID int64) (*model.ScheduledJob, error) {
	_, err := s.db.Exec(
		`INSERT INTO scheduled_jobs (name, cron_expr, habit_id, enabled) VALUES (?, ?, ?, 1)
		 ON CONFLICT(name) DO UPDATE SET cron_expr = excluded.cron_expr, habit_id = excluded.habit_id, enabled = 1`,
		name, expr, habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert job: %w", err)
	}
	return s.GetByName(name)
}

func (s *JobStore) GetByName(name string) (*model.ScheduledJob, error) {
	row := s.db.QueryRow(`SELECT `+jobCols+` FROM scheduled_jobs WHERE name = ?`, name)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *JobStore) Disable(name string) error {
	_, err := s.db.Exec(`UPDATE scheduled_jobs SET enabled = 0 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("disable job: %w", err)
	}
	return nil
}

func (s *JobStore) Delete(name string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_jobs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *JobStore) ListEnabled() ([]model.ScheduledJob, error) {
	rows, err := s.db.Query(`SELECT ` + jobCols + ` FROM scheduled_jobs WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.ScheduledJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *JobStore) MarkRun(name string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE scheduled_jobs SET last_run_at = ? WHERE name = ?`, at, name)
	if err != nil {
		return fmt.Errorf("mark job run: %w", err)
	}
	return nil
}
