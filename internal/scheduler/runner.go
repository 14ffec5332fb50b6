package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/habits/internal/metrics"
	"github.com/dukerupert/habits/internal/model"
	"github.com/dukerupert/habits/internal/store"
)

// Registry creates and tears down named recurring jobs.
type Registry interface {
	Register(ctx context.Context, name, expr string, habitID int64) error
	Cancel(ctx context.Context, name string) error
}

// JobFunc is the body executed on every tick of a job.
type JobFunc func(ctx context.Context, habitID int64) error

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Runner keeps persisted jobs and live cron entries in step.
type Runner struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    *store.JobStore
	run     JobFunc
	entries map[string]cron.EntryID
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

var _ Registry = (*Runner)(nil)

// NewRunner creates a runner firing jobs in loc. Nothing ticks until Start.
func NewRunner(jobs *store.JobStore, run JobFunc, loc *time.Location, logger *slog.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		jobs:    jobs,
		run:     run,
		entries: make(map[string]cron.EntryID),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Register persists the job and schedules it, replacing any previous entry
// with the same name.
func (r *Runner) Register(ctx context.Context, name, expr string, habitID int64) error {
	sched, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("parse %q: %w", expr, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.jobs.Upsert(name, expr, habitID); err != nil {
		return fmt.Errorf("register job: %w", err)
	}
	r.schedule(name, sched, habitID)

	metrics.RecordJobOperation("register")
	r.logger.Info("job registered", "name", name, "expr", expr, "habit_id", habitID)
	return nil
}

// schedule must be called with mu held.
func (r *Runner) schedule(name string, sched cron.Schedule, habitID int64) {
	if id, ok := r.entries[name]; ok {
		r.cron.Remove(id)
	}
	r.entries[name] = r.cron.Schedule(sched, cron.FuncJob(func() {
		r.fire(name, habitID)
	}))
	metrics.ScheduledJobs.Set(float64(len(r.entries)))
}

// Cancel disables and removes the named job. Cancelling a job that does not
// exist is not an error.
func (r *Runner) Cancel(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[name]; ok {
		r.cron.Remove(id)
		delete(r.entries, name)
		metrics.ScheduledJobs.Set(float64(len(r.entries)))
	}

	job, err := r.jobs.GetByName(name)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if job == nil {
		return nil
	}
	if err := r.jobs.Disable(name); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if err := r.jobs.Delete(name); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}

	metrics.RecordJobOperation("cancel")
	r.logger.Info("job cancelled", "name", name)
	return nil
}

// Start schedules every enabled job from the store and starts ticking.
// Jobs with an expression that no longer parses are logged and skipped.
func (r *Runner) Start(ctx context.Context) error {
	jobs, err := r.jobs.ListEnabled()
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	r.mu.Lock()
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(ctx)
	for _, j := range jobs {
		sched, err := parser.Parse(j.CronExpr)
		if err != nil {
			r.logger.Error("skip job with invalid expression", "name", j.Name, "expr", j.CronExpr, "error", err)
			continue
		}
		r.schedule(j.Name, sched, j.HabitID)
	}
	r.mu.Unlock()

	r.cron.Start()
	r.logger.Info("scheduler started", "jobs", len(jobs))
	return nil
}

// Stop halts ticking and waits for running jobs to return.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()

	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.logger.Info("scheduler stopped")
}

// Jobs returns the persisted jobs that are currently enabled.
func (r *Runner) Jobs() ([]model.ScheduledJob, error) {
	return r.jobs.ListEnabled()
}

// Active returns the number of live cron entries.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Runner) fire(name string, habitID int64) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	defer func() {
		if err := r.jobs.MarkRun(name, r.now()); err != nil {
			r.logger.Error("record job run", "name", name, "error", err)
		}
	}()

	if err := r.run(ctx, habitID); err != nil {
		r.logger.Warn("job failed", "name", name, "habit_id", habitID, "error", err)
	}
}
