package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/habits/internal/auth"
	"github.com/dukerupert/habits/internal/habit"
	"github.com/dukerupert/habits/internal/handler"
	"github.com/dukerupert/habits/internal/middleware"
	"github.com/dukerupert/habits/internal/reminder"
	"github.com/dukerupert/habits/internal/scheduler"
	"github.com/dukerupert/habits/internal/store"
	ws "github.com/dukerupert/habits/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	hub         *ws.Hub
	runner      *scheduler.Runner
	tokens      *auth.Tokens
	habitSvc    *habit.Service
	userH       *handler.UserHandler
	habitH      *handler.HabitHandler
	frequencyH  *handler.FrequencyHandler
	healthH     *handler.HealthHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New wires stores, scheduling and handlers. Reminders are delivered through
// notifier and scheduled in loc.
func New(db *sql.DB, tokens *auth.Tokens, notifier reminder.Notifier, loc *time.Location, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	habitStore := store.NewHabitStore(db)
	weekdayStore := store.NewWeekdayStore(db)
	jobStore := store.NewJobStore(db)

	dispatcher := reminder.NewDispatcher(habitStore, userStore, notifier, logger)
	runner := scheduler.NewRunner(jobStore, dispatcher.Run, loc, logger)

	validator := habit.NewValidator(habitStore, loc)
	compiler := habit.NewCompiler(runner, habitStore, loc, logger)
	habitSvc := habit.NewService(habitStore, userStore, validator, compiler, logger)

	return &Server{
		hub:         hub,
		runner:      runner,
		tokens:      tokens,
		habitSvc:    habitSvc,
		userH:       handler.NewUserHandler(userStore, tokens, logger.With("component", "user")),
		habitH:      handler.NewHabitHandler(habitSvc, hub, logger.With("component", "habit_handler")),
		frequencyH:  handler.NewFrequencyHandler(weekdayStore, logger.With("component", "frequency")),
		healthH:     handler.NewHealthHandler(db, runner, logger.With("component", "health")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Runner returns the reminder job runner so the caller can start and stop it.
func (s *Server) Runner() *scheduler.Runner {
	return s.runner
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	limited := middleware.RateLimit(s.rateLimiter, authRateLimit, authRateWindow)
	outerMux.Handle("POST /users/register", limited(http.HandlerFunc(s.userH.Register)))
	outerMux.Handle("POST /users/login", limited(http.HandlerFunc(s.userH.Login)))
	outerMux.HandleFunc("POST /users/token/refresh", s.userH.Refresh)
	outerMux.HandleFunc("GET /habits/public", s.habitH.ListPublic)
	outerMux.HandleFunc("GET /frequencies", s.frequencyH.ListFrequencies)
	outerMux.HandleFunc("GET /weekdays", s.frequencyH.ListWeekdays)
	outerMux.HandleFunc("GET /health", s.healthH.Health)
	outerMux.HandleFunc("GET /health/detailed", s.healthH.Detailed)
	outerMux.Handle("GET /metrics", promhttp.Handler())
	outerMux.HandleFunc("GET /ws", ws.HandleFeed(s.hub, s.habitSvc.ListPublic, s.logger.With("component", "websocket")))

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /users/me", s.userH.Me)
	mux.HandleFunc("PATCH /users/me", s.userH.UpdateMe)

	mux.HandleFunc("POST /habits", s.habitH.Create)
	mux.HandleFunc("GET /habits", s.habitH.List)
	mux.HandleFunc("GET /habits/{id}", s.habitH.Get)
	mux.HandleFunc("PUT /habits/{id}", s.habitH.Update)
	mux.HandleFunc("PATCH /habits/{id}", s.habitH.Patch)
	mux.HandleFunc("DELETE /habits/{id}", s.habitH.Delete)
}
