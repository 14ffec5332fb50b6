package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dukerupert/habits/internal/auth"
	"github.com/dukerupert/habits/internal/config"
	"github.com/dukerupert/habits/internal/database"
	"github.com/dukerupert/habits/internal/logging"
	"github.com/dukerupert/habits/internal/reminder"
	"github.com/dukerupert/habits/internal/server"
	"github.com/dukerupert/habits/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var notifier reminder.Notifier
	if cfg.TelegramToken != "" {
		notifier = telegram.NewClient(cfg.TelegramToken, telegram.WithBaseURL(cfg.TelegramAPIURL))
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, reminders will only be logged")
		notifier = reminder.LogNotifier{Logger: logger.With("component", "reminder")}
	}

	srv := server.New(db, auth.NewTokens(cfg.JWTSecret), notifier, cfg.Location, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Runner().Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("habits running", "addr", httpServer.Addr, "timezone", cfg.TimeZone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.Runner().Stop()
}
