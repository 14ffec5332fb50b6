package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/habits/internal/telegram"
)

type Config struct {
	Port           string
	DBPath         string
	LogLevel       string
	LogFormat      string
	JWTSecret      string
	TimeZone       string
	Location       *time.Location
	TelegramToken  string
	TelegramAPIURL string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	c := &Config{
		Port:           getenvDefault(getenv, "HABITS_PORT", "8080"),
		DBPath:         getenvDefault(getenv, "HABITS_DB_PATH", "habits.db"),
		LogLevel:       getenvDefault(getenv, "HABITS_LOG_LEVEL", "info"),
		LogFormat:      getenvDefault(getenv, "HABITS_LOG_FORMAT", "text"),
		JWTSecret:      getenv("HABITS_JWT_SECRET"),
		TimeZone:       getenvDefault(getenv, "HABITS_TIMEZONE", "Europe/Moscow"),
		TelegramToken:  getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL: getenvDefault(getenv, "TELEGRAM_API_URL", telegram.DefaultBaseURL),
	}

	if c.JWTSecret == "" {
		return nil, errors.New("HABITS_JWT_SECRET is required")
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("HABITS_TIMEZONE: %w", err)
	}
	c.Location = loc
	return c, nil
}

func getenvDefault(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
