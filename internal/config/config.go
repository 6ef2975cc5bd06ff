package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = "agon.db"
	defaultInterpreter    = "python3"
	defaultResponseBudget = 60 * time.Second

	envListenAddr     = "AGON_LISTEN_ADDR"
	envDBPath         = "AGON_DB_PATH"
	envLogLevel       = "AGON_LOG_LEVEL"
	envProblemsPath   = "AGON_PROBLEMS_PATH"
	envInterpreter    = "AGON_INTERPRETER"
	envResponseBudget = "AGON_RESPONSE_BUDGET_S"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// ProblemsPath is a YAML problem file. Empty selects the built-in
	// starter problems.
	ProblemsPath string

	// Interpreter runs submissions inside the sandbox.
	Interpreter string

	// ResponseBudget is the per-agent solicitation timeout.
	ResponseBudget time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		LogLevel:       slog.LevelInfo,
		Interpreter:    defaultInterpreter,
		ResponseBudget: defaultResponseBudget,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envProblemsPath); v != "" {
		cfg.ProblemsPath = v
	}
	if v := os.Getenv(envInterpreter); v != "" {
		cfg.Interpreter = v
	}
	if v := os.Getenv(envResponseBudget); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ResponseBudget = time.Duration(secs) * time.Second
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
