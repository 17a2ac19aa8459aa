package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// Constants for logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Environments the service may run in
// Development logs human readable text, production logs JSON
const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
)

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// New creates logger for the given environment and level
func New(environment string, level string) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: replace,
	}

	var handler slog.Handler
	switch environment {
	case EnvDevelopment:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case EnvProduction:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unknown environment: %q", environment)
	}

	return &slogLogger{logger: slog.New(handler)}, nil
}

// NewNoOp creates a logger that discards all log messages
func NewNoOp() Logger {
	logger := slog.New(slog.DiscardHandler)
	return &slogLogger{logger: logger}
}
