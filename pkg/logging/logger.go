// Package logging provides structured logging for the swingbye simulation.
// It wraps Go's standard slog package with context-first helpers that carry
// a run ID through every record.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelEnvVar names the environment variable that selects the log level.
const LevelEnvVar = "SWINGBYE_LOG_LEVEL"

// Logger wraps slog.Logger with run ID support.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger writing JSON to stdout.
// Valid levels in SWINGBYE_LOG_LEVEL: DEBUG, INFO, WARN, ERROR. Defaults to INFO.
func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout, getLogLevelFromEnv())
}

// NewLoggerWithWriter creates a Logger writing JSON to w at the given level.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{slog.New(handler)}
}

// Discard returns a Logger that drops every record.
func Discard() *Logger {
	return NewLoggerWithWriter(io.Discard, slog.LevelError+1)
}

// LogWithContext logs a message, appending the run ID from ctx when present.
func (l *Logger) LogWithContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	if runID := GetRunID(ctx); runID != "" {
		args = append(args, "run_id", runID)
	}
	l.Log(ctx, level, msg, args...)
}

// Info logs an informational message with context.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning message with context.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error message with context and proper error formatting.
func (l *Logger) Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.LogWithContext(ctx, slog.LevelError, msg, args...)
}

// Debug logs a debug message with context.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelDebug, msg, args...)
}

type runIDKey struct{}

// WithRunID stores a run ID in the context, generating one when runID is empty.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// GetRunID returns the run ID stored in ctx, or "".
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateRunID creates a new random 16 character run ID.
func GenerateRunID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func getLogLevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv(LevelEnvVar))
}

// ParseLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WrapError wraps an error with additional context information.
func WrapError(err error, context string, args ...any) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		context = fmt.Sprintf(context, args...)
	}
	return fmt.Errorf("%s: %w", context, err)
}
