// Package log provides the structured logging interface used by spatialpred.
//
// The Logger interface mirrors log/slog's key/value calling convention so the
// backend can be swapped. The default backend is zerolog (see logger.go);
// tests use TestLogger, which captures JSON lines in memory.
//
// Example usage:
//
//	logger := log.Default().With(
//	    log.ComponentKey, "ranking",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("ranking finished",
//	    log.RankerKey, "effect",
//	    log.EligibleKey, 12,
//	)
package log

import (
	"context"
)

// Logger is a structured, leveled logger.
type Logger interface {
	// Debug logs diagnostic detail, e.g. one record per candidate fit.
	Debug(msg string, fields ...any)

	// Info logs stage-level progress.
	Info(msg string, fields ...any)

	// Warn logs recovered conditions such as a dropped threshold.
	Warn(msg string, fields ...any)

	// Error logs failures. An error value passed under ErrorKey gets its
	// stack trace attached by backends that support it.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level are emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level with slog-compatible values.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider hands out loggers, optionally named per component.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
