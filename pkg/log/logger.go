package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl    zerolog.Logger
	level Level
}

// NewZerologLogger creates a JSON logger writing to w. With console set, the
// output is zerolog's human-readable console format instead.
func NewZerologLogger(w io.Writer, level Level, console bool) *ZerologLogger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl, level: level}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.Str(key, err.Error())
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &ZerologLogger{zl: ctx.Logger(), level: l.level}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= l.level
}

func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			e.Interface("!BADKEY", fields[i])
			break
		}
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case error:
			e.AnErr(key, v)
			if key == ErrorKey {
				if stack := errors.StackTrace(v); stack != "" {
					e.Str(StacktraceKey, stack)
				}
				e.Str(ErrorTypeKey, fmt.Sprintf("%T", v))
			}
			if m, ok := v.(zerolog.LogObjectMarshaler); ok {
				e.Object(key+".detail", m)
			}
		case zerolog.LogObjectMarshaler:
			e.Object(key, v)
		case string:
			e.Str(key, v)
		case int:
			e.Int(key, v)
		case float64:
			e.Float64(key, v)
		case bool:
			e.Bool(key, v)
		case time.Duration:
			e.Dur(key, v)
		default:
			e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewConfigError("log.level", "unknown log level", level)
	}
}

// ===========================================================================
//
//	Package default
//
// ===========================================================================

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewZerologLogger(os.Stderr, LevelWarn, false)
)

// Default returns the package-level logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the package-level logger and routes pkg/errors
// warnings through it.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	errors.SetZerologWarnFunc(WarningSink(l))
}

// WarningSink adapts a Logger into a pkg/errors warning function.
func WarningSink(l Logger) func(error) {
	return func(w error) {
		l.Warn(w.Error(), "warning", w)
	}
}

// SetupLogger installs a zerolog logger on stderr as the package default.
func SetupLogger(level string, console bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetDefault(NewZerologLogger(os.Stderr, lvl, console))
	return nil
}
