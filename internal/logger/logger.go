package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level controls which messages are written
type Level string

const (
	LevelDebug  Level = "debug"
	LevelInfo   Level = "info"
	LevelWarn   Level = "warn"
	LevelError  Level = "error"
	LevelSilent Level = "silent"
)

// Logger is the logging surface used across dbhelper
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
}

type zeroLogger struct {
	zl zerolog.Logger
}

var (
	mu   sync.RWMutex
	root = newRoot(os.Stderr, false)
)

func newRoot(w io.Writer, jsonOutput bool) zerolog.Logger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(zerolog.WarnLevel).With().Timestamp().Logger()
}

// Configure replaces the root logger output. JSON output is written as-is,
// otherwise a console writer is used.
func Configure(w io.Writer, jsonOutput bool) {
	mu.Lock()
	defer mu.Unlock()
	level := root.GetLevel()
	root = newRoot(w, jsonOutput).Level(level)
}

// SetLevel changes the minimum level of the root logger
func SetLevel(level Level) error {
	zlevel, err := parseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	root = root.Level(zlevel)
	mu.Unlock()
	return nil
}

// GetLevel returns the current root level
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	switch root.GetLevel() {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return LevelDebug
	case zerolog.InfoLevel:
		return LevelInfo
	case zerolog.WarnLevel:
		return LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return LevelError
	default:
		return LevelSilent
	}
}

func parseLevel(level Level) (zerolog.Level, error) {
	switch Level(strings.ToLower(string(level))) {
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case LevelInfo, "":
		return zerolog.InfoLevel, nil
	case LevelWarn, "warning":
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelSilent, "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Default returns a logger bound to the current root configuration
func Default() Logger {
	return &zeroLogger{zl: current()}
}

func (l *zeroLogger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *zeroLogger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *zeroLogger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *zeroLogger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

func (l *zeroLogger) WithField(key string, value interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *zeroLogger) WithFields(fields map[string]interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *zeroLogger) WithError(err error) Logger {
	return &zeroLogger{zl: l.zl.With().Err(err).Logger()}
}

// Package-level helpers write through the root logger

func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }

func Info(format string, args ...interface{}) { Default().Info(format, args...) }

func Warn(format string, args ...interface{}) { Default().Warn(format, args...) }

func Error(format string, args ...interface{}) { Default().Error(format, args...) }

// WithField returns a root logger carrying one extra field
func WithField(key string, value interface{}) Logger {
	return Default().WithField(key, value)
}

// WithFields returns a root logger carrying extra fields
func WithFields(fields map[string]interface{}) Logger {
	return Default().WithFields(fields)
}
