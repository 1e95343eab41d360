// Package logging provides the narrow logging facade used throughout the
// scheduler core: {Debug,Info,Warn,Error}(msg, kv...). It is backed by
// charmbracelet/log so callers get leveled, structured output without the
// core depending on any particular sink (§9: a process-wide logger
// accessed through a narrow interface).
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel mirrors the four levels the scheduler ever logs at.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) charm() charmlog.Level {
	switch l {
	case LevelDebug:
		return charmlog.DebugLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelError:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level   LogLevel
	Output  io.Writer
	Format  string // "text" (default) or "json"
	NoColor bool
	Sync    bool // unused hook kept for API parity with sync-flush backends
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
		Format: "text",
	}
}

// Logger wraps a charmbracelet/log logger with the scheduler's fixed
// context convention (carrier index, RNTI, TTI).
type Logger struct {
	inner *charmlog.Logger
}

// NewLogger creates a new logger from config (nil uses DefaultConfig).
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.NoColor {
		os.Setenv("NO_COLOR", "1")
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	formatter := charmlog.TextFormatter
	if config.Format == "json" {
		formatter = charmlog.JSONFormatter
	}
	inner := charmlog.NewWithOptions(output, charmlog.Options{
		Level:           config.Level.charm(),
		Formatter:       formatter,
		ReportTimestamp: true,
	})
	return &Logger{inner: inner}
}

func (l *Logger) with(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}

// WithCarrier returns a logger tagged with the carrier component-carrier index.
func (l *Logger) WithCarrier(cc int) *Logger { return l.with("cc", cc) }

// WithRNTI returns a logger tagged with a UE's RNTI, printed the way the
// rest of the stack refers to it ("0x%x").
func (l *Logger) WithRNTI(rnti uint16) *Logger { return l.with("rnti", fmt.Sprintf("0x%x", rnti)) }

// WithTTI returns a logger tagged with the current TTI counter.
func (l *Logger) WithTTI(tti uint32) *Logger { return l.with("tti", tti) }

// WithError returns a logger that includes the given error as a field.
func (l *Logger) WithError(err error) *Logger { return l.with("error", err) }

func (l *Logger) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.inner.Error(msg, kv...) }

func (l *Logger) Debugf(format string, args ...any) { l.inner.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.inner.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.inner.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.inner.Error(fmt.Sprintf(format, args...)) }

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Default returns the default logger, creating it lazily.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the default logger (used by tests and the driver binary).
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

func Debug(msg string, kv ...any) { Default().Debug(msg, kv...) }
func Info(msg string, kv ...any)  { Default().Info(msg, kv...) }
func Warn(msg string, kv ...any)  { Default().Warn(msg, kv...) }
func Error(msg string, kv ...any) { Default().Error(msg, kv...) }
