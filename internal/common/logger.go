package common

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger wraps slog with the context helpers used across termsync.
type Logger struct {
	*slog.Logger
	level  LogLevel
	masker *Masker
}

var logOutput io.Writer = os.Stdout

// NewLogger creates a text logger writing to stdout.
func NewLogger(level LogLevel) *Logger {
	return newLogger(level, slog.NewTextHandler(logOutput, maskingOptions(level)))
}

// NewJSONLogger creates a structured logger with JSON output
func NewJSONLogger(level LogLevel) *Logger {
	return newLogger(level, slog.NewJSONHandler(logOutput, maskingOptions(level)))
}

// NewColorLogger creates a logger using the colorized handler.
func NewColorLogger(level LogLevel) *Logger {
	h := NewColorHandler(logOutput, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	h.SetColorEnabled(true)
	h.SetMasker(globalMasker)
	return newLogger(level, h)
}

// NewWriterLogger creates a text logger writing to w. Used by tests to capture output.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(level, slog.NewTextHandler(w, maskingOptions(level)))
}

func newLogger(level LogLevel, h slog.Handler) *Logger {
	return &Logger{Logger: slog.New(h), level: level, masker: globalMasker}
}

// maskingOptions installs a ReplaceAttr hook that runs every attribute through the global masker.
func maskingOptions(level LogLevel) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level.ToSlogLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if !globalMasker.IsEnabled() {
				return a
			}
			if a.Value.Kind() != slog.KindString {
				return a
			}
			masked := globalMasker.MaskValue(a.Key, a.Value.String())
			if s, ok := masked.(string); ok {
				return slog.String(a.Key, s)
			}
			return a
		},
	}
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

// EnableMasking toggles masking for this logger's masker.
func (l *Logger) EnableMasking(enabled bool) {
	if l.masker != nil {
		l.masker.SetEnabled(enabled)
	}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level, masker: l.masker}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithProcess returns a logger tagged with the orchestrated sub-process name.
func (l *Logger) WithProcess(process string) *Logger {
	return l.with("process", process)
}

// WithStore returns a logger with store context
func (l *Logger) WithStore(driver string) *Logger {
	return l.with("store", driver)
}

// WithRequest returns a logger with HTTP request context
func (l *Logger) WithRequest(method, url string) *Logger {
	return l.with("method", method, "url", url)
}

// Global default logger instance
var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	if logger == nil {
		return
	}
	defaultLogger = logger
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// LogError logs an error with context
func LogError(msg string, err error, attrs ...any) {
	args := append([]any{"error", err}, attrs...)
	defaultLogger.Error(msg, args...)
}

// LogInfo logs informational message
func LogInfo(msg string, attrs ...any) {
	defaultLogger.Info(msg, attrs...)
}

// LogDebug logs debug message
func LogDebug(msg string, attrs ...any) {
	defaultLogger.Debug(msg, attrs...)
}

// LogWarn logs warning message
func LogWarn(msg string, attrs ...any) {
	defaultLogger.Warn(msg, attrs...)
}
