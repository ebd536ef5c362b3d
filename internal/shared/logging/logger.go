package logging

import (
	"fmt"
	"reflect"
)

// Logger is the printf-style contract every package logs through. The file
// backend lives in file.go and is configured by the command layer.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop discards everything.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or a typed nil pointer.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger, or Nop when it is nil.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// NewComponentLogger returns the service file logger for component.
func NewComponentLogger(component string) Logger {
	return newCategorizedLogger(CategoryService, component)
}

// NewLLMLogger returns a logger writing to retouch-llm.log, where
// decision-maker traffic is kept apart from session logs.
func NewLLMLogger(component string) Logger {
	return newCategorizedLogger(CategoryLLM, component)
}

// ForSession tags every line of logger with a session id. File loggers get
// the structured [session=...] field; anything else gets a text prefix.
func ForSession(logger Logger, sessionID string) Logger {
	if IsNil(logger) {
		return Nop()
	}
	if sessionID == "" {
		return logger
	}
	if fl, ok := logger.(*FileLogger); ok {
		return fl.WithSession(sessionID)
	}
	return &sessionLogger{inner: logger, prefix: fmt.Sprintf("[%s] ", sessionID)}
}

type sessionLogger struct {
	inner  Logger
	prefix string
}

func (l *sessionLogger) Debug(format string, args ...any) { l.inner.Debug(l.prefix+format, args...) }
func (l *sessionLogger) Info(format string, args ...any)  { l.inner.Info(l.prefix+format, args...) }
func (l *sessionLogger) Warn(format string, args ...any)  { l.inner.Warn(l.prefix+format, args...) }
func (l *sessionLogger) Error(format string, args ...any) { l.inner.Error(l.prefix+format, args...) }
