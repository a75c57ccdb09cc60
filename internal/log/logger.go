// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var currentLevel atomic.Uint32

// logger shows date and time with microseconds; the sample and frame
// timestamps it is compared against are in milliseconds.
var logger atomic.Pointer[stdlog.Logger]

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	logger.Store(stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds))
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// DebugEnabled reports whether debug messages are logged. Hot paths check it
// before building log arguments.
func DebugEnabled() bool {
	return shouldLog(LevelDebug)
}

func output(level LogLevel, component, msg string) {
	if component != "" {
		msg = component + ": " + msg
	}
	// Pad to keep messages aligned after the five-letter levels.
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	logger.Load().Printf("[%s]%s%s", level, pad, msg)
}

// Logger prefixes every message with a component name.
type Logger struct {
	component string
}

// Named returns a Logger for the given component.
func Named(component string) Logger {
	return Logger{component: component}
}

// Debugf logs a formatted debug message if the level is appropriate.
func (l Logger) Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		output(LevelDebug, l.component, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func (l Logger) Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		output(LevelInfo, l.component, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func (l Logger) Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		output(LevelWarn, l.component, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func (l Logger) Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		output(LevelError, l.component, fmt.Sprintf(format, v...))
	}
}

// --- Package-level functions (no component) ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { Named("").Debugf(format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { Named("").Infof(format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { Named("").Warnf(format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { Named("").Errorf(format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	output(LevelFatal, "", fmt.Sprintf(format, v...))
	os.Exit(1)
}
