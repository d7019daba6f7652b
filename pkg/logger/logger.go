// Package logger provides the leveled, key/value logging interface used across apnshub.
// The interface keeps GORM-style level switching so callers can plug in any backend;
// a standard-library writer and a zerolog backend ship with the package.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// Silent suppresses all log output.
	Silent LogLevel = iota + 1
	// Error only logs error messages.
	Error
	// Warn logs warnings and errors.
	Warn
	// Info logs informational messages, warnings, and errors.
	Info
	// Debug logs all messages including debug information.
	Debug
)

// String returns the lowercase name of the level.
func (l LogLevel) String() string {
	switch l {
	case Silent:
		return "silent"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names fall back to Warn.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent", "off":
		return Silent
	case "error":
		return Error
	case "info":
		return Info
	case "debug":
		return Debug
	default:
		return Warn
	}
}

// Logger is the interface that wraps the basic logging methods.
// Args are alternating key/value pairs.
type Logger interface {
	// LogMode sets the log level and returns a new logger instance.
	LogMode(level LogLevel) Logger
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// StandardLogger writes through the standard log package.
type StandardLogger struct {
	logger *log.Logger
	level  LogLevel
	prefix string
}

// NewStandardLogger creates a new logger with the given writer and configuration.
func NewStandardLogger(writer *log.Logger, level LogLevel, prefix string) Logger {
	return &StandardLogger{
		logger: writer,
		level:  level,
		prefix: prefix,
	}
}

// LogMode sets the log level and returns a new logger instance.
func (l *StandardLogger) LogMode(level LogLevel) Logger {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

func (l *StandardLogger) Info(msg string, args ...any)  { l.print(Info, "INFO", msg, args) }
func (l *StandardLogger) Warn(msg string, args ...any)  { l.print(Warn, "WARN", msg, args) }
func (l *StandardLogger) Error(msg string, args ...any) { l.print(Error, "ERROR", msg, args) }
func (l *StandardLogger) Debug(msg string, args ...any) { l.print(Debug, "DEBUG", msg, args) }

func (l *StandardLogger) print(level LogLevel, tag, msg string, args []any) {
	if l.level < level {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", l.prefix, tag, msg)
	for i := 0; i < len(args); i += 2 {
		var val any = "(no value)"
		if i+1 < len(args) {
			val = args[i+1]
		}
		fmt.Fprintf(&b, " %v=%v", args[i], val)
	}
	l.logger.Print(b.String())
}

type discardLogger struct{}

func (d discardLogger) LogMode(LogLevel) Logger { return d }
func (discardLogger) Info(string, ...any)       {}
func (discardLogger) Warn(string, ...any)       {}
func (discardLogger) Error(string, ...any)      {}
func (discardLogger) Debug(string, ...any)      {}

// Discard is a logger that discards all output.
var Discard Logger = discardLogger{}

// New returns a default logger that writes to stdout at Warn level.
func New() Logger {
	return NewStandardLogger(log.New(os.Stdout, "", log.LstdFlags), Warn, "[apnshub]")
}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
