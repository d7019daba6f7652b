package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
	level  LogLevel
}

// NewZerolog returns a JSON logger writing to w. A nil writer means stdout.
func NewZerolog(w io.Writer, level LogLevel) Logger {
	if w == nil {
		w = os.Stdout
	}
	zl := zerolog.New(w).With().
		Timestamp().
		Str("service", "apnshub").
		Logger()
	return FromZerolog(zl, level)
}

// FromZerolog wraps an already configured zerolog.Logger.
func FromZerolog(zl zerolog.Logger, level LogLevel) Logger {
	return &ZerologLogger{logger: zl, level: level}
}

func (z *ZerologLogger) LogMode(level LogLevel) Logger {
	return &ZerologLogger{logger: z.logger, level: level}
}

func (z *ZerologLogger) Info(msg string, args ...any) {
	if z.level >= Info {
		z.emit(z.logger.Info(), msg, args)
	}
}

func (z *ZerologLogger) Warn(msg string, args ...any) {
	if z.level >= Warn {
		z.emit(z.logger.Warn(), msg, args)
	}
}

func (z *ZerologLogger) Error(msg string, args ...any) {
	if z.level >= Error {
		z.emit(z.logger.Error(), msg, args)
	}
}

func (z *ZerologLogger) Debug(msg string, args ...any) {
	if z.level >= Debug {
		z.emit(z.logger.Debug(), msg, args)
	}
}

func (z *ZerologLogger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			ev = ev.Str(key, "(no value)")
			break
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
