package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	logger = newLogger("info")
}

// Init initializes the global structured logger at the given level.
func Init(level string) {
	logger = newLogger(level)
}

func newLogger(level string) zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}
	return zerolog.New(writer).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger instance.
func Logger() zerolog.Logger {
	return logger
}

// Debug logs a debug message with alternating key/value fields.
func Debug(msg string, args ...any) {
	emit(logger.Debug(), msg, args)
}

// Info logs an info message with alternating key/value fields.
func Info(msg string, args ...any) {
	emit(logger.Info(), msg, args)
}

// Warn logs a warning message with alternating key/value fields.
func Warn(msg string, args ...any) {
	emit(logger.Warn(), msg, args)
}

// Error logs an error message with alternating key/value fields.
func Error(msg string, args ...any) {
	emit(logger.Error(), msg, args)
}

func emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
