package log

import (
	stdlog "log"
	"strings"
)

// stdWriter routes stdlib log output into a Logger at a fixed level.
type stdWriter struct {
	logger Logger
	level  Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// RedirectStdLog sends the standard library's default logger output (used by
// dependencies such as Pebble) through the provided Logger.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdWriter{logger: logger.WithComponent("stdlog"), level: InfoLevel})
}

// ToStdLogger returns a *log.Logger that writes through the provided Logger
// at the given level, for libraries that require the stdlib interface.
func ToStdLogger(logger Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdWriter{logger: logger, level: level}, "", 0)
}
