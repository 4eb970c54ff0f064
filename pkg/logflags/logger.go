package logflags

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used by the debugger and native layers.
// Loggers are usually enriched with a "pid" or "session" field once the
// value is known.
type Logger interface {
	WithField(key string, value interface{}) Logger

	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LoggerFactory builds the Logger of a layer. fields holds the "layer"
// field, out is nil unless --log-dest was given.
type LoggerFactory func(level logrus.Level, fields Fields, out io.Writer) Logger

var loggerFactory LoggerFactory

// SetLoggerFactory replaces the logrus backed default for every Logger
// created afterwards.
func SetLoggerFactory(lf LoggerFactory) {
	loggerFactory = lf
}

// Fields are key/value pairs attached to every entry of a Logger.
type Fields map[string]interface{}

type logrusLogger struct {
	*logrus.Entry
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{l.Entry.WithField(key, value)}
}
