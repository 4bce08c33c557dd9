// SPDX-License-Identifier: MIT
package log

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Fields carries structured context for WithFields.
type Fields = logrus.Fields

var levels = [...]struct {
	name string
	lr   logrus.Level
}{
	LevelDebug: {"DEBUG", logrus.DebugLevel},
	LevelInfo:  {"INFO", logrus.InfoLevel},
	LevelWarn:  {"WARN", logrus.WarnLevel},
	LevelError: {"ERROR", logrus.ErrorLevel},
	LevelFatal: {"FATAL", logrus.FatalLevel},
}

func (l LogLevel) String() string {
	if int(l) < len(levels) {
		return levels[l].name
	}
	return "UNKNOWN"
}

// ParseLevel converts a level name, case-insensitively. "warning" is
// accepted for LevelWarn. Unknown names return LevelInfo and false.
func ParseLevel(name string) (LogLevel, bool) {
	name = strings.ToUpper(name)
	if name == "WARNING" {
		name = "WARN"
	}
	for l, lv := range levels {
		if lv.name == name {
			return LogLevel(l), true
		}
	}
	return LevelInfo, false
}

func (l LogLevel) logrus() logrus.Level {
	if int(l) < len(levels) {
		return levels[l].lr
	}
	return logrus.InfoLevel
}

// --- Global Logger State ---

// logger is the process-wide logrus instance. Output goes to stderr with
// full timestamps so stdout stays free for the TUI.
var logger = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05.000000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the global logging level.
func SetLevel(level LogLevel) {
	logger.SetLevel(level.logrus())
}

// GetLevel returns the current global level. Trace and panic fold into
// debug and fatal.
func GetLevel() LogLevel {
	switch lr := logger.GetLevel(); {
	case lr >= logrus.DebugLevel:
		return LevelDebug
	case lr <= logrus.FatalLevel:
		return LevelFatal
	default:
		for l, lv := range levels {
			if lv.lr == lr {
				return LogLevel(l)
			}
		}
		return LevelInfo
	}
}

// SetOutput redirects log output, e.g. to a file while the TUI owns the terminal.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// IsDebug reports whether debug messages are currently emitted.
func IsDebug() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}

// WithFields returns an entry carrying structured context.
func WithFields(fields Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// Debugf, Infof, Warnf and Errorf log at their level on the global logger.
func Debugf(format string, v ...any) { logger.Debugf(format, v...) }
func Infof(format string, v ...any)  { logger.Infof(format, v...) }
func Warnf(format string, v ...any)  { logger.Warnf(format, v...) }
func Errorf(format string, v ...any) { logger.Errorf(format, v...) }

func Debug(v ...any) { logger.Debug(v...) }
func Info(v ...any)  { logger.Info(v...) }

// Fatal logs v and exits with status 1.
func Fatal(v ...any) { logger.Fatal(v...) }
