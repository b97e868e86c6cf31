// Package logger is the diagnostics sink shared by every dittocheck package.
//
// The API mirrors a minimal levelled printf logger (Debug/Info/Warn/Error)
// while delegating formatting and output to logrus, so the same call sites can
// emit either human-readable text or JSON lines.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var std = newStdLogger()

func newStdLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel sets the minimum level. Unknown values are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		std.SetLevel(LevelDebug.logrusLevel())
	case "INFO":
		std.SetLevel(LevelInfo.logrusLevel())
	case "WARN":
		std.SetLevel(LevelWarn.logrusLevel())
	case "ERROR":
		std.SetLevel(LevelError.logrusLevel())
	}
}

// SetFormat selects "text" or "json" output.
func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "":
		std.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "json":
		std.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput directs log output to "stdout", "stderr" or a file path (appended).
func SetOutput(output string) error {
	switch strings.ToLower(output) {
	case "stdout", "":
		std.SetOutput(os.Stdout)
	case "stderr":
		std.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		std.SetOutput(f)
	}
	return nil
}

// SetWriter replaces the output writer. Mostly useful in tests.
func SetWriter(w io.Writer) {
	std.SetOutput(w)
}

func Debug(format string, v ...any) {
	std.Debugf(format, v...)
}

func Info(format string, v ...any) {
	std.Infof(format, v...)
}

func Warn(format string, v ...any) {
	std.Warnf(format, v...)
}

func Error(format string, v ...any) {
	std.Errorf(format, v...)
}

// Entry is a log line builder carrying structured fields.
type Entry struct {
	e *logrus.Entry
}

// WithPath returns an Entry tagged with the filesystem path under inspection.
func WithPath(path string) Entry {
	return Entry{e: std.WithField("path", path)}
}

// WithField adds another structured field to the entry.
func (e Entry) WithField(key string, value any) Entry {
	return Entry{e: e.e.WithField(key, value)}
}

func (e Entry) Debug(format string, v ...any) {
	e.e.Debugf(format, v...)
}

func (e Entry) Info(format string, v ...any) {
	e.e.Infof(format, v...)
}

func (e Entry) Warn(format string, v ...any) {
	e.e.Warnf(format, v...)
}

func (e Entry) Error(format string, v ...any) {
	e.e.Errorf(format, v...)
}
