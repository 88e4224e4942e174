// Package logging provides structured logging for likevault.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// ParseLevel maps a config string onto a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) logrus() logrus.Level {
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

// Options configures the global logger.
type Options struct {
	Level  LogLevel
	Format string // "json" (default) or "text"

	// File enables rotated file output instead of Out.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	Out io.Writer
}

// Logger provides structured logging backed by logrus.
type Logger struct {
	entry    *logrus.Logger
	minLevel LogLevel
	closer   io.Closer
}

var (
	// global logger instance
	global *Logger
	mu     sync.Mutex
)

// New builds a Logger from options without touching the global instance.
func New(opts Options) *Logger {
	l := logrus.New()

	out := opts.Out
	var closer io.Closer
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out = rotator
		closer = rotator
	}
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)

	if strings.EqualFold(opts.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	}

	level := opts.Level
	if level == "" {
		level = LevelInfo
	}
	l.SetLevel(level.logrus())

	return &Logger{entry: l, minLevel: level, closer: closer}
}

// Init replaces the global logger.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	if global != nil && global.closer != nil {
		global.closer.Close()
	}
	global = New(opts)
}

// Get returns the global logger instance.
func Get() *Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = New(Options{Out: os.Stdout, Level: LevelInfo})
	}
	return global
}

// Close flushes and closes a rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if global == nil || global.closer == nil {
		return nil
	}
	return global.closer.Close()
}

// Level returns the minimum level this logger emits.
func (l *Logger) Level() LogLevel {
	return l.minLevel
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.with(nil, context...).Debug(message)
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.with(nil, context...).Info(message)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.with(nil, context...).Warn(message)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	l.with(err, context...).Error(message)
}

// with merges context maps into a single logrus entry.
func (l *Logger) with(err error, context ...map[string]interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for _, c := range context {
		for k, v := range c {
			fields[k] = v
		}
	}
	entry := l.entry.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	return entry
}

// Convenience functions using global logger

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}
