package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"signal-hub/src/models"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	base  *logrus.Logger
	entry *logrus.Entry
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. A nil config yields info level JSON on stdout.
func NewLogger(config *models.MConfig, name string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(jsonFormatter())

	l := &Logger{
		name:  name,
		base:  base,
		entry: base.WithField("component", name),
	}

	if config != nil {
		if err := l.Configure(config.LogLevel, config.LogFormat, config.LogOutput, config.LogMaxAge); err != nil {
			l.Warning("Logger configuration rejected, using defaults: %v", err)
		}
	}
	return l
}

// -----------------------------------------------------------------------------

// Named returns a logger sharing the same sink with a different component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:  name,
		base:  l.base,
		entry: l.base.WithField("component", name),
	}
}

// -----------------------------------------------------------------------------

// Configure sets level, format and output. LOG_LEVEL in the environment wins
// over the level argument.
func (l *Logger) Configure(level string, format string, output string, maxAge int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s'", level)
	}
	l.base.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json", "":
		l.base.SetFormatter(jsonFormatter())
	case "text":
		l.base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format '%s'", format)
	}

	switch output {
	case "stdout", "":
		l.base.SetOutput(os.Stdout)
	case "stderr":
		l.base.SetOutput(os.Stderr)
	default:
		if maxAge > 0 {
			l.base.SetOutput(&lumberjack.Logger{
				Filename: output,
				MaxAge:   maxAge,
				MaxSize:  100,
				Compress: true,
			})
		} else {
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				return fmt.Errorf("failed to open log file '%s': %w", output, err)
			}
			l.base.SetOutput(file)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// SetOutput redirects every logger sharing this sink.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
	os.Exit(1)
}

// -----------------------------------------------------------------------------

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	}
}
