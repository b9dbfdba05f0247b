package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the embedsvc logging contract.
// Implementations should support standard log levels and be safe for concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// LogrusLogger adapts a logrus logger to the embedsvc logging contract.
type LogrusLogger struct {
	logger *logrus.Logger
}

// New creates a LogrusLogger writing text records to out at the given level.
// An empty level selects INFO.
func New(out io.Writer, level string) (*LogrusLogger, error) {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	return &LogrusLogger{logger: l}, nil
}

// Levels lists the accepted level names. Matching is case-insensitive.
var Levels = []string{"DEBUG", "INFO", "WARN", "ERROR"}

// ParseLevel maps a name from Levels (any case) to a logrus level.
// An empty name selects INFO.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "INFO":
		return logrus.InfoLevel, nil
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "WARN":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
}

// SetLevel changes the minimum level that is written.
func (l *LogrusLogger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.logger.SetLevel(lvl)
	return nil
}

func (l *LogrusLogger) Info(msg string, args ...any) {
	l.logger.Infof(msg, args...)
}

func (l *LogrusLogger) Warn(msg string, args ...any) {
	l.logger.Warnf(msg, args...)
}

func (l *LogrusLogger) Error(msg string, args ...any) {
	l.logger.Errorf(msg, args...)
}

func (l *LogrusLogger) Debug(msg string, args ...any) {
	l.logger.Debugf(msg, args...)
}

// Discard returns a Logger that drops every record. Useful in tests.
func Discard() Logger {
	l, _ := New(io.Discard, "ERROR")
	return l
}

func newDefault() *LogrusLogger {
	l, _ := New(os.Stdout, "INFO")
	return l
}

// Default provides a global default logger instance writing to stdout.
var Default Logger = newDefault()
