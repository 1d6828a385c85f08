package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes to stdout and, when a directory is configured, to a rotating
// log file.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New builds a logger. An empty dir logs to stdout only.
func New(dir, level, format string) (*Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := logrus.New()
	l.SetLevel(lvl)
	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	logger := &Logger{Logger: l}
	if dir == "" {
		l.SetOutput(os.Stdout)
		return logger, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs folder failed: %w", err)
	}
	logger.file = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "alert-router.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	}
	l.SetOutput(io.MultiWriter(os.Stdout, logger.file))
	return logger, nil
}

// Component returns an entry tagged with the component name.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
