package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogSession bundles the process logger with the optional log file it
// writes to.
type LogSession struct {
	*logrus.Logger
	file *os.File
}

// InitLogger builds the process logger. Output always goes to stdout; when
// logFilePath is set it is also appended to that file.
func InitLogger(level, logFilePath string) (*LogSession, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	writers := []io.Writer{os.Stdout}
	var f *os.File
	if logFilePath != "" {
		f, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", logFilePath, err)
		}
		writers = append(writers, f)
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	return &LogSession{Logger: logger, file: f}, nil
}

// Close closes the log file, if any.
func (s *LogSession) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// DiscardLogger returns an entry that drops everything. Components fall back
// to it when no logger is injected.
func DiscardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
