package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileLogger returns a logrus logger writing JSON lines to both stdout and the
// given file. The caller owns the returned file handle.
func FileLogger(level logrus.Level, logPath string) (*os.File, *logrus.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, logger, nil
}

// ConsoleLogger returns a plain stderr logger for CLI tools.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	return logger
}
