// Package logging builds the logrus loggers used across asyncsched.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a logger from opts. The returned Closer releases the log file
// and must be closed when the logger is no longer used.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	if err := SetLevel(logger, opts.Level); err != nil {
		return nil, nil, err
	}
	logger.SetFormatter(newFormatter(opts.Format))

	var writers []io.Writer
	var closers []io.Closer

	if opts.Console {
		if opts.Writer != nil {
			writers = append(writers, opts.Writer)
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	if opts.File.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}

		maxSize := opts.File.MaxSizeMB
		if maxSize == 0 {
			maxSize = defaultMaxSizeMB
		}
		maxBackups := opts.File.MaxBackups
		if maxBackups == 0 {
			maxBackups = defaultMaxBackups
		}

		file := &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
			LocalTime:  true,
		}
		writers = append(writers, file)
		closers = append(closers, file)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	c := &closer{closers: closers}
	logger.ExitFunc = func(code int) {
		_ = c.Close()
		os.Exit(code)
	}
	return logger, c, nil
}

// SetLevel parses level and applies it to logger. An empty level means info.
func SetLevel(logger *logrus.Logger, level string) error {
	if level == "" {
		logger.SetLevel(logrus.InfoLevel)
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	return nil
}

func newFormatter(format string) logrus.Formatter {
	if format == FormatJSON {
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
}

// closer releases every file writer once.
type closer struct {
	closers []io.Closer
	closed  atomic.Bool
}

func (c *closer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
