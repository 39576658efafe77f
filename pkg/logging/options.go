package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	// FormatText renders entries as key=value lines.
	FormatText = "text"
	// FormatJSON renders entries as JSON objects.
	FormatJSON = "json"

	defaultMaxSizeMB  = 100
	defaultMaxBackups = 20
)

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string // empty disables file output
	MaxSizeMB  int    // 0 uses 100MB
	MaxBackups int    // 0 uses 20
	MaxAgeDays int    // 0 keeps rotated files forever
	Compress   bool
}

// Options configures a logger built by New.
type Options struct {
	Level   string // trace, debug, info, warn or error; empty means info
	Format  string // text or json; empty means text
	Console bool   // write to stdout
	File    FileOptions

	// Writer replaces stdout as the console destination when set.
	Writer io.Writer
}

// DefaultOptions returns options for an info-level text logger on the console.
func DefaultOptions() Options {
	return Options{
		Level:   "info",
		Format:  FormatText,
		Console: true,
		File: FileOptions{
			MaxSizeMB:  defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
		},
	}
}

// Validate checks the options for values New cannot honour.
func (o *Options) Validate() error {
	if o.Level != "" {
		if _, err := logrus.ParseLevel(o.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
	}

	switch o.Format {
	case "", FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q (want %q or %q)", o.Format, FormatText, FormatJSON)
	}

	if o.File.Path != "" {
		if info, err := os.Stat(o.File.Path); err == nil && info.IsDir() {
			return fmt.Errorf("log file path %s is a directory", o.File.Path)
		}
		if info, err := os.Stat(filepath.Dir(o.File.Path)); err == nil && !info.IsDir() {
			return fmt.Errorf("log directory %s is a file", filepath.Dir(o.File.Path))
		}
	}

	if o.File.MaxSizeMB < 0 {
		return fmt.Errorf("MaxSizeMB must be >= 0: %d", o.File.MaxSizeMB)
	}
	if o.File.MaxBackups < 0 {
		return fmt.Errorf("MaxBackups must be >= 0: %d", o.File.MaxBackups)
	}
	if o.File.MaxAgeDays < 0 {
		return fmt.Errorf("MaxAgeDays must be >= 0: %d", o.File.MaxAgeDays)
	}
	return nil
}
