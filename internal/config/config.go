// Package config loads the asyncsched daemon configuration.
//
// Values are layered from lowest to highest priority: built-in defaults, a
// JSON or YAML file, then ASYNCSCHED_ environment variables. Nested keys in
// the environment are separated by a double underscore, so
// ASYNCSCHED_SCHEDULER__WORKERS=8 sets scheduler.workers.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
	"github.com/vnykmshr/asyncsched/pkg/logging"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/scheduler"
)

// EnvPrefix marks the environment variables that override file values.
const EnvPrefix = "ASYNCSCHED_"

// Config is the daemon configuration.
type Config struct {
	Scheduler SchedulerConfig `koanf:"scheduler" json:"scheduler"`
	Log       LogConfig       `koanf:"log" json:"log"`
	Metrics   MetricsConfig   `koanf:"metrics" json:"metrics"`

	// Heartbeat is the period of the daemon's self-check task. Zero disables it.
	Heartbeat time.Duration `koanf:"heartbeat" json:"heartbeat" validate:"gte=0"`
}

type SchedulerConfig struct {
	Name              string        `koanf:"name" json:"name" validate:"required"`
	Workers           int           `koanf:"workers" json:"workers" validate:"gt=0"`
	SlowTaskThreshold time.Duration `koanf:"slow_task_threshold" json:"slow_task_threshold" validate:"gte=0"`
}

type LogConfig struct {
	Level   string        `koanf:"level" json:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format  string        `koanf:"format" json:"format" validate:"omitempty,oneof=text json"`
	Console bool          `koanf:"console" json:"console"`
	File    LogFileConfig `koanf:"file" json:"file"`
}

type LogFileConfig struct {
	Path       string `koanf:"path" json:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb" json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" json:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress" json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Addr    string `koanf:"addr" json:"addr" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when no file or environment
// variable says otherwise.
func Default() Config {
	logOpts := logging.DefaultOptions()
	return Config{
		Scheduler: SchedulerConfig{
			Name:              scheduler.DefaultName,
			Workers:           scheduler.DefaultWorkerCount,
			SlowTaskThreshold: decorator.DefaultSlowTaskThreshold,
		},
		Log: LogConfig{
			Level:   logOpts.Level,
			Format:  logOpts.Format,
			Console: logOpts.Console,
			File: LogFileConfig{
				MaxSizeMB:  logOpts.File.MaxSizeMB,
				MaxBackups: logOpts.File.MaxBackups,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Heartbeat: 30 * time.Second,
	}
}

// Load builds the configuration from the defaults, the file at path and the
// environment. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load default configuration: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("configuration file not found: %s: %w", path, err)
			}
			return nil, fmt.Errorf("load configuration file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ASYNCSCHED_LOG__FILE__PATH to log.file.path.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML()
	default:
		return json.Parser()
	}
}

// Validate checks the struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := checkStruct(newValidator(), c); err != nil {
		return err
	}
	logOpts := c.LoggingOptions()
	if err := logOpts.Validate(); err != nil {
		return fmt.Errorf("%w: log: %v", aserrors.ErrInvalidConfiguration, err)
	}
	return nil
}

// ToSchedulerConfig converts the scheduler section into a scheduler.Config.
func (c *Config) ToSchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Name:              c.Scheduler.Name,
		WorkerCount:       c.Scheduler.Workers,
		SlowTaskThreshold: c.Scheduler.SlowTaskThreshold,
	}
}

// LoggingOptions converts the log section into logging.Options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		Console: c.Log.Console,
		File: logging.FileOptions{
			Path:       c.Log.File.Path,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxBackups: c.Log.File.MaxBackups,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			Compress:   c.Log.File.Compress,
		},
	}
}
