// Package config loads the malbatch configuration from a YAML file and the
// environment.
//
// Values are resolved in order: defaults, then the file, then environment
// variables. Command line flags are applied by the caller last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
)

// DefaultPath is the file Load reads when no path is given. It is optional.
const DefaultPath = "malbatch.yaml"

// LogLevelEnv overrides the log level.
const LogLevelEnv = "MALBATCH_LOG_LEVEL"

// Executor modes.
const (
	ModeSequential = "sequential"
	ModePool       = "pool"
	ModeProcess    = "process"
)

// Config is the complete configuration.
type Config struct {
	Datasets DatasetsConfig     `yaml:"datasets"`
	Batch    batch.ConfigValues `yaml:"batch"`
	Executor ExecutorConfig     `yaml:"executor"`
	Log      LogConfig          `yaml:"log"`
	Cache    CacheConfig        `yaml:"cache"`
	Metrics  MetricsConfig      `yaml:"metrics"`
}

// DatasetsConfig locates the datasets on disk.
type DatasetsConfig struct {
	// BodmasDir is the BODMAS sample directory. Overridden by
	// BODMAS_DIR_SAMPLES.
	BodmasDir string `yaml:"bodmas_dir"`
}

// ExecutorConfig selects how batches are processed.
type ExecutorConfig struct {
	Mode    string `yaml:"mode"`
	Workers int    `yaml:"workers"`
}

// LogConfig configures the logger built by NewLogger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CacheConfig configures the Redis result cache. The cache is disabled
// when RedisAddr is empty.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// MetricsConfig configures the Prometheus endpoint. It is disabled when
// Addr is empty.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Batch: batch.ConfigValues{
			BatchSize: batch.DefaultBatchSize,
		},
		Executor: ExecutorConfig{
			Mode: ModeSequential,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Cache: CacheConfig{
			Prefix: "malbatch:",
		},
	}
}

// Load reads the configuration file at path over the defaults and applies
// the environment. If path is empty, DefaultPath is read if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values with the environment variables lookup finds.
func (c *Config) ApplyEnv(lookup func(key string) (string, bool)) {
	if v, ok := lookup(dataset.BodmasDirEnv); ok && strings.TrimSpace(v) != "" {
		c.Datasets.BodmasDir = v
	}
	if v, ok := lookup(LogLevelEnv); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("invalid config: batch: %w", err)
	}

	switch c.Executor.Mode {
	case ModeSequential, ModePool, ModeProcess:
	default:
		return fmt.Errorf("invalid config: executor.mode must be one of %s, %s or %s, got %q",
			ModeSequential, ModePool, ModeProcess, c.Executor.Mode)
	}
	if c.Executor.Workers < 0 {
		return fmt.Errorf("invalid config: executor.workers must be non-negative, got %d", c.Executor.Workers)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid config: log.level: %w", err)
	}
	switch c.Log.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid config: log.format must be %s or %s, got %q", FormatText, FormatJSON, c.Log.Format)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("invalid config: cache.ttl must be non-negative, got %s", c.Cache.TTL)
	}
	return nil
}

// DatasetRoot returns the resolver of the BODMAS base directory. Without a
// configured directory, the environment is consulted on every call.
func (c *Config) DatasetRoot() dataset.Resolver {
	if c.Datasets.BodmasDir != "" {
		return dataset.StaticDir(c.Datasets.BodmasDir)
	}
	return dataset.EnvDir(dataset.BodmasDirEnv)
}
