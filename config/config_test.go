package config_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/config"
	"github.com/MasterOfBinary/malbatch/dataset"
)

const fileConfig = `
datasets:
  bodmas_dir: /file/samples
batch:
  size: 100
  max_batches: 3
executor:
  mode: process
  workers: 8
log:
  level: warn
  format: json
cache:
  redis_addr: localhost:6379
  ttl: 24h
metrics:
  addr: ":9090"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "malbatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	t.Setenv(dataset.BodmasDirEnv, "")
	t.Setenv(config.LogLevelEnv, "")

	cfg, err := config.Load(writeConfig(t, fileConfig))
	require.NoError(t, err)

	assert.Equal(t, "/file/samples", cfg.Datasets.BodmasDir)
	assert.Equal(t, batch.ConfigValues{BatchSize: 100, MaxBatches: 3}, cfg.Batch)
	assert.Equal(t, config.ExecutorConfig{Mode: config.ModeProcess, Workers: 8}, cfg.Executor)
	assert.Equal(t, config.LogConfig{Level: "warn", Format: config.FormatJSON}, cfg.Log)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "malbatch:", cfg.Cache.Prefix, "default kept")
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	t.Setenv(dataset.BodmasDirEnv, "/env/samples")
	t.Setenv(config.LogLevelEnv, "debug")

	cfg, err := config.Load(writeConfig(t, fileConfig))
	require.NoError(t, err)

	assert.Equal(t, "/env/samples", cfg.Datasets.BodmasDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Batch.BatchSize)
}

func TestLoad_DefaultPathOptional(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(dataset.BodmasDirEnv, "")
	t.Setenv(config.LogLevelEnv, "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	require.NoError(t, os.WriteFile(config.DefaultPath, []byte("batch:\n  size: 7\n"), 0o600))
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Batch.BatchSize)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(config.LogLevelEnv, "")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "explicit path must exist: %v", err)

	tests := map[string]string{
		"syntax":     "batch: [",
		"batch size": "batch:\n  size: -1\n",
		"mode":       "executor:\n  mode: threads\n",
		"workers":    "executor:\n  workers: -2\n",
		"level":      "log:\n  level: loud\n",
		"format":     "log:\n  format: xml\n",
		"ttl":        "cache:\n  ttl: -1s\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestDatasetRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Datasets.BodmasDir = "/data/samples/"
	dir, err := cfg.DatasetRoot()()
	require.NoError(t, err)
	assert.Equal(t, "/data/samples", dir)

	t.Setenv(dataset.BodmasDirEnv, "")
	cfg.Datasets.BodmasDir = ""
	_, err = cfg.DatasetRoot()()
	assert.ErrorIs(t, err, dataset.ErrNotConfigured)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.NewLogger("warn", config.FormatJSON, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "n", 1)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "WARN", line["level"])

	buf.Reset()
	logger, err = config.NewLogger("DEBUG", config.FormatText, &buf)
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "level=DEBUG msg=visible")

	_, err = config.NewLogger("loud", config.FormatText, &buf)
	assert.Error(t, err)
	_, err = config.NewLogger("info", "xml", &buf)
	assert.Error(t, err)
}
