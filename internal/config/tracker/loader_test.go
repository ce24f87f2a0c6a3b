package tracker_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pricewatch-tracker", cfg.App.Name)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Sched.Interval)
	assert.Equal(t, 50, cfg.Sched.BatchSize)
	assert.Equal(t, 10, cfg.Sched.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Sched.BatchDelay)
	assert.Equal(t, 3, cfg.Alerts.MaxAttempts)
	assert.Equal(t, 7*24*time.Hour, cfg.Alerts.TTL)
	assert.Equal(t, []string{"localhost:9094"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.DB.QueryTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
sched:
  interval: 5m
  batch_size: 20
kafka:
  enable: false
fetch:
  fake: true
  selectors:
    - domain: shop.example
      css: ".amount"
`)
	t.Setenv("SCHED_CONCURRENCY", "4")
	t.Setenv("ALERTS_MAX_ATTEMPTS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Sched.Interval)
	assert.Equal(t, 20, cfg.Sched.BatchSize)
	assert.Equal(t, 4, cfg.Sched.Concurrency)
	assert.Equal(t, 5, cfg.Alerts.MaxAttempts)
	assert.False(t, cfg.Kafka.Enable)
	assert.True(t, cfg.Fetch.Fake)
	assert.Equal(t, []SelectorCfg{{Domain: "shop.example", CSS: ".amount"}}, cfg.Fetch.Selectors)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
sched:
  concurrency: 0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Storage.Driver(oneof)")
	assert.Contains(t, err.Error(), "Config.Sched.Concurrency(gt)")
}

func TestValidate_KafkaNeedsBrokers(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Kafka.Brokers = nil
	assert.ErrorContains(t, Validate(cfg), "Config.Kafka.Brokers(required_if)")

	cfg.Kafka.Enable = false
	assert.NoError(t, Validate(cfg))
}
