package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/managemate/mmrt/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 30*time.Minute, cfg.Jobs.ConflictInterval)
	assert.Equal(t, time.Hour, cfg.Jobs.DigestInterval)
	assert.True(t, cfg.Jobs.DigestEnabled)
	assert.False(t, cfg.Auth.Required)
	assert.NoError(t, cfg.Validate())
}

func TestLoadLayers(t *testing.T) {
	path := writeFile(t, `
redisUrl: redis://cache:6379/1
httpAddr: 127.0.0.1:9000
log:
  level: debug
jobs:
  conflictInterval: 5m
  pageSize: 50
smtp:
  host: smtp.example.com
  from: noreply@example.com
`)
	t.Setenv("REDIS_URL", "redis://env:6379/2")
	t.Setenv("MMRT_JOBS_PAGE_SIZE", "75")
	t.Setenv("MMRT_SMTP_PORT", "2525")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis://env:6379/2", cfg.RedisURL)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.ConflictInterval)
	assert.Equal(t, time.Hour, cfg.Jobs.DigestInterval)
	assert.Equal(t, 75, cfg.Jobs.PageSize)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("MMRT_AUTH_REQUIRED", "true")
	t.Setenv("MMRT_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Auth.Required)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "jobs: [not a map"))
	assert.Error(t, err)

	t.Setenv("MMRT_JOBS_CONFLICT_INTERVAL", "soon")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "empty redis url", mutate: func(c *Config) { c.RedisURL = "" }, field: "RedisURL"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, field: "Level"},
		{name: "ping after pong", mutate: func(c *Config) { c.Gateway.PingPeriod = c.Gateway.PongWait }, field: "PingPeriod"},
		{name: "zero interval", mutate: func(c *Config) { c.Jobs.ConflictInterval = 0 }, field: "ConflictInterval"},
		{name: "backoff bounds", mutate: func(c *Config) { c.Bus.MaxBackoff = time.Millisecond }, field: "MaxBackoff"},
		{name: "zero buffer", mutate: func(c *Config) { c.Gateway.SendBuffer = 0 }, field: "SendBuffer"},
		{name: "probe timeout over interval", mutate: func(c *Config) { c.Health.Timeout = c.Health.Interval + time.Second }, field: "Health.Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDerivedSettings(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Log.JSON = true
	cfg.Bus.MaxReconnectAttempts = 3

	assert.Equal(t, log.WarnLevel, cfg.LogSettings().Level)
	assert.True(t, cfg.LogSettings().JSONOutput)
	assert.Equal(t, 3, cfg.BridgeConfig().MaxReconnectAttempts)
	assert.Equal(t, cfg.Gateway.PingPeriod, cfg.ServerConfig().PingPeriod)
	assert.Equal(t, cfg.Health.Retries, cfg.HealthSettings().Retries)
}
