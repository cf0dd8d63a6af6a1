package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsight-dev/gridsight/internal/cli/client"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GRIDSIGHT_TIMEOUT", "GRIDSIGHT_RATE_LIMIT", "GRIDSIGHT_SESSION_DRIVER", "GRIDSIGHT_SESSION_DIR",
		"GRIDSIGHT_REDIS_ADDRESS", "GRIDSIGHT_REDIS_PASSWORD", "GRIDSIGHT_REDIS_DB", "GRIDSIGHT_REDIS_PREFIX",
		"GRIDSIGHT_LOG_LEVEL", "GRIDSIGHT_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, client.DefaultTimeout, cfg.HTTP.Timeout)
	assert.Zero(t, cfg.HTTP.RateLimit)
	assert.Equal(t, session.DriverKeyring, cfg.Session.Driver)
	assert.Contains(t, cfg.Session.FileDir, ".config/gridsight/sessions")
	assert.Equal(t, "localhost:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRIDSIGHT_TIMEOUT", "45s")
	t.Setenv("GRIDSIGHT_RATE_LIMIT", "2.5")
	t.Setenv("GRIDSIGHT_SESSION_DRIVER", "redis")
	t.Setenv("GRIDSIGHT_SESSION_DIR", "/tmp/sessions")
	t.Setenv("GRIDSIGHT_REDIS_ADDRESS", "redis:6380")
	t.Setenv("GRIDSIGHT_REDIS_DB", "2")
	t.Setenv("GRIDSIGHT_REDIS_PREFIX", "ci:")
	t.Setenv("GRIDSIGHT_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimit)
	assert.Equal(t, session.DriverRedis, cfg.Session.Driver)
	assert.Equal(t, "/tmp/sessions", cfg.Session.FileDir)
	assert.Equal(t, "redis:6380", cfg.Session.Redis.Addr)
	assert.Equal(t, 2, cfg.Session.Redis.DB)
	assert.Equal(t, "ci:", cfg.Session.Redis.Prefix)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"GRIDSIGHT_TIMEOUT", "soon"},
		{"GRIDSIGHT_TIMEOUT", "-5s"},
		{"GRIDSIGHT_RATE_LIMIT", "fast"},
		{"GRIDSIGHT_REDIS_DB", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
