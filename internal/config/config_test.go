package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holysaw/holysaw/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := config.Default()
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, 24*time.Hour, c.Server.ResultTTL)
	assert.Equal(t, 600000.0, c.Server.MaxStopMs)
	assert.Equal(t, "full", c.Render.TraceMode)
	assert.True(t, c.Render.PCM16, "wav files are 16-bit PCM unless asked otherwise")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: bolt\n  boltPath: /tmp/x.db\nserver:\n  resultTTL: 1m\n"), 0o644))
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", c.Store.Backend)
	assert.Equal(t, "/tmp/x.db", c.Store.BoltPath)
	assert.Equal(t, time.Minute, c.Server.ResultTTL)
	assert.Equal(t, ":8080", c.Server.Addr, "unset keys keep their defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backnd: bolt\n"), 0o644))
	_, err = config.Load(path)
	assert.Error(t, err, "unknown keys are rejected")
}

func TestApplyEnv(t *testing.T) {
	c := config.Default()
	err := config.ApplyEnv(&c, []string{
		"HOLYSAW_STORE_BACKEND=redis",
		"HOLYSAW_STORE_REDIS_DB=3",
		"HOLYSAW_SERVER_MAXSTOPMS=1500.5",
		"HOLYSAW_SERVER_RESULTTTL=90s",
		"HOLYSAW_RENDER_PCM16=false",
		"PATH=/bin",
		"HOLYSAW_IGNORED",
	})
	require.NoError(t, err)
	assert.Equal(t, "redis", c.Store.Backend)
	assert.Equal(t, 3, c.Store.RedisDB)
	assert.Equal(t, 1500.5, c.Server.MaxStopMs)
	assert.Equal(t, 90*time.Second, c.Server.ResultTTL)
	assert.False(t, c.Render.PCM16)
	assert.Equal(t, "info", c.Log.Level)

	assert.Error(t, config.ApplyEnv(&c, []string{"HOLYSAW_STORE_NOPE=1"}))
	assert.Error(t, config.ApplyEnv(&c, []string{"HOLYSAW_STORE_REDISDB=many"}))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("HOLYSAW_LOG_LEVEL", "debug")
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
}
