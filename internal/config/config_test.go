package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) string {
	return "-env=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{noEnvFile(t)})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseEnvOverridesDefaults(t *testing.T) {
	t.Setenv("FLOWSYNC_ADDR", ":9000")
	t.Setenv("STORE_TYPE", StoreRedis)
	t.Setenv("REDIS_DB", "3")
	t.Setenv("START_DISCONNECTED", "true")

	cfg, err := Parse([]string{noEnvFile(t)})
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, StoreRedis, cfg.StoreType)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.StartDisconnected)
}

func TestParseFlagsOverrideEnv(t *testing.T) {
	t.Setenv("FLOWSYNC_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Parse([]string{noEnvFile(t), "-addr", ":7000"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParseLoadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KEY_PREFIX=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("KEY_PREFIX") })

	cfg, err := Parse([]string{"-env", path})
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.KeyPrefix)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]string{noEnvFile(t), "-store", "sqlite"})
	assert.Error(t, err)

	t.Setenv("REDIS_DB", "zero")
	_, err = Parse([]string{noEnvFile(t)})
	assert.Error(t, err)
}
