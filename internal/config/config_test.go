package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvConfig, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "go", cfg.Dialect)
	assert.Equal(t, "expression", cfg.ExpressionKey)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.Values)
	assert.Empty(t, cfg.Glue)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exprender.yaml")
	content := []byte(`dialect: sql
values: true
glue:
  and: " & "
redis:
  addr: localhost:6379
  key: orders
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("EXPRENDER_LOG_LEVEL", "debug")
	t.Setenv("EXPRENDER_HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sql", cfg.Dialect)
	assert.True(t, cfg.Values)
	assert.Equal(t, map[string]string{"and": " & "}, cfg.Glue)
	assert.Equal(t, RedisConfig{Addr: "localhost:6379", Key: "orders"}, cfg.Redis)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoadFromEnvConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: text\n"), 0o600))
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Dialect)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
