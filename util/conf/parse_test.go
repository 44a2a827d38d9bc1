package conf_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvette/pmflow/util/conf"
)

type poolConfig struct {
	MaxWorkers  int           `conf:"max_workers"`
	MaxRequests int           `conf:"max_requests"`
	Timeout     time.Duration `conf:"timeout"`
}

type testConfig struct {
	LogLevel string     `conf:"log_level"`
	Pool     poolConfig `conf:"pool"`
}

var defaults = conf.DefaultConfig{
	"log_level":         "info",
	"pool.max_workers":  2,
	"pool.max_requests": 10,
	"pool.timeout":      "5s",
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := conf.Parse[testConfig](conf.ParseOptions{Defaults: defaults})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2, cfg.Pool.MaxWorkers)
	assert.Equal(t, 10, cfg.Pool.MaxRequests)
	assert.Equal(t, 5*time.Second, cfg.Pool.Timeout)
}

func TestParse_NestedEnv(t *testing.T) {
	t.Setenv("POOL__MAX_WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := conf.Parse[testConfig](conf.ParseOptions{Defaults: defaults})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Pool.MaxWorkers)
	assert.Equal(t, 10, cfg.Pool.MaxRequests)
}

func TestParse_JSONFile(t *testing.T) {
	path := writeFile(t, "pmflow.json", `{"pool": {"max_requests": 3, "timeout": "1m"}}`)

	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		Defaults: defaults,
		FileName: path,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Pool.MaxWorkers)
	assert.Equal(t, 3, cfg.Pool.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Pool.Timeout)
}

func TestParse_DotEnvFile(t *testing.T) {
	path := writeFile(t, "pmflow.env", "POOL__MAX_REQUESTS=7\nLOG_LEVEL=warn\n")

	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		Defaults: defaults,
		FileName: path,
	})
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Pool.MaxRequests)
}

func TestParse_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "pmflow.json", `{"pool": {"max_workers": 4}}`)
	t.Setenv("POOL__MAX_WORKERS", "6")

	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		Defaults: defaults,
		FileName: path,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Pool.MaxWorkers)
}

func TestParse_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := conf.Parse[testConfig](conf.ParseOptions{
		Defaults: defaults,
		FileName: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Pool.MaxWorkers)
}

func TestConfigContext(t *testing.T) {
	_, err := conf.GetConfigFromContext[testConfig](context.Background())
	assert.ErrorIs(t, err, conf.ErrNoConfigInContext)

	ctx := conf.ContextWithConfig(context.Background(), testConfig{LogLevel: "debug"})

	cfg, err := conf.GetConfigFromContext[testConfig](ctx)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = conf.GetConfigFromContext[poolConfig](ctx)
	assert.ErrorIs(t, err, conf.ErrInvalidConfig)
}
