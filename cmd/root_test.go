package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/config"
	"github.com/cvette/pmflow/util/conf"
	"github.com/cvette/pmflow/util/logging"
)

func runRoot(t *testing.T, args ...string) config.Config {
	t.Helper()

	var cfg config.Config

	app := &cli.App{
		Name:   appName,
		Flags:  rootApp.Flags,
		Before: rootApp.Before,
		Action: func(ctx *cli.Context) error {
			_, err := logging.LoggerFromContext(ctx.Context)
			require.NoError(t, err)

			cfg, err = conf.GetConfigFromContext[config.Config](ctx.Context)
			return err
		},
	}

	require.NoError(t, app.Run(append([]string{appName}, args...)))

	return cfg
}

func TestRoot_Defaults(t *testing.T) {
	cfg := runRoot(t)

	assert.Equal(t, "Flow", cfg.Bootstrap.Adapter)
	assert.Equal(t, "Development", cfg.Bootstrap.AppEnv)
	assert.Equal(t, 0, cfg.Pool.MaxRequests)
	assert.Equal(t, 10*time.Second, cfg.Process.StartTimeout)
	assert.Equal(t, 5*time.Second, cfg.Process.StopTimeout)
}

func TestRoot_Flags(t *testing.T) {
	cfg := runRoot(t,
		"--log-level", "error",
		"--adapter", "Process",
		"--appenv", "Production",
		"--debug",
		"--max-workers", "3",
		"--max-requests", "100",
		"--command", "php",
		"--arg", "flow",
		"--arg", "server:run",
		"--stop-timeout", "2s",
	)

	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "Process", cfg.Bootstrap.Adapter)
	assert.Equal(t, "Production", cfg.Bootstrap.AppEnv)
	assert.True(t, cfg.Bootstrap.Debug)
	assert.Equal(t, 3, cfg.Pool.MaxWorkers)
	assert.Equal(t, 100, cfg.Pool.MaxRequests)
	assert.Equal(t, "php", cfg.Process.Cmd)
	assert.Equal(t, []string{"flow", "server:run"}, cfg.Process.Args)
	assert.Equal(t, 2*time.Second, cfg.Process.StopTimeout)
	assert.Equal(t, 10*time.Second, cfg.Process.StartTimeout)
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		flag     string
		expected zap.AtomicLevel
	}{
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"verbose", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			app := &cli.App{
				Flags: []cli.Flag{&cli.StringFlag{Name: "log-level"}},
				Action: func(ctx *cli.Context) error {
					assert.Equal(t, tt.expected.Level(), getLogLevelFromCLI(ctx).Level())
					return nil
				},
			}

			require.NoError(t, app.Run([]string{"test", "--log-level", tt.flag}))
		})
	}
}
