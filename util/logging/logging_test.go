package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cvette/pmflow/util/logging"
)

func TestLoggerContext(t *testing.T) {
	_, err := logging.LoggerFromContext(context.Background())
	assert.ErrorIs(t, err, logging.ErrNoLoggerInContext)

	log := zap.NewNop()
	ctx := logging.ContextWithLogger(context.Background(), log)

	got, err := logging.LoggerFromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, log, got)
	assert.Same(t, log, logging.FromContext(ctx))
	assert.NotNil(t, logging.FromContext(context.Background()))
}

func TestDecorateLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(zap.New(core)),
		fx.Module("serve",
			logging.DecorateLogger("serve", zap.String("transport", "http")),
			fx.Invoke(func(log *zap.Logger) {
				log.Info("hello")
			}),
		),
	)
	app.RequireStart().RequireStop()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "serve", entry.LoggerName)
	assert.Equal(t, "http", entry.ContextMap()["transport"])
}
