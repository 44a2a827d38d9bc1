package shell_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/shell"
)

func TestShell_ExitCode(t *testing.T) {
	var stopped bool

	s := shell.New(zap.NewNop())

	err := s.Run(context.Background(), fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return sd.Shutdown(fx.ExitCode(3))
			},
			OnStop: func(context.Context) error {
				stopped = true
				return nil
			},
		})
	}))

	var exitErr *shell.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.True(t, stopped)
}

func TestShell_StartError(t *testing.T) {
	s := shell.New(zap.NewNop())

	err := s.Run(context.Background(), fx.Invoke(func() error {
		return errors.New("boom")
	}))

	assert.True(t, shell.IsExitError(err))
	assert.Equal(t, 1, err.(*shell.ExitError).ExitCode)
}

func TestShell_ProvidesContextAndLogger(t *testing.T) {
	log := zap.NewNop()
	s := shell.New(log)

	var gotLog *zap.Logger
	var gotCtx context.Context

	err := s.Run(context.Background(), fx.Invoke(func(ctx context.Context, l *zap.Logger, lc fx.Lifecycle, sd fx.Shutdowner) {
		gotCtx = ctx
		gotLog = l
		lc.Append(fx.StartHook(func() error {
			return sd.Shutdown()
		}))
	}))

	assert.True(t, shell.IsExitError(err))
	assert.NotNil(t, gotCtx)
	assert.Same(t, log, gotLog)
}

func TestExitCode(t *testing.T) {
	assert.False(t, shell.IsExitError(nil))
	assert.False(t, shell.IsExitError(errors.New("other")))
	assert.True(t, shell.IsExitError(shell.NewExitError(2)))

	code, ok := shell.ExitCode(fmt.Errorf("wrapped: %w", shell.NewExitError(4)))
	assert.True(t, ok)
	assert.Equal(t, 4, code)
}
