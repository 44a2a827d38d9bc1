package app

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/config"
	"github.com/cvette/pmflow/handler"
	"github.com/cvette/pmflow/internal/bootstrap"
	"github.com/cvette/pmflow/internal/framework/flow"
	"github.com/cvette/pmflow/internal/framework/process"
	"github.com/cvette/pmflow/internal/metrics"
	"github.com/cvette/pmflow/internal/pool"
	"github.com/cvette/pmflow/internal/session"
	"github.com/cvette/pmflow/internal/shell"
	"github.com/cvette/pmflow/util/conf"
	"github.com/cvette/pmflow/util/logging"
)

// Names of the built-in framework adapters.
const (
	AdapterFlow    = "Flow"
	AdapterProcess = "Process"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	return shell.New(log, Module(config)), nil
}

// Module provides the worker pool and everything it depends on.
func Module(config config.Config) fx.Option {
	return fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide sub configs
		fx.Supply(config.Bootstrap, config.Pool, config.Process),
		// provide the session store shared by all workers
		fx.Provide(fx.Annotate(session.NewMemoryStore, fx.As(new(session.Store)))),
		// provide adapters
		fx.Provide(NewRegistry),
		fx.Provide(NewBootstrapper),
		// provide metrics
		fx.Provide(metrics.New),
		// provide the worker pool
		fx.Provide(fx.Annotate(
			NewLifecyclePool,
			fx.As(new(handler.Dispatcher)),
			fx.As(new(handler.StatsProvider)),
		)),
	)
}

// NewRegistry registers the built-in adapters.
func NewRegistry(cfg process.Config) *bootstrap.Registry {
	registry := bootstrap.NewRegistry()
	registry.MustRegister(AdapterFlow, flow.NewFactory(flow.Options{}))
	registry.MustRegister(AdapterProcess, process.NewFactory(cfg))
	return registry
}

func NewBootstrapper(
	registry *bootstrap.Registry,
	cfg bootstrap.Config,
	store session.Store,
	log *zap.Logger,
) (*bootstrap.Bootstrapper, error) {
	return bootstrap.New(registry, cfg, store, log)
}

type PoolParams struct {
	fx.In

	Context      context.Context
	Config       pool.Config
	Bootstrapper *bootstrap.Bootstrapper
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

// NewLifecyclePool creates the worker pool, starts its workers with the
// application and shuts them down with it.
func NewLifecyclePool(params PoolParams, lc fx.Lifecycle) (*pool.Pool, error) {
	p, err := pool.New(pool.Params{
		Context:      params.Context,
		Config:       params.Config,
		Bootstrapper: params.Bootstrapper,
		Hub:          sentry.CurrentHub(),
		Metrics:      params.Metrics,
		Log:          params.Log,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: p.Start,
		OnStop:  p.Shutdown,
	})

	return p, nil
}
