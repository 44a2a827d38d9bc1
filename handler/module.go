package handler

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("handler",
		fx.Provide(NewRequestHandler),
		fx.Provide(NewHealthHandler),
		fx.Provide(NewBridgeRoute),
		fx.Provide(NewHealthRoute),
		fx.Provide(NewMetricsRoute),
	)
}
