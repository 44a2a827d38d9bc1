package server

import (
	"go.uber.org/fx"

	"github.com/cvette/pmflow/util/logging"
)

func Module(config HttpConfig) fx.Option {
	return fx.Module("server",
		// rename logger for module
		logging.DecorateLogger("http"),
		// provide config
		fx.Supply(config),
		// provide server
		fx.Provide(NewLifecycleServer),
		// invoke server
		fx.Invoke(func(*HttpServer) {}),
	)
}
