package lambda

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/handler"
	"github.com/cvette/pmflow/util/logging"
)

func Module(config Config) fx.Option {
	return fx.Module(
		"lambda",
		// provide lambda config
		fx.Supply(config),
		// rename logger for module
		logging.DecorateLogger("lambda", zap.Stringer("proxy_source", config.ProxySource)),
		// provide handlers
		handler.Module(),
		// provide server
		fx.Provide(NewLifecycleHandler),
		// invoke server
		fx.Invoke(func(*LambdaHandler) {}),
	)
}
