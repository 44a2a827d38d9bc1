package standalone

import (
	"go.uber.org/fx"

	"github.com/cvette/pmflow/handler"
	"github.com/cvette/pmflow/internal/server"
	"github.com/cvette/pmflow/util/logging"
)

func Module(config Config) fx.Option {
	return fx.Module(
		"serve",
		// rename logger for module
		logging.DecorateLogger("serve"),
		// provide handlers
		handler.Module(),
		// provide server
		server.Module(config.HttpConfig),
	)
}
