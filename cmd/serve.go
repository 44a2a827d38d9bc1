package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/cvette/pmflow/app"
	"github.com/cvette/pmflow/app/standalone"
	"github.com/cvette/pmflow/util/conf"
	"github.com/cvette/pmflow/util/logging"
)

var (
	serveCmdDescription = `The serve command bootstraps the worker pool and starts a
	http server in front of it. Every request is handed to an idle
	worker, which runs it through the bootstrapped application.

	The command will launch the http server and blocks indefin-
	itely, processing incoming http requests.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start a http server and listen for requests.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Value:    "localhost",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Value:    8080,
				Category: "http",
				EnvVars:  []string{"HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Value:    false,
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
			&cli.DurationFlag{
				Name:     "read-header-timeout",
				Usage:    "The time allowed to read request headers.",
				Category: "http",
				EnvVars:  []string{"HTTP_READ_HEADER_TIMEOUT"},
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	cfg, err := conf.Parse[standalone.Config](conf.ParseOptions{
		Defaults: standalone.DefaultConfig,
		Log:      log,
		Cli:      ctx,
	})
	if err != nil {
		return err
	}

	log.Info("starting http server")

	return app.Run(ctx.Context, standalone.Module(cfg))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
