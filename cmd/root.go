package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/config"
	"github.com/cvette/pmflow/internal/shell"
	"github.com/cvette/pmflow/util/conf"
	"github.com/cvette/pmflow/util/logging"
)

var (
	appName  = "pmflow"
	appUsage = `Run a web framework inside a pool of long-lived workers and
serve it over HTTP or AWS Lambda.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Args:            true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "read configuration from a JSON or .env file.",
				EnvVars: []string{"PMFLOW_CONFIG"},
			},
			// framework flags
			&cli.StringFlag{
				Name:     "adapter",
				Usage:    "the framework adapter to bootstrap. Options: Flow, Process.",
				Category: "framework",
				EnvVars:  []string{"PMFLOW_ADAPTER"},
			},
			&cli.StringFlag{
				Name:     "appenv",
				Usage:    "the application environment, e.g. Development or Production.",
				Category: "framework",
				EnvVars:  []string{"PMFLOW_APPENV"},
			},
			&cli.BoolFlag{
				Name:     "debug",
				Usage:    "enable debug behaviour of the framework.",
				Category: "framework",
				EnvVars:  []string{"PMFLOW_DEBUG"},
			},
			&cli.PathFlag{
				Name:     "settings",
				Usage:    "the settings file of the framework.",
				Category: "framework",
				EnvVars:  []string{"PMFLOW_SETTINGS"},
			},
			// pool flags
			&cli.IntFlag{
				Name:     "max-workers",
				Usage:    "the maximum number of concurrent workers. Defaults to the number of CPUs.",
				Aliases:  []string{"n"},
				Category: "pool",
				EnvVars:  []string{"PMFLOW_MAX_WORKERS"},
			},
			&cli.IntFlag{
				Name:     "max-requests",
				Usage:    "recycle a worker after this many requests. 0 never recycles.",
				Category: "pool",
				EnvVars:  []string{"PMFLOW_MAX_REQUESTS"},
			},
			&cli.PathFlag{
				Name:     "temp-dir",
				Usage:    "the directory uploaded files are spooled to.",
				Category: "pool",
				EnvVars:  []string{"PMFLOW_TEMP_DIR"},
			},
			// process flags
			&cli.StringFlag{
				Name:     "command",
				Usage:    "the command starting the application process of the Process adapter.",
				Aliases:  []string{"c"},
				Category: "process",
				EnvVars:  []string{"PMFLOW_COMMAND"},
			},
			&cli.StringSliceFlag{
				Name:     "arg",
				Usage:    "additional arguments to pass to the application process.",
				Aliases:  []string{"a"},
				Category: "process",
				EnvVars:  []string{"PMFLOW_ARGS"},
			},
			&cli.PathFlag{
				Name:     "cwd",
				Usage:    "the working directory of the application process.",
				Category: "process",
				EnvVars:  []string{"PMFLOW_CWD"},
			},
			&cli.StringFlag{
				Name:     "session-name",
				Usage:    "the name of the session cookie of the application process.",
				Category: "process",
				EnvVars:  []string{"PMFLOW_SESSION_NAME"},
			},
			&cli.DurationFlag{
				Name:     "start-timeout",
				Usage:    "how long the application process may take to start.",
				Category: "process",
				EnvVars:  []string{"PMFLOW_START_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:     "stop-timeout",
				Usage:    "how long the application process may take to exit before it is killed.",
				Category: "process",
				EnvVars:  []string{"PMFLOW_STOP_TIMEOUT"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using defaults, file, env and flags
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Cli:      ctx,
				CliMap:   cliMap,
				Defaults: config.DefaultConfig,
				FileName: ctx.Path("config"),
				Log:      log,
			})
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			// Before may have failed before the logger was created
			logging.FromContext(ctx.Context).Sync()

			return nil
		},
	}

	// cliMap maps root flags to nested config keys
	cliMap = map[string]string{
		"adapter":       "bootstrap.adapter",
		"appenv":        "bootstrap.appenv",
		"debug":         "bootstrap.debug",
		"settings":      "bootstrap.settings",
		"max-workers":   "pool.max_workers",
		"max-requests":  "pool.max_requests",
		"temp-dir":      "pool.temp_dir",
		"command":       "process.cmd",
		"arg":           "process.args",
		"cwd":           "process.cwd",
		"session-name":  "process.session_name",
		"start-timeout": "process.start_timeout",
		"stop-timeout":  "process.stop_timeout",
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

func Execute(params ExecuteParams) {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return
	}

	// if app exited with ExitError, exit with given exit code
	if code, ok := shell.ExitCode(err); ok {
		os.Exit(code)
	}

	fmt.Printf("exit error: %s\n", err.Error())

	// otherwise, exit with exit code 1
	os.Exit(1)
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
