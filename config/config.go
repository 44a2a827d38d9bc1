package config

import (
	"github.com/cvette/pmflow/internal/bootstrap"
	"github.com/cvette/pmflow/internal/framework/process"
	"github.com/cvette/pmflow/internal/pool"
	"github.com/cvette/pmflow/util/conf"
)

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Bootstrap selects and configures the framework adapter
	Bootstrap bootstrap.Config `conf:"bootstrap"`

	// Pool configures the worker pool
	Pool pool.Config `conf:"pool"`

	// Process configures the child process of the Process adapter
	Process process.Config `conf:"process"`
}

var DefaultConfig = conf.Merge(
	conf.DefaultConfig{
		"log_level":  "info",
		"log_format": "production",
	},
	conf.MergeDefaults("bootstrap", conf.DefaultConfig{
		"adapter": "Flow",
		"appenv":  bootstrap.DefaultAppEnv,
	}),
	conf.MergeDefaults("process", conf.DefaultConfig{
		"start_timeout": "10s",
		"stop_timeout":  "5s",
	}),
)
