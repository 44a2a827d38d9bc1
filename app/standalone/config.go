package standalone

import (
	"github.com/cvette/pmflow/internal/server"
	"github.com/cvette/pmflow/util/conf"
)

type Config struct {
	// HttpConfig represents the configuration for the HTTP server.
	HttpConfig server.HttpConfig `conf:",squash"`
}

var DefaultConfig = conf.DefaultConfig{
	"host":                "localhost",
	"port":                8080,
	"h2c":                 false,
	"read_header_timeout": "10s",
}
