package process

import (
	"time"

	"github.com/cvette/pmflow/internal/worker"
)

// Config configures the child process hosting the application.
type Config struct {
	// Cmd is the command starting the application process.
	Cmd string `conf:"cmd"`

	// Args are passed to the command.
	Args []string `conf:"args"`

	// Cwd is the working directory of the process.
	Cwd string `conf:"cwd"`

	// Env is added to the environment of the process.
	Env map[string]string `conf:"env"`

	// SessionName is the name of the session cookie.
	SessionName string `conf:"session_name"`

	// StartTimeout bounds starting the child and connecting to it.
	StartTimeout time.Duration `conf:"start_timeout"`

	// StopTimeout is how long the child may take to exit before it is
	// killed.
	StopTimeout time.Duration `conf:"stop_timeout"`
}

const (
	defaultStartTimeout = 10 * time.Second
	defaultStopTimeout  = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.StartTimeout <= 0 {
		c.StartTimeout = defaultStartTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	return c
}

func (c Config) worker(env map[string]string) worker.Config {
	merged := make(map[string]string, len(c.Env)+len(env))
	for k, v := range c.Env {
		merged[k] = v
	}
	for k, v := range env {
		merged[k] = v
	}

	return worker.Config{
		Cmd:  c.Cmd,
		Args: c.Args,
		Cwd:  c.Cwd,
		Env:  merged,
	}
}
