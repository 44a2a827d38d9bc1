package main

import (
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cvette/pmflow/cmd"
	"github.com/cvette/pmflow/util"
)

var Version string
var Buildtime string
var Commit string

// sentryFlushTimeout bounds how long buffered events may delay exit.
const sentryFlushTimeout = 2 * time.Second

func main() {
	appVersion := "local"
	if Version != "" {
		appVersion = Version
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentryOptions(dsn, appVersion, os.Getenv)); err != nil {
			log.Fatalf("sentry init failed: %s", err)
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	appBuildtime, _ := time.Parse(time.RFC3339, Buildtime)

	cmd.Execute(cmd.ExecuteParams{
		Version:  appVersion,
		Compiled: appBuildtime,
	})
}

// sentryOptions builds the client options from the SENTRY_* environment.
// Events are tagged with the pmflow release and the host running the
// worker pool.
func sentryOptions(dsn, version string, getenv func(string) string) sentry.ClientOptions {
	environment := getenv("SENTRY_ENVIRONMENT")
	if environment == "" {
		environment = "local"
	}

	release := "pmflow@" + version
	if Commit != "" {
		release += "+" + Commit
	}

	serverName, _ := os.Hostname()

	return sentry.ClientOptions{
		Dsn:              dsn,
		Debug:            util.Truthy(getenv("SENTRY_DEBUG")),
		TracesSampleRate: 1.0,
		EnableTracing:    true,
		Environment:      environment,
		Release:          release,
		ServerName:       serverName,
	}
}
