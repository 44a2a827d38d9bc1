// Package flow is the in-process reference framework. It boots once per
// worker and serves each request through a component chain.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/bootstrap"
	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/session"
)

const (
	ApplicationName = "Flow"
	MajorVersion    = "1"
	MinorVersion    = "1.0"
)

var (
	ErrDuplicateRoute = errors.New("route already registered")
	ErrShutdown       = errors.New("application is shut down")
)

// Package contributes routes and signal slots while the application boots.
type Package interface {
	Key() string
	Boot(*Application) error
}

// PackageFunc adapts a function to the Package interface.
type PackageFunc struct {
	Name string
	Fn   func(*Application) error
}

func (p PackageFunc) Key() string { return p.Name }

func (p PackageFunc) Boot(a *Application) error { return p.Fn(a) }

// Step is one named step of a boot sequence.
type Step struct {
	Name string
	Run  func(context.Context, *Application) error
}

// Options configure a new Application.
type Options struct {
	Packages []Package

	// Settings are used when no settings file is configured.
	Settings *Settings

	// Exit is invoked after every request.
	Exit func()
}

// Application is a booted framework instance.
type Application struct {
	appEnv   string
	debug    bool
	settings *Settings

	packages []Package
	routes   []Route
	actions  map[string]Action
	router   *mux.Router

	signals *Dispatcher
	session *session.Manager
	handler *ExternalRequestHandler

	mu       sync.Mutex
	runlevel framework.Runlevel
	booted   bool
	shutdown bool

	log *zap.Logger
}

var _ framework.Application = (*Application)(nil)

// NewFactory returns a bootstrap.Factory building Flow applications with
// the given options.
func NewFactory(opts Options) bootstrap.Factory {
	return func(ctx context.Context, params bootstrap.Params) (framework.Application, error) {
		app, err := New(ctx, params, opts)
		if err != nil {
			return nil, err
		}
		return app, nil
	}
}

// New runs the compiletime boot sequence and installs the external request
// handler as the active request handler.
func New(ctx context.Context, params bootstrap.Params, opts Options) (*Application, error) {
	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	settings := opts.Settings
	if params.SettingsFile != "" {
		s, err := LoadSettings(params.SettingsFile)
		if err != nil {
			return nil, err
		}
		settings = s
	}
	if settings == nil {
		settings = DefaultSettings()
	}

	a := &Application{
		appEnv:   params.AppEnv,
		debug:    params.Debug,
		settings: settings,
		packages: opts.Packages,
		actions:  make(map[string]Action),
		signals:  NewDispatcher(),
		session:  session.NewManager(settings.Session.Name, params.SessionStore, log),
		runlevel: framework.RunlevelCompiletime,
		log:      log,
	}

	if err := a.run(ctx, "compiletime", a.compiletimeSequence()); err != nil {
		return nil, err
	}

	a.handler = newExternalRequestHandler(a, opts.Exit)
	a.booted = true

	log.Info("application booted",
		zap.String("appenv", a.appEnv),
		zap.Int("packages", len(a.packages)),
		zap.Int("routes", len(a.routes)))

	return a, nil
}

func (a *Application) compiletimeSequence() []Step {
	return []Step{
		{Name: "classLoader", Run: initializeClassLoader},
		{Name: "signalSlots", Run: initializeSignalSlots},
		{Name: "packageManagement", Run: initializePackageManagement},
	}
}

func (a *Application) runtimeSequence() []Step {
	return []Step{
		{Name: "router", Run: initializeRouter},
	}
}

func (a *Application) run(ctx context.Context, sequence string, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		a.log.Debug("running boot step",
			zap.String("sequence", sequence),
			zap.String("step", step.Name))

		if err := step.Run(ctx, a); err != nil {
			return fmt.Errorf("boot step %s: %w", step.Name, err)
		}
	}

	return nil
}

// initializeClassLoader registers the actions of the static routes found
// in the settings.
func initializeClassLoader(_ context.Context, a *Application) error {
	for _, rs := range a.settings.Routes {
		if err := a.RegisterRoute(Route{
			Name:    rs.Name,
			Path:    rs.Path,
			Methods: rs.Methods,
			Action:  staticAction(rs),
		}); err != nil {
			return err
		}
	}

	return nil
}

func initializeSignalSlots(_ context.Context, a *Application) error {
	a.signals.Connect(SignalBootstrapShuttingDown, func(args ...any) {
		a.log.Debug("shutting down", zap.Any("runlevel", args))
	})

	return nil
}

func initializePackageManagement(_ context.Context, a *Application) error {
	for _, p := range a.packages {
		if err := p.Boot(a); err != nil {
			return fmt.Errorf("package %s: %w", p.Key(), err)
		}
		a.log.Debug("package booted", zap.String("package", p.Key()))
	}

	a.signals.Dispatch(SignalPackagesBooted, len(a.packages))

	return nil
}

func initializeRouter(_ context.Context, a *Application) error {
	if a.router != nil {
		return nil
	}

	router := mux.NewRouter()
	for _, route := range a.routes {
		r := router.Path(route.Path).Name(route.Name)
		if len(route.Methods) > 0 {
			r.Methods(withHead(route.Methods)...)
		}
		if err := r.GetError(); err != nil {
			return fmt.Errorf("route %s: %w", route.Name, err)
		}
	}

	a.router = router

	return nil
}

// RegisterRoute adds a routed action. Routes are matched in registration
// order.
func (a *Application) RegisterRoute(route Route) error {
	if _, ok := a.actions[route.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, route.Name)
	}

	a.actions[route.Name] = route.Action
	a.routes = append(a.routes, route)
	a.router = nil

	return nil
}

// Signals returns the signal dispatcher.
func (a *Application) Signals() *Dispatcher { return a.signals }

func (a *Application) AppEnv() string { return a.appEnv }

// Boot brings the application to the given runlevel.
func (a *Application) Boot(ctx context.Context, runlevel framework.Runlevel) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shutdown {
		return ErrShutdown
	}

	if runlevel != framework.RunlevelRuntime || a.runlevel == framework.RunlevelRuntime {
		return nil
	}

	if err := a.run(ctx, "runtime", a.runtimeSequence()); err != nil {
		return err
	}

	a.runlevel = framework.RunlevelRuntime

	return nil
}

func (a *Application) ActiveRequestHandler() framework.RequestHandler {
	if !a.booted {
		return nil
	}
	return a.handler
}

func (a *Application) Settings() framework.Settings { return a.settings }

func (a *Application) Session() framework.Session { return a.session }

// Shutdown emits the shutting-down signal. Shutting down the runtime
// runlevel drops back to compiletime so the next request boots again;
// shutting down compiletime ends the application.
func (a *Application) Shutdown(_ context.Context, runlevel framework.Runlevel) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shutdown {
		return nil
	}

	a.signals.Dispatch(SignalBootstrapShuttingDown, runlevel)

	if runlevel == framework.RunlevelRuntime {
		a.runlevel = framework.RunlevelCompiletime
		return nil
	}

	a.shutdown = true
	a.booted = false

	return nil
}

func (a *Application) match(req *http.Request) (*mux.RouteMatch, bool) {
	var m mux.RouteMatch
	ok := a.router.Match(req, &m)
	return &m, ok
}

// withHead allows HEAD wherever GET is allowed.
func withHead(methods []string) []string {
	var get bool
	for _, m := range methods {
		switch strings.ToUpper(m) {
		case http.MethodHead:
			return methods
		case http.MethodGet:
			get = true
		}
	}

	if !get {
		return methods
	}

	return append(append([]string(nil), methods...), http.MethodHead)
}
