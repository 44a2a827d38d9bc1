// Package process runs the application in a child process and talks to
// it with JSON-RPC over the child's stdio.
package process

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/bootstrap"
	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/session"
	"github.com/cvette/pmflow/internal/worker"
)

var ErrNotRunning = errors.New("application process is not running")

// Environment variables handed to the child process.
const (
	EnvAppEnv   = "PMFLOW_APPENV"
	EnvDebug    = "PMFLOW_DEBUG"
	EnvSettings = "PMFLOW_SETTINGS"
)

// Application is an application hosted by a child process.
type Application struct {
	config Config

	proc   *worker.Process
	client *rpc.Client

	store    session.Store
	session  *session.Manager
	settings framework.MapSettings
	handler  *ExternalRequestHandler

	mu     sync.Mutex
	closed bool

	log *zap.Logger
}

var _ framework.Application = (*Application)(nil)

// NewFactory returns a bootstrap.Factory starting applications with cfg.
func NewFactory(cfg Config) bootstrap.Factory {
	return func(ctx context.Context, params bootstrap.Params) (framework.Application, error) {
		app, err := New(ctx, params, cfg)
		if err != nil {
			return nil, err
		}
		return app, nil
	}
}

// New starts the child process and waits until it answers. The child is
// killed when ctx is cancelled.
func New(ctx context.Context, params bootstrap.Params, cfg Config) (*Application, error) {
	cfg = cfg.withDefaults()

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	store := params.SessionStore
	if store == nil {
		store = session.NewMemoryStore()
	}

	proc, err := worker.Start(ctx, cfg.worker(map[string]string{
		EnvAppEnv:   params.AppEnv,
		EnvDebug:    strconv.FormatBool(params.Debug),
		EnvSettings: params.SettingsFile,
	}), log)
	if err != nil {
		return nil, err
	}

	a := &Application{
		config:  cfg,
		proc:    proc,
		store:   store,
		session: session.NewManager(cfg.SessionName, store, log),
		settings: framework.MapSettings{
			"process": map[string]any{
				"cmd":  cfg.Cmd,
				"args": cfg.Args,
				"cwd":  cfg.Cwd,
			},
			"session": map[string]any{
				"name": cfg.SessionName,
			},
		},
		log: log,
	}

	startCtx, cancel := context.WithTimeout(ctx, cfg.StartTimeout)
	defer cancel()

	if err := a.connect(startCtx); err != nil {
		if stopErr := proc.Kill(cfg.StopTimeout); stopErr != nil {
			log.Warn("failed to kill application process", zap.Error(stopErr))
		}
		return nil, fmt.Errorf("failed to connect to application process: %w (stderr: %q)", err, proc.Stderr())
	}

	a.handler = &ExternalRequestHandler{app: a}

	log.Info("application process started", zap.Int("pid", proc.Pid()))

	return a, nil
}

func (a *Application) connect(ctx context.Context) error {
	pipe := newFramedPipe(a.proc.Pipe())

	client, err := dialWithRetry(ctx, pipe, 100*time.Millisecond, 10*time.Second, a.log)
	if err != nil {
		return err
	}

	var pong any
	if err := client.CallContext(ctx, &pong, MethodPing); err != nil {
		client.Close()
		return err
	}

	a.client = client

	return nil
}

func dialWithRetry(
	ctx context.Context,
	pipe *framedPipe,
	baseDelay time.Duration,
	maxDelay time.Duration,
	log *zap.Logger,
) (*rpc.Client, error) {
	for i := 0; ; i++ {
		client, err := rpc.DialIO(ctx, pipe, pipe)
		if err == nil {
			return client, nil
		}

		// exponential backoff, capped at maxDelay
		backoff := baseDelay * time.Duration(math.Pow(2, float64(i)))
		if backoff > maxDelay {
			backoff = maxDelay
		}

		log.Debug("error dialing rpc",
			zap.Int("retry", i),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("error dialing rpc: %w", err)
		}
	}
}

func (a *Application) ActiveRequestHandler() framework.RequestHandler {
	if a.handler == nil {
		return nil
	}
	return a.handler
}

func (a *Application) Settings() framework.Settings { return a.settings }

func (a *Application) Session() framework.Session { return a.session }

// Healthy reports whether the child process is still running.
func (a *Application) Healthy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}

	select {
	case <-a.proc.Done():
		return false
	default:
		return true
	}
}

// Pid returns the pid of the child process.
func (a *Application) Pid() int { return a.proc.Pid() }

// Shutdown stops the child process when shutting down compiletime. The
// runtime runlevel is torn down by the child after every request.
func (a *Application) Shutdown(_ context.Context, runlevel framework.Runlevel) error {
	if runlevel == framework.RunlevelRuntime {
		return nil
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	// the rpc client only returns from Close once its reader sees the
	// child's stdout close, so the child has to go first
	err := a.proc.Stop(a.config.StopTimeout)

	select {
	case <-a.proc.Done():
		a.client.Close()
	default:
		a.log.Warn("application process still running, leaving rpc client open", zap.Int("pid", a.proc.Pid()))
	}

	if err != nil {
		return fmt.Errorf("failed to stop application process: %w", err)
	}

	return nil
}

func (a *Application) call(ctx context.Context, result any, method string, args ...any) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()

	if closed {
		return ErrNotRunning
	}

	return a.client.CallContext(ctx, result, method, args...)
}
