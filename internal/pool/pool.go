// Package pool keeps a pool of workers, each owning one bootstrapped
// application and one request bridge. A worker serves one request at a
// time.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/bridge"
	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/message"
	"github.com/cvette/pmflow/internal/metrics"
)

// Reasons a worker is destroyed.
const (
	ReasonMaxRequests   = "max_requests"
	ReasonNotConfigured = "not_configured"
	ReasonUnhealthy     = "unhealthy"
	ReasonShutdown      = "shutdown"
)

// Config configures the pool.
type Config struct {
	// MaxWorkers is the maximum number of concurrent workers. Defaults to
	// the number of CPUs.
	MaxWorkers int `conf:"max_workers"`

	// MaxRequests is the number of requests after which a worker is
	// recycled. 0 disables recycling.
	MaxRequests int `conf:"max_requests"`

	// TempDir is the directory uploads are spooled to.
	TempDir string `conf:"temp_dir"`
}

// Bootstrapper creates the application of a worker.
type Bootstrapper interface {
	Bootstrap(context.Context) (framework.Application, error)
}

type Params struct {
	// Context bounds the lifetime of all workers.
	Context context.Context

	Config       Config
	Bootstrapper Bootstrapper

	// Hub is handed to the request bridges.
	Hub *sentry.Hub

	// Metrics may be nil.
	Metrics *metrics.Metrics

	Log *zap.Logger
}

// Worker is a pooled application with its request bridge.
type Worker struct {
	id       int64
	bridge   *bridge.RequestBridge
	requests int
	reason   string
}

func (w *Worker) ID() int64 { return w.id }

// Requests returns the number of requests served by the worker.
func (w *Worker) Requests() int { return w.requests }

// Pool dispatches requests to workers.
type Pool struct {
	ctx     context.Context
	config  Config
	pool    *puddle.Pool[*Worker]
	metrics *metrics.Metrics
	nextID  atomic.Int64
	log     *zap.Logger
}

// healthChecker is implemented by applications that can fail while
// serving, such as applications hosted in a child process.
type healthChecker interface {
	Healthy() bool
}

// New creates the pool. Workers are created on demand or by Start.
func New(params Params) (*Pool, error) {
	if params.Config.MaxWorkers <= 0 {
		params.Config.MaxWorkers = runtime.NumCPU()
	}

	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pool{
		ctx:     ctx,
		config:  params.Config,
		metrics: params.Metrics,
		log:     log.Named("pool"),
	}

	constructor := func(context.Context) (*Worker, error) {
		return p.newWorker(params), nil
	}

	pool, err := puddle.NewPool(&puddle.Config[*Worker]{
		Constructor: constructor,
		Destructor:  p.destroyWorker,
		MaxSize:     int32(params.Config.MaxWorkers),
	})
	if err != nil {
		return nil, err
	}

	p.pool = pool

	return p, nil
}

// newWorker bootstraps a worker. A failed bootstrap leaves the worker
// without an application, so its bridge answers with an error response.
func (p *Pool) newWorker(params Params) *Worker {
	id := p.nextID.Add(1)
	log := p.log.With(zap.Int64("worker", id))

	var app framework.Application
	if params.Bootstrapper != nil {
		started := time.Now()

		a, err := params.Bootstrapper.Bootstrap(p.ctx)
		if err != nil {
			log.Error("failed to bootstrap application", zap.Error(err))
		} else {
			app = a
			log.Info("worker started", zap.Duration("took", time.Since(started)))
		}
	}

	p.metrics.WorkerStarted()

	return &Worker{
		id: id,
		bridge: bridge.New(bridge.Params{
			Application: app,
			TempDir:     p.config.TempDir,
			Hub:         params.Hub,
			Log:         log,
		}),
		reason: ReasonShutdown,
	}
}

func (p *Pool) destroyWorker(w *Worker) {
	defer p.metrics.WorkerStopped(w.reason)

	log := p.log.With(zap.Int64("worker", w.id), zap.String("reason", w.reason))

	app := w.bridge.Application()
	if app == nil {
		return
	}

	if err := app.Shutdown(p.ctx, framework.RunlevelCompiletime); err != nil {
		log.Error("error shutting down application", zap.Error(err))
		return
	}

	log.Debug("worker stopped", zap.Int("requests", w.requests))
}

// Start creates all workers up front.
func (p *Pool) Start(ctx context.Context) error {
	for i := p.pool.Stat().TotalResources(); i < int32(p.config.MaxWorkers); i++ {
		if err := p.pool.CreateResource(ctx); err != nil {
			return fmt.Errorf("error creating worker: %w", err)
		}
	}

	return nil
}

// Handle serves a request with the next idle worker, waiting for one if
// all are busy.
func (p *Pool) Handle(ctx context.Context, req *message.Request) (*message.Response, error) {
	resource, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("error acquiring worker: %w", err)
	}

	w := resource.Value()

	started := time.Now()
	res := w.bridge.Handle(ctx, req)
	p.metrics.ObserveRequest(res.StatusCode, time.Since(started))

	w.requests++

	if reason := p.recycleReason(w); reason != "" {
		w.reason = reason
		p.log.Debug("destroying worker",
			zap.Int64("worker", w.id),
			zap.String("reason", reason))
		resource.Destroy()
	} else {
		resource.Release()
	}

	return res, nil
}

func (p *Pool) recycleReason(w *Worker) string {
	app := w.bridge.Application()
	if app == nil {
		return ReasonNotConfigured
	}

	if hc, ok := app.(healthChecker); ok && !hc.Healthy() {
		return ReasonUnhealthy
	}

	if p.config.MaxRequests > 0 && w.requests >= p.config.MaxRequests {
		return ReasonMaxRequests
	}

	return ""
}

// Stats is a snapshot of the pool state.
type Stats struct {
	Total    int32
	Idle     int32
	Acquired int32
	MaxSize  int32
}

func (p *Pool) Stats() Stats {
	s := p.pool.Stat()
	return Stats{
		Total:    s.TotalResources(),
		Idle:     s.IdleResources(),
		Acquired: s.AcquiredResources(),
		MaxSize:  s.MaxResources(),
	}
}

// Shutdown waits for busy workers and shuts all applications down. It
// gives up when ctx is done; workers still shutting down are left behind.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.log.Debug("shutting down pool")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		p.pool.Close()
	}()

	select {
	case <-closed:
		return nil
	case <-ctx.Done():
		p.log.Warn("pool shutdown timed out", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
