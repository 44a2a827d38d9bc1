// Package bridge translates generic requests into framework-native
// requests, drives the framework's request lifecycle and translates the
// native response back.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/message"
)

const (
	MessageNotConfigured   = "Application not configured during bootstrap"
	MessageInvalidHandler  = "Flow request handler is not an instance of ExternalRequestHandler"
	MessageUnexpectedError = "Unexpected error"
)

var ErrPanic = errors.New("panic while handling request")

// Params defines the dependencies of a RequestBridge.
type Params struct {
	// Application is the bootstrapped framework instance. It may be nil if
	// bootstrapping failed, in which case every request is answered with
	// an error response.
	Application framework.Application

	// TempDir is the directory uploads are spooled to. Defaults to os.TempDir().
	TempDir string

	// Hub is the sentry hub failures are reported to. Defaults to the current hub.
	Hub *sentry.Hub

	// Log is the logger to use for the bridge.
	Log *zap.Logger
}

// RequestBridge handles generic requests with a framework application. A
// bridge serves one request at a time.
type RequestBridge struct {
	app     framework.Application
	tempDir string
	hub     *sentry.Hub
	log     *zap.Logger
}

// New creates a new request bridge.
func New(params Params) *RequestBridge {
	tempDir := params.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	hub := params.Hub
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	log := params.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &RequestBridge{
		app:     params.Application,
		tempDir: tempDir,
		hub:     hub,
		log:     log.Named("bridge"),
	}
}

// Application returns the application the bridge drives, or nil.
func (b *RequestBridge) Application() framework.Application {
	return b.app
}

// Handle handles a single generic request and returns the generic response.
// Handle never fails; failures are mapped to error responses.
func (b *RequestBridge) Handle(ctx context.Context, req *message.Request) *message.Response {
	if b.app == nil {
		return message.NewTextResponse(http.StatusInternalServerError, MessageNotConfigured)
	}

	handler, ok := b.app.ActiveRequestHandler().(framework.ExternalRequestHandler)
	if !ok {
		return message.NewTextResponse(http.StatusInternalServerError, MessageInvalidHandler)
	}

	spool := newUploadSpool(b.tempDir, b.log)
	defer spool.Cleanup()

	nativeReq, err := b.mapRequest(req, spool)
	if err != nil {
		return b.fail(err)
	}

	scope := framework.NewScope()

	if err := b.drive(ctx, handler, nativeReq, scope); err != nil {
		return b.fail(err)
	}

	nativeRes := handler.HTTPResponse()
	if nativeRes == nil {
		return b.fail(framework.ErrNoResponse)
	}

	return b.mapResponse(nativeRes, scope)
}

// drive runs the request lifecycle. Anything the framework writes to the
// scope output is discarded, whether the lifecycle succeeds, fails or panics.
func (b *RequestBridge) drive(
	ctx context.Context,
	handler framework.ExternalRequestHandler,
	req *framework.Request,
	scope *framework.Scope,
) (err error) {
	defer func() {
		if n := scope.DiscardOutput(); n > 0 {
			b.log.Debug("discarded stray output", zap.Int("bytes", n))
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	handler.SetRequest(req)

	return handler.HandleRequest(ctx, scope)
}

// fail reports err and returns the generic error response. The error
// detail never reaches the client.
func (b *RequestBridge) fail(err error) *message.Response {
	b.log.Error("unexpected error while handling request", zap.String("error", err.Error()))
	b.hub.CaptureException(err)

	b.endSession()

	return message.NewTextResponse(http.StatusInternalServerError, MessageUnexpectedError)
}

// endSession closes an active session and clears its value cache, so the
// next request on this worker starts from a clean state.
func (b *RequestBridge) endSession() {
	sess := b.app.Session()
	if sess == nil || !sess.IsActive() {
		return
	}

	if err := sess.Close(); err != nil {
		b.log.Warn("failed to close session", zap.Error(err))
	}

	sess.Reset()
}
