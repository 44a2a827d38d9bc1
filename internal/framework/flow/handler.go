package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cvette/pmflow/internal/framework"
)

var ErrNoRequest = errors.New("no request set")

// ExternalRequestHandler serves requests handed in by the request bridge.
type ExternalRequestHandler struct {
	app  *Application
	exit func()

	request  *framework.Request
	response *framework.Response
}

var _ framework.ExternalRequestHandler = (*ExternalRequestHandler)(nil)

func newExternalRequestHandler(app *Application, exit func()) *ExternalRequestHandler {
	if exit == nil {
		exit = func() {}
	}

	return &ExternalRequestHandler{app: app, exit: exit}
}

// CanHandleRequest is always true; the handler is only ever invoked
// explicitly.
func (h *ExternalRequestHandler) CanHandleRequest() bool { return true }

func (h *ExternalRequestHandler) Priority() int { return 500 }

func (h *ExternalRequestHandler) SetRequest(r *framework.Request) {
	h.request = r
	h.response = nil
}

func (h *ExternalRequestHandler) HTTPResponse() *framework.Response {
	return h.response
}

// HandleRequest boots the runtime, runs the component chain and shuts the
// runtime down again.
func (h *ExternalRequestHandler) HandleRequest(ctx context.Context, scope *framework.Scope) error {
	if h.request == nil {
		return ErrNoRequest
	}

	response := framework.NewResponse()
	cc := framework.NewComponentContext(ctx, h.request, response, scope)

	if err := h.app.Boot(ctx, framework.RunlevelRuntime); err != nil {
		return err
	}

	chain := h.resolveChain()

	h.addPoweredByHeader(response)

	if baseURI := h.app.settings.Http.BaseUri; baseURI != "" {
		u, err := url.Parse(baseURI)
		if err != nil {
			return fmt.Errorf("invalid base uri %q: %w", baseURI, err)
		}
		h.request.SetBaseURI(u)
	}

	if err := chain.Handle(cc); err != nil {
		return err
	}

	h.response = cc.Response()

	h.logRequest()

	if err := h.app.Shutdown(ctx, framework.RunlevelRuntime); err != nil {
		return err
	}

	h.exit()

	return nil
}

// logRequest logs the handled request, at info level in debug mode.
func (h *ExternalRequestHandler) logRequest() {
	level := zapcore.DebugLevel
	if h.app.debug {
		level = zapcore.InfoLevel
	}

	ce := h.app.log.Check(level, "request handled")
	if ce == nil {
		return
	}

	route, _ := h.request.Attribute(RouteAttribute)
	ce.Write(
		zap.String("method", h.request.Method()),
		zap.String("path", h.request.RelativePath()),
		zap.Any("route", route),
		zap.Int("status", h.response.StatusCode()))
}

func (h *ExternalRequestHandler) resolveChain() *framework.ComponentChain {
	a := h.app

	return framework.NewComponentChain(
		framework.NamedComponent{Name: "session", Component: &sessionComponent{session: a.session}},
		framework.NamedComponent{Name: "routing", Component: &routingComponent{app: a}},
		framework.NamedComponent{Name: "dispatching", Component: &dispatchComponent{app: a}},
		framework.NamedComponent{Name: "sessionPersistence", Component: &sessionPersistenceComponent{session: a.session, cookie: a.settings.Session.Cookie}},
		framework.NamedComponent{Name: "standardsCompliance", Component: standardsComplianceComponent{}},
	)
}

func (h *ExternalRequestHandler) addPoweredByHeader(r *framework.Response) {
	var token string

	switch h.app.settings.Http.ApplicationToken {
	case TokenOff:
		return
	case TokenApplicationName:
		token = ApplicationName
	case TokenMajorVersion:
		token = ApplicationName + "/" + MajorVersion
	default:
		token = ApplicationName + "/" + MinorVersion
	}

	r.Headers().Set("X-Flow-Powered", token)
}
