package flow

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/session"
)

// RouteAttribute is the request attribute holding the name of the matched
// route.
const RouteAttribute = "flow.route"

const (
	routingParam = "routing"
	varsParam    = "vars"
)

const defaultContentType = "text/html; charset=UTF-8"

// sessionComponent resumes the session when the request carries its cookie.
type sessionComponent struct {
	session *session.Manager
}

func (c *sessionComponent) Handle(cc *framework.ComponentContext) error {
	id, ok := cc.Request().Cookie(c.session.Name())
	if !ok || id == "" || id != c.session.ID() || c.session.IsActive() {
		return nil
	}

	return c.session.Start()
}

type routingComponent struct {
	app *Application
}

func (c *routingComponent) Handle(cc *framework.ComponentContext) error {
	req := cc.Request()

	u := req.URI()
	u.Path = req.RelativePath()

	hr, err := http.NewRequestWithContext(cc.Context(), req.Method(), u.String(), nil)
	if err != nil {
		return err
	}

	m, ok := c.app.match(hr)
	if !ok {
		status := http.StatusNotFound
		if errors.Is(m.MatchErr, mux.ErrMethodMismatch) {
			status = http.StatusMethodNotAllowed
		}

		res := cc.Response()
		res.SetStatus(status)
		res.Headers().Set("Content-Type", "text/plain; charset=UTF-8")
		res.SetContent([]byte(http.StatusText(status)))

		return nil
	}

	req.SetAttribute(RouteAttribute, m.Route.GetName())
	cc.SetParameter(routingParam, varsParam, m.Vars)

	return nil
}

type dispatchComponent struct {
	app *Application
}

func (c *dispatchComponent) Handle(cc *framework.ComponentContext) error {
	v, _ := cc.Request().Attribute(RouteAttribute)
	name, _ := v.(string)
	if name == "" {
		return nil
	}

	action, ok := c.app.actions[name]
	if !ok {
		return ErrActionNotFound
	}

	vars, _ := cc.Parameter(routingParam, varsParam)
	ac := &ActionContext{
		Request:  cc.Request(),
		Response: cc.Response(),
		ctx:      cc.Context(),
		cc:       cc,
		session:  c.app.session,
		settings: c.app.settings,
	}
	ac.Vars, _ = vars.(map[string]string)

	if err := action(ac); err != nil {
		return err
	}

	c.app.signals.Dispatch(SignalRequestDispatched, name)

	return nil
}

// sessionPersistenceComponent emits the session cookie for an active
// session.
type sessionPersistenceComponent struct {
	session *session.Manager
	cookie  CookieSettings
}

func (c *sessionPersistenceComponent) Handle(cc *framework.ComponentContext) error {
	if !c.session.IsActive() {
		return nil
	}

	cookie := framework.NewCookie(c.session.Name(), c.session.ID())
	cookie.Path = c.cookie.Path
	cookie.Domain = c.cookie.Domain
	cookie.Secure = c.cookie.Secure
	cookie.HttpOnly = c.cookie.HttpOnly == nil || *c.cookie.HttpOnly
	if c.cookie.Lifetime > 0 {
		cookie.Expires = time.Now().Add(time.Duration(c.cookie.Lifetime) * time.Second)
	}

	cc.Response().Headers().SetCookie(cookie)

	return nil
}

type standardsComplianceComponent struct{}

func (standardsComplianceComponent) Handle(cc *framework.ComponentContext) error {
	req, res := cc.Request(), cc.Response()

	if len(res.Content()) > 0 && !res.Headers().Has("Content-Type") {
		res.Headers().Set("Content-Type", defaultContentType)
	}

	switch res.StatusCode() {
	case http.StatusNoContent, http.StatusNotModified:
		res.SetContent(nil)
		res.Headers().Remove("Content-Type")
		return nil
	}

	if req.Method() == http.MethodHead {
		if !res.Headers().Has("Content-Length") {
			res.Headers().Set("Content-Length", strconv.Itoa(len(res.Content())))
		}
		res.SetContent(nil)
	}

	return nil
}
