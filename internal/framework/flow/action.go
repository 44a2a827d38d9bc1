package flow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/session"
)

var ErrActionNotFound = errors.New("no action for route")

// Action serves a routed request.
type Action func(*ActionContext) error

// ActionContext is handed to an Action.
type ActionContext struct {
	Request  *framework.Request
	Response *framework.Response

	// Vars are the variables matched from the route path.
	Vars map[string]string

	ctx      context.Context
	cc       *framework.ComponentContext
	session  *session.Manager
	settings *Settings
}

func (c *ActionContext) Context() context.Context { return c.ctx }

func (c *ActionContext) Settings() *Settings { return c.settings }

// Session returns the session, starting it if necessary.
func (c *ActionContext) Session() (*session.Manager, error) {
	if !c.session.IsActive() {
		if err := c.session.Start(); err != nil {
			return nil, err
		}
	}

	return c.session, nil
}

// Header sends a raw "Name: value" header line outside of the response
// object.
func (c *ActionContext) Header(line string) {
	c.cc.Scope().Header(line)
}

// Output is the writer for output that bypasses the response body.
func (c *ActionContext) Output() io.Writer {
	return c.cc.Output()
}

// Route is a routed action.
type Route struct {
	Name    string
	Path    string
	Methods []string
	Action  Action
}

func staticAction(rs RouteSettings) Action {
	return func(c *ActionContext) error {
		status := rs.Status
		if status == 0 {
			status = http.StatusOK
		}
		c.Response.SetStatus(status)

		if rs.ContentType != "" {
			c.Response.Headers().Set("Content-Type", rs.ContentType)
		}
		for name, value := range rs.Headers {
			c.Response.Headers().Set(name, value)
		}

		body := rs.Body
		for name, value := range c.Vars {
			body = strings.ReplaceAll(body, "{"+name+"}", value)
		}
		c.Response.SetContent([]byte(body))

		return nil
	}
}
