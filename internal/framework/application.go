// Package framework holds the contracts between the request bridge and a
// framework adapter, together with the framework-native request, response,
// cookie and upload types.
package framework

import (
	"context"
	"errors"
)

// Runlevel identifies how far an application has been booted.
type Runlevel string

const (
	// RunlevelCompiletime is the reduced runlevel used for setup tasks.
	RunlevelCompiletime Runlevel = "Compiletime"

	// RunlevelRuntime is the full runlevel used when serving requests.
	RunlevelRuntime Runlevel = "Runtime"
)

func (r Runlevel) String() string {
	return string(r)
}

var ErrNoResponse = errors.New("request handler produced no response")

// Application is a bootstrapped framework instance, kept alive for the
// lifetime of a worker.
type Application interface {
	// ActiveRequestHandler returns the handler that serves requests.
	ActiveRequestHandler() RequestHandler

	// Settings returns the application settings.
	Settings() Settings

	// Session returns the worker's session state.
	Session() Session

	// Shutdown shuts the application down to the given runlevel.
	Shutdown(ctx context.Context, runlevel Runlevel) error
}

// RequestHandler is the generic request handler interface of the framework.
type RequestHandler interface {
	CanHandleRequest() bool
	Priority() int
}

// ExternalRequestHandler is a request handler that is fed requests from
// outside the framework instead of reading them from the environment.
type ExternalRequestHandler interface {
	RequestHandler

	// SetRequest sets the request to handle next.
	SetRequest(*Request)

	// HandleRequest runs the full request lifecycle. Headers set outside of
	// the response object and stray output go to the scope.
	HandleRequest(ctx context.Context, scope *Scope) error

	// HTTPResponse returns the response of the last handled request.
	HTTPResponse() *Response
}

// Session is the session state of a worker.
type Session interface {
	// Name is the name of the session cookie.
	Name() string

	// ID returns the current session identifier, or "" if none is set.
	ID() string

	// SetID sets the session identifier to use.
	SetID(id string)

	// Regenerate assigns a freshly generated identifier.
	Regenerate() (string, error)

	// IsActive reports whether the session has been started.
	IsActive() bool

	// Close writes the session data and ends the session.
	Close() error

	// Reset clears the in-process session value cache.
	Reset()
}
