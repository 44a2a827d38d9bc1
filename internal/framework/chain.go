package framework

import (
	"context"
	"fmt"
	"io"
)

// ComponentContext carries the request, the response and per-request
// parameters through the component chain.
type ComponentContext struct {
	ctx        context.Context
	request    *Request
	response   *Response
	scope      *Scope
	parameters map[string]map[string]any
	cancelled  bool
}

// NewComponentContext creates a component context for one request.
func NewComponentContext(ctx context.Context, request *Request, response *Response, scope *Scope) *ComponentContext {
	if scope == nil {
		scope = NewScope()
	}

	return &ComponentContext{
		ctx:        ctx,
		request:    request,
		response:   response,
		scope:      scope,
		parameters: make(map[string]map[string]any),
	}
}

func (c *ComponentContext) Context() context.Context { return c.ctx }

func (c *ComponentContext) Request() *Request { return c.request }

func (c *ComponentContext) Response() *Response { return c.response }

func (c *ComponentContext) Scope() *Scope { return c.scope }

// Output returns the writer for stray output of the request.
func (c *ComponentContext) Output() io.Writer { return c.scope.Output() }

// SetParameter stores a parameter for the given component.
func (c *ComponentContext) SetParameter(component, name string, value any) {
	params, ok := c.parameters[component]
	if !ok {
		params = make(map[string]any)
		c.parameters[component] = params
	}
	params[name] = value
}

// Parameter returns a parameter stored for the given component.
func (c *ComponentContext) Parameter(component, name string) (any, bool) {
	v, ok := c.parameters[component][name]
	return v, ok
}

// CancelChain stops the chain after the current component.
func (c *ComponentContext) CancelChain() { c.cancelled = true }

func (c *ComponentContext) Cancelled() bool { return c.cancelled }

// Component is a single stage of the request processing pipeline.
type Component interface {
	Handle(*ComponentContext) error
}

// ComponentFunc adapts a function to the Component interface.
type ComponentFunc func(*ComponentContext) error

func (f ComponentFunc) Handle(c *ComponentContext) error {
	return f(c)
}

// NamedComponent pairs a component with a name for diagnostics.
type NamedComponent struct {
	Name      string
	Component Component
}

// ComponentChain runs its components in order until one fails or the
// chain is cancelled.
type ComponentChain struct {
	components []NamedComponent
	response   *Response
}

// NewComponentChain creates a chain from the given components.
func NewComponentChain(components ...NamedComponent) *ComponentChain {
	return &ComponentChain{components: components}
}

// Handle runs the chain.
func (c *ComponentChain) Handle(cc *ComponentContext) error {
	defer func() {
		c.response = cc.Response()
	}()

	for _, component := range c.components {
		if err := cc.Context().Err(); err != nil {
			return err
		}

		if err := component.Component.Handle(cc); err != nil {
			return fmt.Errorf("component %q: %w", component.Name, err)
		}

		if cc.Cancelled() {
			break
		}
	}

	return nil
}

// Response returns the response of the last run.
func (c *ComponentChain) Response() *Response {
	return c.response
}

// Components returns the names of the chained components in order.
func (c *ComponentChain) Components() []string {
	names := make([]string, 0, len(c.components))
	for _, component := range c.components {
		names = append(names, component.Name)
	}
	return names
}
