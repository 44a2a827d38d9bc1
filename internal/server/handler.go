package server

import (
	"net/http"

	"go.uber.org/fx"
)

// HttpHandler is a handler mounted on the server router. Prefix handlers
// match every path below Path and are tried after exact handlers.
type HttpHandler struct {
	Path    string
	Prefix  bool
	Handler http.Handler
}

type HttpHandlerResult struct {
	fx.Out

	Handler *HttpHandler `group:"handlers"`
}

// AsHttpHandler mounts handler on the exact path.
func AsHttpHandler(path string, handler http.Handler) HttpHandlerResult {
	return HttpHandlerResult{
		Handler: &HttpHandler{
			Path:    path,
			Handler: handler,
		},
	}
}

// AsHttpPrefixHandler mounts handler on every path below prefix.
func AsHttpPrefixHandler(prefix string, handler http.Handler) HttpHandlerResult {
	return HttpHandlerResult{
		Handler: &HttpHandler{
			Path:    prefix,
			Prefix:  true,
			Handler: handler,
		},
	}
}
