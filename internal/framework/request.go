package framework

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is the framework-native HTTP request.
type Request struct {
	query      url.Values
	body       url.Values
	attributes map[string]any
	cookies    map[string]string
	files      Files
	server     map[string]string
	content    io.Reader

	method  string
	baseURI *url.URL
}

// NewRequest creates a native request. The method is not part of the
// constructor and defaults to GET; use SetMethod to change it.
func NewRequest(
	query url.Values,
	body url.Values,
	attributes map[string]any,
	cookies map[string]string,
	files Files,
	server map[string]string,
	content io.Reader,
) *Request {
	if query == nil {
		query = url.Values{}
	}
	if body == nil {
		body = url.Values{}
	}
	if attributes == nil {
		attributes = map[string]any{}
	}
	if cookies == nil {
		cookies = map[string]string{}
	}
	if files == nil {
		files = Files{}
	}
	if server == nil {
		server = map[string]string{}
	}

	method := http.MethodGet
	if m, ok := server["REQUEST_METHOD"]; ok && m != "" {
		method = strings.ToUpper(m)
	}

	return &Request{
		query:      query,
		body:       body,
		attributes: attributes,
		cookies:    cookies,
		files:      files,
		server:     server,
		content:    content,
		method:     method,
	}
}

func (r *Request) Method() string { return r.method }

// SetMethod overrides the request method.
func (r *Request) SetMethod(method string) {
	r.method = strings.ToUpper(method)
}

func (r *Request) Query() url.Values { return r.query }

func (r *Request) Body() url.Values { return r.body }

func (r *Request) Cookies() map[string]string { return r.cookies }

// Cookie returns the value of the named cookie.
func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

func (r *Request) Files() Files { return r.files }

func (r *Request) Server() map[string]string { return r.server }

func (r *Request) Content() io.Reader { return r.content }

// Attribute returns the named request attribute.
func (r *Request) Attribute(name string) (any, bool) {
	v, ok := r.attributes[name]
	return v, ok
}

// SetAttribute sets a request attribute.
func (r *Request) SetAttribute(name string, value any) {
	r.attributes[name] = value
}

func (r *Request) Attributes() map[string]any { return r.attributes }

// Header returns a request header from the server snapshot, which stores
// headers as HTTP_* keys.
func (r *Request) Header(name string) string {
	key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return r.server[key]
}

// URI reconstructs the request URI from the server snapshot.
func (r *Request) URI() *url.URL {
	scheme := "http"
	if on := r.server["HTTPS"]; on != "" && on != "off" {
		scheme = "https"
	}

	u, err := url.Parse(r.server["REQUEST_URI"])
	if err != nil || u == nil {
		u = &url.URL{Path: "/"}
	}
	if u.Path == "" {
		u.Path = "/"
	}

	u.Scheme = scheme
	u.Host = r.server["HTTP_HOST"]

	return u
}

// BaseURI returns the configured base URI, or the scheme and host of the
// request URI if none was set.
func (r *Request) BaseURI() *url.URL {
	if r.baseURI != nil {
		return r.baseURI
	}

	u := r.URI()
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

// SetBaseURI overrides the base URI.
func (r *Request) SetBaseURI(u *url.URL) {
	r.baseURI = u
}

// RelativePath returns the request path relative to the base URI path.
func (r *Request) RelativePath() string {
	path := r.URI().Path
	base := r.BaseURI().Path

	if base != "" && base != "/" {
		path = strings.TrimPrefix(path, strings.TrimSuffix(base, "/"))
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return path
}
