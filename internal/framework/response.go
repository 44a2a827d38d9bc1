package framework

import (
	"bytes"
	"net/http"
)

// Headers is the header collection of a native response. Cookies are
// kept apart from the plain header fields.
type Headers struct {
	fields  http.Header
	cookies []*Cookie
}

// NewHeaders creates an empty header collection.
func NewHeaders() *Headers {
	return &Headers{fields: make(http.Header)}
}

// Set replaces the values of a header field.
func (h *Headers) Set(name, value string) {
	h.fields.Set(name, value)
}

// Add appends a value to a header field.
func (h *Headers) Add(name, value string) {
	h.fields.Add(name, value)
}

func (h *Headers) Get(name string) string {
	return h.fields.Get(name)
}

func (h *Headers) Has(name string) bool {
	_, ok := h.fields[http.CanonicalHeaderKey(name)]
	return ok
}

func (h *Headers) Remove(name string) {
	h.fields.Del(name)
}

// All returns a copy of all header fields.
func (h *Headers) All() http.Header {
	return h.fields.Clone()
}

// SetCookie adds a cookie, replacing any cookie with the same name.
func (h *Headers) SetCookie(c *Cookie) {
	for i, existing := range h.cookies {
		if existing.Name == c.Name {
			h.cookies[i] = c
			return
		}
	}
	h.cookies = append(h.cookies, c)
}

// Cookies returns the cookies in the order they were set.
func (h *Headers) Cookies() []*Cookie {
	return h.cookies
}

// Response is the framework-native HTTP response.
type Response struct {
	status  int
	headers *Headers
	content bytes.Buffer
}

// NewResponse creates an empty 200 response.
func NewResponse() *Response {
	return &Response{
		status:  http.StatusOK,
		headers: NewHeaders(),
	}
}

func (r *Response) StatusCode() int { return r.status }

func (r *Response) SetStatus(code int) { r.status = code }

func (r *Response) Headers() *Headers { return r.headers }

// SetContent replaces the response body.
func (r *Response) SetContent(content []byte) {
	r.content.Reset()
	r.content.Write(content)
}

// Write appends to the response body.
func (r *Response) Write(p []byte) (int, error) {
	return r.content.Write(p)
}

// Content returns the response body.
func (r *Response) Content() []byte {
	return r.content.Bytes()
}
