package process

import (
	"net/url"
)

// JSON-RPC methods served by the child process.
const (
	MethodPing   = "flow_ping"
	MethodHandle = "flow_handle"
)

// HandleParams is the request handed to the child process.
type HandleParams struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	BaseURI string            `json:"baseUri"`
	Query   url.Values        `json:"query"`
	Body    url.Values        `json:"body"`
	Cookies map[string]string `json:"cookies"`
	Files   []FileParams      `json:"files"`
	Server  map[string]string `json:"server"`
	Content []byte            `json:"content"`
	Session SessionParams     `json:"session"`
}

// FileParams describes an uploaded file by its field path, e.g.
// "docs[0][a]".
type FileParams struct {
	Path            string `json:"path"`
	TmpName         string `json:"tmpName"`
	Size            int64  `json:"size"`
	Error           int    `json:"error"`
	ClientFilename  string `json:"clientFilename"`
	ClientMediaType string `json:"clientMediaType"`
}

type SessionParams struct {
	Name   string         `json:"name"`
	ID     string         `json:"id"`
	Values map[string]any `json:"values,omitempty"`
}

// HandleResult is the response returned by the child process.
type HandleResult struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers"`
	Cookies []CookieResult      `json:"cookies"`
	Content []byte              `json:"content"`

	// HeaderLines are raw "Name: value" header lines sent outside of the
	// response object.
	HeaderLines []string `json:"headerLines"`

	// Output is output written outside of the response body.
	Output string `json:"output"`

	Session *SessionResult `json:"session,omitempty"`
}

type CookieResult struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Path   string `json:"path"`
	Domain string `json:"domain"`

	// Expires is a unix timestamp; 0 means no expiry.
	Expires  int64 `json:"expires"`
	Secure   bool  `json:"secure"`
	HttpOnly bool  `json:"httpOnly"`
}

type SessionResult struct {
	// Started is set if the request started or resumed a session.
	Started bool           `json:"started"`
	ID      string         `json:"id"`
	Values  map[string]any `json:"values"`
}
