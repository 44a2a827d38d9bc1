package framework

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// Scope collects what the framework emits outside of its response object
// while handling a single request: header lines set through the legacy
// header API and stray direct output. A scope belongs to one request and
// is discarded with it.
type Scope struct {
	names  []string
	values map[string][]string
	output bytes.Buffer
}

// NewScope creates an empty request scope.
func NewScope() *Scope {
	return &Scope{values: make(map[string][]string)}
}

// Header records a raw header line of the form "Name: value". Lines
// without a colon are ignored.
func (s *Scope) Header(line string) {
	pos := strings.IndexByte(line, ':')
	if pos < 0 {
		return
	}

	s.AddHeader(line[:pos], strings.TrimSpace(line[pos+1:]))
}

// AddHeader records a header value, keeping earlier values of the same name.
func (s *Scope) AddHeader(name, value string) {
	key := http.CanonicalHeaderKey(strings.TrimSpace(name))
	if key == "" {
		return
	}

	if _, ok := s.values[key]; !ok {
		s.names = append(s.names, key)
	}
	s.values[key] = append(s.values[key], value)
}

// Headers returns a snapshot of the recorded headers.
func (s *Scope) Headers() http.Header {
	snapshot := make(http.Header, len(s.names))
	for _, name := range s.names {
		snapshot[name] = append([]string(nil), s.values[name]...)
	}
	return snapshot
}

// Output returns the writer that captures stray output.
func (s *Scope) Output() io.Writer {
	return &s.output
}

// DiscardOutput drops the captured output and returns the number of
// discarded bytes.
func (s *Scope) DiscardOutput() int {
	n := s.output.Len()
	s.output.Reset()
	return n
}

// ClearHeaders drops the recorded headers.
func (s *Scope) ClearHeaders() {
	s.names = nil
	s.values = make(map[string][]string)
}
