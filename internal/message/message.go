// Package message defines the transport-agnostic HTTP request and response
// exchanged between the process front and the workers.
package message

import (
	"io"
	"net/http"
	"net/url"
)

// Upload error codes, numbered like the UPLOAD_ERR_* codes web
// frameworks expect.
const (
	UploadErrOK        = 0
	UploadErrIniSize   = 1
	UploadErrFormSize  = 2
	UploadErrPartial   = 3
	UploadErrNoFile    = 4
	UploadErrNoTmpDir  = 6
	UploadErrCantWrite = 7
	UploadErrExtension = 8
)

// Request is the generic inbound request handed to a worker.
type Request struct {
	// Method is the HTTP method, upper-cased.
	Method string

	// URI is the full request URI.
	URI *url.URL

	// Query holds the parsed query parameters.
	Query url.Values

	// ParsedBody holds the parsed form fields. It is nil if the body
	// was not a form submission.
	ParsedBody url.Values

	// Header holds the request headers, including repeated Cookie headers.
	Header http.Header

	// Files holds the uploaded files, possibly nested.
	Files Files

	// Server is a snapshot of the server environment for the request.
	Server map[string]string

	// Body is the raw request body.
	Body io.Reader
}

// UploadedFile describes a single file received with a request.
type UploadedFile struct {
	Size            int64
	Error           int
	ClientFilename  string
	ClientMediaType string

	// Stream yields the file content. It may be nil if Error is set.
	Stream io.Reader
}

// FileNode is a node of the uploaded file tree. A node is either a leaf
// holding File, or a branch holding Children.
type FileNode struct {
	File     *UploadedFile
	Children Files
}

// IsLeaf reports whether the node holds a file.
func (n *FileNode) IsLeaf() bool {
	return n != nil && n.File != nil
}

// Files maps form field names (or list indices) to file nodes.
type Files map[string]*FileNode

// Leaf returns a leaf node for the given file.
func Leaf(f *UploadedFile) *FileNode {
	return &FileNode{File: f}
}

// Branch returns a branch node with the given children.
func Branch(children Files) *FileNode {
	return &FileNode{Children: children}
}

// Response is the generic outbound response produced by a worker.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewTextResponse creates a plain-text response with the given status.
func NewTextResponse(status int, body string) *Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain")

	return &Response{
		StatusCode: status,
		Header:     header,
		Body:       []byte(body),
	}
}
