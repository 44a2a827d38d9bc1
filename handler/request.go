package handler

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cvette/pmflow/internal/message"
)

// defaultMaxMemory is the part of a multipart body kept in memory; the
// rest is buffered on disk by net/http.
const defaultMaxMemory = 32 << 20

// convertedRequest is a generic request together with the resources that
// must be released once it has been handled.
type convertedRequest struct {
	*message.Request

	uploads int
	closers []io.Closer
	form    *multipart.Form
}

func (c *convertedRequest) Close() {
	for _, closer := range c.closers {
		closer.Close()
	}

	if c.form != nil {
		c.form.RemoveAll()
	}
}

// convertRequest converts an HTTP request into a generic request.
func convertRequest(r *http.Request, maxMemory int64) (*convertedRequest, error) {
	req := &message.Request{
		Method: strings.ToUpper(r.Method),
		URI:    requestURI(r),
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Files:  message.Files{},
		Server: serverParams(r),
		Body:   r.Body,
	}

	converted := &convertedRequest{Request: req}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}

		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}

		req.ParsedBody = form
		req.Body = bytes.NewReader(body)

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}

		converted.form = r.MultipartForm
		req.ParsedBody = url.Values(r.MultipartForm.Value)
		req.Body = bytes.NewReader(nil)

		for field, headers := range r.MultipartForm.File {
			keys := parseFieldName(field)

			// without an append key every file lands on the same leaf
			if !slices.Contains(keys, "") && len(headers) > 1 {
				headers = headers[len(headers)-1:]
			}

			for _, fh := range headers {
				file := converted.openUpload(fh)
				insertFile(req.Files, keys, file)
				converted.uploads++
			}
		}
	}

	return converted, nil
}

func (c *convertedRequest) openUpload(fh *multipart.FileHeader) *message.UploadedFile {
	file := &message.UploadedFile{
		Size:            fh.Size,
		ClientFilename:  fh.Filename,
		ClientMediaType: fh.Header.Get("Content-Type"),
	}

	if fh.Filename == "" && fh.Size == 0 {
		file.Error = message.UploadErrNoFile
		return file
	}

	f, err := fh.Open()
	if err != nil {
		file.Error = message.UploadErrCantWrite
		return file
	}

	c.closers = append(c.closers, f)
	file.Stream = f

	return file
}

// parseFieldName splits a form field name such as "docs[a][]" into its
// keys: "docs", "a", "".
func parseFieldName(name string) []string {
	i := strings.IndexByte(name, '[')
	if i <= 0 {
		return []string{name}
	}

	keys := []string{name[:i]}
	rest := name[i:]

	for len(rest) > 0 && rest[0] == '[' {
		j := strings.IndexByte(rest, ']')
		if j < 0 {
			break
		}

		keys = append(keys, rest[1:j])
		rest = rest[j+1:]
	}

	return keys
}

// insertFile places f in the tree at keys. An empty key appends to the
// list at that level.
func insertFile(files message.Files, keys []string, f *message.UploadedFile) {
	node := files

	for i, key := range keys {
		if key == "" {
			key = strconv.Itoa(len(node))
		}

		if i == len(keys)-1 {
			node[key] = message.Leaf(f)
			return
		}

		child, ok := node[key]
		if !ok || child.IsLeaf() {
			child = message.Branch(message.Files{})
			node[key] = child
		}

		node = child.Children
	}
}

func requestURI(r *http.Request) *url.URL {
	u := *r.URL

	u.Scheme = "http"
	if isHTTPS(r) {
		u.Scheme = "https"
	}
	u.Host = r.Host

	return &u
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// serverParams builds the server environment snapshot of a request.
func serverParams(r *http.Request) map[string]string {
	now := time.Now()

	server := map[string]string{
		"REQUEST_METHOD":     strings.ToUpper(r.Method),
		"REQUEST_URI":        r.URL.RequestURI(),
		"QUERY_STRING":       r.URL.RawQuery,
		"SERVER_PROTOCOL":    r.Proto,
		"HTTP_HOST":          r.Host,
		"REQUEST_TIME":       strconv.FormatInt(now.Unix(), 10),
		"REQUEST_TIME_FLOAT": strconv.FormatFloat(float64(now.UnixMicro())/1e6, 'f', 6, 64),
	}

	if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		server["REMOTE_ADDR"] = host
		server["REMOTE_PORT"] = port
	} else {
		server["REMOTE_ADDR"] = r.RemoteAddr
	}

	if isHTTPS(r) {
		server["HTTPS"] = "on"
	}

	for name, values := range r.Header {
		key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))

		sep := ", "
		if key == "COOKIE" {
			sep = "; "
		}
		value := strings.Join(values, sep)

		switch key {
		case "CONTENT_TYPE", "CONTENT_LENGTH":
			server[key] = value
		}

		server["HTTP_"+key] = value
	}

	return server
}
