package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cvette/pmflow/internal/framework"
)

var ErrNoRequest = errors.New("no request set")

// ExternalRequestHandler forwards requests to the child process.
type ExternalRequestHandler struct {
	app *Application

	request  *framework.Request
	response *framework.Response
}

var _ framework.ExternalRequestHandler = (*ExternalRequestHandler)(nil)

func (h *ExternalRequestHandler) CanHandleRequest() bool { return h.app.Healthy() }

func (h *ExternalRequestHandler) Priority() int { return 500 }

func (h *ExternalRequestHandler) SetRequest(r *framework.Request) {
	h.request = r
	h.response = nil
}

func (h *ExternalRequestHandler) HTTPResponse() *framework.Response {
	return h.response
}

func (h *ExternalRequestHandler) HandleRequest(ctx context.Context, scope *framework.Scope) error {
	if h.request == nil {
		return ErrNoRequest
	}

	params, err := h.params()
	if err != nil {
		return err
	}

	var result HandleResult
	if err := h.app.call(ctx, &result, MethodHandle, params); err != nil {
		return fmt.Errorf("failed to call %s: %w", MethodHandle, err)
	}

	for _, line := range result.HeaderLines {
		scope.Header(line)
	}
	if result.Output != "" {
		if _, err := io.WriteString(scope.Output(), result.Output); err != nil {
			return err
		}
	}

	if err := h.applySession(result.Session); err != nil {
		return err
	}

	h.response = buildResponse(&result)

	return h.app.Shutdown(ctx, framework.RunlevelRuntime)
}

func (h *ExternalRequestHandler) params() (*HandleParams, error) {
	req := h.request

	var content []byte
	if req.Content() != nil {
		b, err := io.ReadAll(req.Content())
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		content = b
	}

	files := make([]FileParams, 0)
	req.Files().Walk(func(path string, f *framework.UploadedFile) {
		files = append(files, FileParams{
			Path:            path,
			TmpName:         f.TmpName(),
			Size:            f.Size(),
			Error:           f.Error(),
			ClientFilename:  f.ClientFilename(),
			ClientMediaType: f.ClientMediaType(),
		})
	})

	sess := h.app.session
	sp := SessionParams{Name: sess.Name(), ID: sess.ID()}
	if sp.ID != "" {
		sp.Values, _ = h.app.store.Load(sp.ID)
	}

	return &HandleParams{
		Method:  req.Method(),
		URI:     req.URI().String(),
		BaseURI: req.BaseURI().String(),
		Query:   req.Query(),
		Body:    req.Body(),
		Cookies: req.Cookies(),
		Files:   files,
		Server:  req.Server(),
		Content: content,
		Session: sp,
	}, nil
}

// applySession mirrors a session started by the child so that it is
// persisted when the request ends.
func (h *ExternalRequestHandler) applySession(res *SessionResult) error {
	if res == nil || !res.Started {
		return nil
	}

	sess := h.app.session
	if res.ID != "" && res.ID != sess.ID() {
		if sess.IsActive() {
			if err := sess.Close(); err != nil {
				return err
			}
		}
		sess.SetID(res.ID)
	}

	if !sess.IsActive() {
		if err := sess.Start(); err != nil {
			return err
		}
	}

	sess.Reset()
	for k, v := range res.Values {
		if err := sess.Set(k, v); err != nil {
			return err
		}
	}

	return nil
}

func buildResponse(result *HandleResult) *framework.Response {
	res := framework.NewResponse()

	if result.Status != 0 {
		res.SetStatus(result.Status)
	}

	for name, values := range result.Headers {
		for _, v := range values {
			res.Headers().Add(name, v)
		}
	}

	for _, c := range result.Cookies {
		cookie := framework.NewCookie(c.Name, c.Value)
		cookie.Path = c.Path
		cookie.Domain = c.Domain
		cookie.Secure = c.Secure
		cookie.HttpOnly = c.HttpOnly
		if c.Expires > 0 {
			cookie.Expires = time.Unix(c.Expires, 0)
		}
		res.Headers().SetCookie(cookie)
	}

	res.SetContent(result.Content)

	return res
}
