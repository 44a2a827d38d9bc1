package bridge

import (
	"net/url"

	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/message"
)

// mapRequest converts a generic request into a native request. Uploaded
// files are spooled to disk through spool.
func (b *RequestBridge) mapRequest(req *message.Request, spool *uploadSpool) (*framework.Request, error) {
	cookies := b.mapCookies(req)

	files, err := spool.MapFiles(req.Files)
	if err != nil {
		return nil, err
	}

	body := req.ParsedBody
	if body == nil {
		body = url.Values{}
	}

	query := req.Query
	if query == nil {
		query = url.Values{}
	}

	nativeReq := framework.NewRequest(
		query,
		body,
		map[string]any{},
		cookies,
		files,
		req.Server,
		req.Body,
	)
	nativeReq.SetMethod(req.Method)

	return nativeReq, nil
}

// mapCookies parses the Cookie headers of req and aligns the worker's
// session identifier with the session cookie.
func (b *RequestBridge) mapCookies(req *message.Request) map[string]string {
	sess := b.app.Session()

	sessionName := ""
	if sess != nil {
		sessionName = sess.Name()
	}

	cookies := make(map[string]string)
	sessionCookieSet := false

	for _, c := range parseCookieHeaders(req.Header.Values("Cookie")) {
		cookies[c.name] = c.value

		if sess != nil && c.name == sessionName {
			sess.SetID(c.value)
			sessionCookieSet = true
		}
	}

	// the id is left over from a previous request on this worker and must
	// not be reused for a client that did not send it.
	if sess != nil && !sessionCookieSet && sess.ID() != "" {
		if _, err := sess.Regenerate(); err != nil {
			b.log.Warn("failed to regenerate session id", zap.Error(err))
			sess.SetID("")
		}
	}

	return cookies
}
