package bridge

import (
	"net/http"
	"strconv"

	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/message"
)

// mapResponse converts a native response into a generic response. Headers
// recorded in the scope fill the gaps left by the native header collection.
func (b *RequestBridge) mapResponse(res *framework.Response, scope *framework.Scope) *message.Response {
	b.endSession()

	header := scope.Headers()
	scope.ClearHeaders()

	for name, values := range res.Headers().All() {
		header[name] = values
	}

	if cookies := formatCookies(res.Headers().Cookies()); len(cookies) > 0 {
		header["Set-Cookie"] = append(header["Set-Cookie"], cookies...)
	}

	content := res.Content()
	body := make([]byte, len(content))
	copy(body, content)

	if header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	status := res.StatusCode()
	if status == 0 {
		status = http.StatusOK
	}

	return &message.Response{
		StatusCode: status,
		Header:     header,
		Body:       body,
	}
}
