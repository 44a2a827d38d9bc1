package framework_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvette/pmflow/internal/framework"
)

func TestCookie_String(t *testing.T) {
	tests := []struct {
		name   string
		cookie *framework.Cookie
		want   string
	}{
		{"plain", framework.NewCookie("a", "1"), "a=1"},
		{"http only", &framework.Cookie{Name: "b", Value: "2", HttpOnly: true}, "b=2; HttpOnly"},
		{"path and domain", &framework.Cookie{Name: "c", Value: "3", Path: "/app", Domain: "example.org"}, "c=3; Path=/app; Domain=example.org"},
		{"secure", &framework.Cookie{Name: "d", Value: "", Secure: true}, "d=; Secure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cookie.String())
		})
	}
}

func TestHeaders_SetCookieReplacesByName(t *testing.T) {
	h := framework.NewHeaders()

	h.SetCookie(framework.NewCookie("a", "1"))
	h.SetCookie(framework.NewCookie("b", "2"))
	h.SetCookie(framework.NewCookie("a", "3"))

	require.Len(t, h.Cookies(), 2)
	assert.Equal(t, "3", h.Cookies()[0].Value)
	assert.Equal(t, "b", h.Cookies()[1].Name)
}

func TestScope_HeaderLines(t *testing.T) {
	s := framework.NewScope()

	s.Header("content-type: text/html")
	s.Header("X-Multi: a")
	s.Header("x-multi:b")
	s.Header("garbage")

	headers := s.Headers()

	assert.Equal(t, []string{"text/html"}, headers["Content-Type"])
	assert.Equal(t, []string{"a", "b"}, headers["X-Multi"])
	assert.Len(t, headers, 2)

	s.ClearHeaders()
	assert.Empty(t, s.Headers())
}

func TestScope_DiscardOutput(t *testing.T) {
	s := framework.NewScope()

	_, _ = s.Output().Write([]byte("stray"))

	assert.Equal(t, 5, s.DiscardOutput())
	assert.Equal(t, 0, s.DiscardOutput())
}

func TestMapSettings_Get(t *testing.T) {
	s := framework.MapSettings{
		"http": map[string]any{
			"baseUri": "https://example.com/",
		},
	}

	v, ok := s.Get("http.baseUri")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/", v)

	_, ok = s.Get("http.missing")
	assert.False(t, ok)

	_, ok = s.Get("http.baseUri.deeper")
	assert.False(t, ok)

	assert.Equal(t, "https://example.com/", framework.String(s, "http.baseUri"))
	assert.Empty(t, framework.String(nil, "http.baseUri"))
}

func TestRequest_Defaults(t *testing.T) {
	r := framework.NewRequest(nil, nil, nil, nil, nil, nil, nil)

	assert.Equal(t, "GET", r.Method())
	assert.NotNil(t, r.Query())
	assert.NotNil(t, r.Cookies())
	assert.Equal(t, "/", r.URI().Path)
}

func TestRequest_URIFromServer(t *testing.T) {
	r := framework.NewRequest(nil, nil, nil, nil, nil, map[string]string{
		"REQUEST_URI":    "/shop/cart?item=1",
		"HTTP_HOST":      "example.com",
		"HTTPS":          "on",
		"REQUEST_METHOD": "post",
		"HTTP_X_TRACE":   "abc",
	}, nil)

	u := r.URI()
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "example.com", u.Host)
	assert.Equal(t, "/shop/cart", u.Path)
	assert.Equal(t, "item=1", u.RawQuery)
	assert.Equal(t, "POST", r.Method())
	assert.Equal(t, "abc", r.Header("X-Trace"))
}

func TestRequest_RelativePathWithBaseURI(t *testing.T) {
	r := framework.NewRequest(nil, nil, nil, nil, nil, map[string]string{
		"REQUEST_URI": "/shop/cart",
		"HTTP_HOST":   "example.com",
	}, nil)

	assert.Equal(t, "/shop/cart", r.RelativePath())

	base, err := url.Parse("http://example.com/shop/")
	require.NoError(t, err)
	r.SetBaseURI(base)

	assert.Equal(t, "/cart", r.RelativePath())
	assert.Equal(t, base, r.BaseURI())
}

func TestFiles_Walk(t *testing.T) {
	files := framework.Files{
		"docs": {Children: framework.Files{
			"0": {File: framework.NewUploadedFile("/tmp/a", 1, 0, "a", "text/plain")},
		}},
		"single": {File: framework.NewUploadedFile("/tmp/b", 2, 0, "b", "text/plain")},
	}

	seen := map[string]string{}
	files.Walk(func(path string, f *framework.UploadedFile) {
		seen[path] = f.TmpName()
	})

	assert.Equal(t, map[string]string{"docs[0]": "/tmp/a", "single": "/tmp/b"}, seen)
}

func TestComponentChain_RunsInOrder(t *testing.T) {
	var order []string

	record := func(name string) framework.NamedComponent {
		return framework.NamedComponent{
			Name: name,
			Component: framework.ComponentFunc(func(*framework.ComponentContext) error {
				order = append(order, name)
				return nil
			}),
		}
	}

	chain := framework.NewComponentChain(record("a"), record("b"), record("c"))
	cc := framework.NewComponentContext(context.Background(), framework.NewRequest(nil, nil, nil, nil, nil, nil, nil), framework.NewResponse(), nil)

	require.NoError(t, chain.Handle(cc))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"a", "b", "c"}, chain.Components())
	assert.Same(t, cc.Response(), chain.Response())
}

func TestComponentChain_Cancel(t *testing.T) {
	var ran []string

	chain := framework.NewComponentChain(
		framework.NamedComponent{Name: "stop", Component: framework.ComponentFunc(func(cc *framework.ComponentContext) error {
			ran = append(ran, "stop")
			cc.CancelChain()
			return nil
		})},
		framework.NamedComponent{Name: "never", Component: framework.ComponentFunc(func(*framework.ComponentContext) error {
			ran = append(ran, "never")
			return nil
		})},
	)

	cc := framework.NewComponentContext(context.Background(), framework.NewRequest(nil, nil, nil, nil, nil, nil, nil), framework.NewResponse(), nil)

	require.NoError(t, chain.Handle(cc))
	assert.Equal(t, []string{"stop"}, ran)
}

func TestComponentChain_WrapsErrors(t *testing.T) {
	chain := framework.NewComponentChain(
		framework.NamedComponent{Name: "broken", Component: framework.ComponentFunc(func(*framework.ComponentContext) error {
			return assert.AnError
		})},
	)

	cc := framework.NewComponentContext(context.Background(), framework.NewRequest(nil, nil, nil, nil, nil, nil, nil), framework.NewResponse(), nil)

	err := chain.Handle(cc)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "broken")
}

func TestComponentChain_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := framework.NewComponentChain(
		framework.NamedComponent{Name: "a", Component: framework.ComponentFunc(func(*framework.ComponentContext) error {
			return errors.New("should not run")
		})},
	)

	cc := framework.NewComponentContext(ctx, framework.NewRequest(nil, nil, nil, nil, nil, nil, nil), framework.NewResponse(), nil)

	assert.ErrorIs(t, chain.Handle(cc), context.Canceled)
}
