package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/bootstrap"
	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/message"
	"github.com/cvette/pmflow/internal/pool"
	"github.com/cvette/pmflow/internal/session"
)

const childEnv = "PMFLOW_PROCESS_TEST_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" {
		runChild()
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func TestNew_StartsProcess(t *testing.T) {
	app := newTestApp(t)

	assert.True(t, app.Healthy())
	assert.NotZero(t, app.Pid())
	assert.True(t, app.ActiveRequestHandler().CanHandleRequest())
	assert.Equal(t, session.DefaultName, app.Session().Name())
}

func TestNew_FailsForUnknownCommand(t *testing.T) {
	_, err := New(context.Background(), bootstrap.Params{Log: zap.NewNop()}, Config{
		Cmd: "/nonexistent/pmflow-child",
	})
	assert.Error(t, err)
}

func TestNew_FailsIfProcessExits(t *testing.T) {
	_, err := New(context.Background(), bootstrap.Params{Log: zap.NewNop()}, Config{
		Cmd:          "sh",
		Args:         []string{"-c", "echo broken >&2; exit 1"},
		StartTimeout: 5 * time.Second,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken")
}

func TestNewFactory_ReturnsApplication(t *testing.T) {
	app, err := NewFactory(childConfig())(context.Background(), bootstrap.Params{
		AppEnv: "Testing",
		Log:    zap.NewNop(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		app.Shutdown(context.Background(), framework.RunlevelCompiletime)
	})

	assert.Equal(t, os.Args[0], framework.String(app.Settings(), "process.cmd"))
}

func TestHandleRequest_MapsResult(t *testing.T) {
	app := newTestApp(t)

	scope := framework.NewScope()
	res := handle(t, app, scope, newRequest("POST", "/", strings.NewReader("body")))

	assert.Equal(t, 200, res.StatusCode())
	assert.Equal(t, "hello POST body", string(res.Content()))
	assert.Equal(t, "yes", res.Headers().Get("X-Child"))
	assert.Equal(t, "Testing", res.Headers().Get("X-Appenv"))

	cookies := res.Headers().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "a=1", cookies[0].String())
	assert.Equal(t, "b=2; HttpOnly", cookies[1].String())

	assert.Equal(t, "1", scope.Headers().Get("X-Legacy"))
	assert.Equal(t, 5, scope.DiscardOutput())
}

func TestHandleRequest_SendsFiles(t *testing.T) {
	app := newTestApp(t)

	req := framework.NewRequest(nil, nil, nil, nil, framework.Files{
		"docs": {Children: framework.Files{
			"0": {File: framework.NewUploadedFile("/tmp/upload1", 3, 0, "a.txt", "text/plain")},
		}},
	}, map[string]string{"REQUEST_METHOD": "POST", "REQUEST_URI": "/files"}, nil)

	res := handle(t, app, framework.NewScope(), req)

	assert.Equal(t, "docs[0]=/tmp/upload1:3:a.txt", string(res.Content()))
}

func TestHandleRequest_StartsAndResumesSession(t *testing.T) {
	store := session.NewMemoryStore()
	app := newTestAppWithStore(t, store)

	res := handle(t, app, framework.NewScope(), newRequest("GET", "/session", nil))
	assert.Equal(t, "1", string(res.Content()))

	sess := app.Session()
	require.True(t, sess.IsActive())
	assert.Equal(t, "child-session", sess.ID())

	require.NoError(t, sess.Close())
	assert.Equal(t, 1, store.Len())

	res = handle(t, app, framework.NewScope(), newRequest("GET", "/session", nil))
	assert.Equal(t, "2", string(res.Content()))
}

func TestHandleRequest_WithoutSession(t *testing.T) {
	app := newTestApp(t)

	handle(t, app, framework.NewScope(), newRequest("GET", "/", nil))

	assert.False(t, app.Session().IsActive())
}

func TestHandleRequest_ChildError(t *testing.T) {
	app := newTestApp(t)

	err := handleErr(app, newRequest("GET", "/error", nil))
	assert.ErrorContains(t, err, "boom")

	// the child keeps serving after a failed call
	assert.True(t, app.Healthy())
}

func TestHandleRequest_ChildCrash(t *testing.T) {
	app := newTestApp(t)

	err := handleErr(app, newRequest("GET", "/crash", nil))
	assert.Error(t, err)

	select {
	case <-app.proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	assert.False(t, app.Healthy())
}

func TestHandleRequest_WithoutRequest(t *testing.T) {
	app := newTestApp(t)

	handler := app.ActiveRequestHandler().(framework.ExternalRequestHandler)
	assert.ErrorIs(t, handler.HandleRequest(context.Background(), framework.NewScope()), ErrNoRequest)
}

func TestShutdown_StopsProcess(t *testing.T) {
	app := newTestApp(t)

	require.NoError(t, app.Shutdown(context.Background(), framework.RunlevelRuntime))
	assert.True(t, app.Healthy())

	shutdown(t, app)
	assert.False(t, app.Healthy())

	select {
	case <-app.proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	assert.ErrorIs(t, handleErr(app, newRequest("GET", "/", nil)), ErrNotRunning)
	assert.NoError(t, app.Shutdown(context.Background(), framework.RunlevelCompiletime))
}

func TestShutdown_AfterRequests(t *testing.T) {
	app := newTestApp(t)

	handle(t, app, framework.NewScope(), newRequest("GET", "/", nil))
	handle(t, app, framework.NewScope(), newRequest("GET", "/", nil))

	shutdown(t, app)
	assert.False(t, app.Healthy())
}

type recordingBootstrapper struct {
	*bootstrap.Bootstrapper

	mu   sync.Mutex
	apps []*Application
}

func (b *recordingBootstrapper) Bootstrap(ctx context.Context) (framework.Application, error) {
	app, err := b.Bootstrapper.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.apps = append(b.apps, app.(*Application))

	return app, nil
}

func (b *recordingBootstrapper) started() []*Application {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Application(nil), b.apps...)
}

func TestPool_RecyclesProcessWorker(t *testing.T) {
	registry := bootstrap.NewRegistry()
	require.NoError(t, registry.Register("Process", NewFactory(childConfig())))

	b, err := bootstrap.New(registry, bootstrap.Config{Adapter: "Process", AppEnv: "Testing"}, nil, zap.NewNop())
	require.NoError(t, err)

	boot := &recordingBootstrapper{Bootstrapper: b}

	p, err := pool.New(pool.Params{
		Context:      context.Background(),
		Config:       pool.Config{MaxWorkers: 1, MaxRequests: 1},
		Bootstrapper: boot,
		Log:          zap.NewNop(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, p.Shutdown(ctx))
	})

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		res, err := p.Handle(ctx, &message.Request{
			Method: "GET",
			Header: http.Header{},
			Server: map[string]string{"REQUEST_METHOD": "GET", "REQUEST_URI": "/"},
		})
		cancel()

		require.NoError(t, err)
		assert.Equal(t, 200, res.StatusCode)
		assert.Equal(t, "yes", res.Header.Get("X-Child"))
	}

	apps := boot.started()
	require.Len(t, apps, 2)
	assert.NotEqual(t, apps[0].Pid(), apps[1].Pid())

	select {
	case <-apps[0].proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("recycled worker process did not exit")
	}

	assert.False(t, apps[0].Healthy())
}

func childConfig() Config {
	return Config{
		Cmd:          os.Args[0],
		Env:          map[string]string{childEnv: "1"},
		StartTimeout: 10 * time.Second,
		StopTimeout:  2 * time.Second,
	}
}

func newTestApp(t *testing.T) *Application {
	return newTestAppWithStore(t, nil)
}

func newTestAppWithStore(t *testing.T, store session.Store) *Application {
	t.Helper()

	app, err := New(context.Background(), bootstrap.Params{
		AppEnv:       "Testing",
		SessionStore: store,
		Log:          zap.NewNop(),
	}, childConfig())
	require.NoError(t, err)

	t.Cleanup(func() {
		shutdown(t, app)
	})

	return app
}

// shutdown fails the test if the application does not stop in time.
func shutdown(t *testing.T, app *Application) {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- app.Shutdown(context.Background(), framework.RunlevelCompiletime)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not return")
	}
}

func newRequest(method, uri string, body io.Reader) *framework.Request {
	return framework.NewRequest(nil, nil, nil, nil, nil, map[string]string{
		"REQUEST_METHOD": method,
		"REQUEST_URI":    uri,
		"HTTP_HOST":      "example.com",
	}, body)
}

func handleErr(app *Application, req *framework.Request) error {
	handler := app.ActiveRequestHandler().(framework.ExternalRequestHandler)
	handler.SetRequest(req)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return handler.HandleRequest(ctx, framework.NewScope())
}

func handle(t *testing.T, app *Application, scope *framework.Scope, req *framework.Request) *framework.Response {
	t.Helper()

	handler := app.ActiveRequestHandler().(framework.ExternalRequestHandler)
	handler.SetRequest(req)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, handler.HandleRequest(ctx, scope))

	res := handler.HTTPResponse()
	require.NotNil(t, res)

	return res
}

// MARK: - child process

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return os.Stdin.Close() }

type serverConn struct {
	*framedPipe
}

func (serverConn) SetWriteDeadline(time.Time) error { return nil }

func runChild() {
	server := rpc.NewServer()
	if err := server.RegisterName("flow", &childService{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	server.ServeCodec(rpc.NewCodec(serverConn{newFramedPipe(stdio{os.Stdin, os.Stdout})}), 0)
}

type childService struct{}

func (s *childService) Ping() string { return "pong" }

func (s *childService) Handle(p HandleParams) (*HandleResult, error) {
	u, err := url.Parse(p.URI)
	if err != nil {
		return nil, err
	}

	switch u.Path {
	case "/error":
		return nil, errors.New("boom")

	case "/crash":
		os.Exit(3)

	case "/files":
		lines := make([]string, 0, len(p.Files))
		for _, f := range p.Files {
			lines = append(lines, fmt.Sprintf("%s=%s:%d:%s", f.Path, f.TmpName, f.Size, f.ClientFilename))
		}
		sort.Strings(lines)
		return &HandleResult{Status: 200, Content: []byte(strings.Join(lines, "\n"))}, nil

	case "/session":
		count := 0
		if v, ok := p.Session.Values["count"].(float64); ok {
			count = int(v)
		}
		count++

		id := p.Session.ID
		if id == "" {
			id = "child-session"
		}

		return &HandleResult{
			Status:  200,
			Content: []byte(fmt.Sprint(count)),
			Session: &SessionResult{Started: true, ID: id, Values: map[string]any{"count": count}},
		}, nil
	}

	return &HandleResult{
		Status: 200,
		Headers: map[string][]string{
			"X-Child":  {"yes"},
			"X-Appenv": {os.Getenv(EnvAppEnv)},
		},
		Cookies: []CookieResult{
			{Name: "a", Value: "1"},
			{Name: "b", Value: "2", HttpOnly: true},
		},
		Content:     []byte("hello " + p.Method + " " + string(p.Content)),
		HeaderLines: []string{"X-Legacy: 1"},
		Output:      "stray",
	}, nil
}
