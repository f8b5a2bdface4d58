package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/metrics"
)

type fakeLookup struct {
	snapshot domain.Snapshot
}

func (f *fakeLookup) Containers() domain.Snapshot { return f.snapshot }

func (f *fakeLookup) Lookup(idOrName string) (domain.Container, bool) {
	if c, ok := f.snapshot[idOrName]; ok {
		return c, true
	}
	for _, c := range f.snapshot {
		if c.Name == idOrName {
			return c, true
		}
	}
	return domain.Container{}, false
}

type fakeService struct {
	started []string
	stopped []string
	logs    map[string][]byte
	err     error
}

func (s *fakeService) ListContainers(ctx context.Context) ([]domain.Summary, error) {
	return nil, s.err
}

func (s *fakeService) InspectContainer(ctx context.Context, id string) (map[string]any, error) {
	return nil, s.err
}

func (s *fakeService) StartContainer(ctx context.Context, image string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.started = append(s.started, image)
	return "new-" + image, nil
}

func (s *fakeService) StopContainer(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.stopped = append(s.stopped, id)
	return nil
}

func (s *fakeService) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.logs[id])), nil
}

func cached(id, name string, tty bool, ip string) domain.Container {
	return domain.NewContainer(id, map[string]any{"Names": []any{"/" + name}}, map[string]any{
		"Name":            "/" + name,
		"State":           map[string]any{"Running": true},
		"Config":          map[string]any{"Image": "img-" + name, "Tty": tty, "Cmd": []any{"run", name}},
		"NetworkSettings": map[string]any{"IPAddress": ip},
	})
}

func newTestApp(t *testing.T, service *fakeService, lookup *fakeLookup) *fiber.App {
	t.Helper()
	app := fiber.New()
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	Register(app, Handlers{
		Containers: NewContainerHandler(service, lookup, nil),
		Cmdline:    NewCmdlineHandler(),
		Proxy:      NewProxyHandler(lookup, "localhost", nil),
		Gatherer:   reg,
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestListContainers(t *testing.T) {
	lookup := &fakeLookup{snapshot: domain.Snapshot{
		"b1": cached("b1", "web", false, ""),
		"a1": cached("a1", "db", true, ""),
	}}
	app := newTestApp(t, &fakeService{}, lookup)

	status, body := do(t, app, http.MethodGet, "/api/v1/containers", "")
	require.Equal(t, http.StatusOK, status)

	var views []ContainerView
	require.NoError(t, json.Unmarshal([]byte(body), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "db", views[0].Name)
	assert.Equal(t, "web", views[1].Name)
	assert.True(t, views[0].TTY)
	assert.Equal(t, []string{"run", "web"}, views[1].Command)
}

func TestGetContainer(t *testing.T) {
	lookup := &fakeLookup{snapshot: domain.Snapshot{"b1": cached("b1", "web", false, "")}}
	app := newTestApp(t, &fakeService{}, lookup)

	status, body := do(t, app, http.MethodGet, "/api/v1/containers/web", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"id":"b1"`)

	status, _ = do(t, app, http.MethodGet, "/api/v1/containers/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStartContainer(t *testing.T) {
	service := &fakeService{}
	app := newTestApp(t, service, &fakeLookup{})

	status, body := do(t, app, http.MethodPost, "/api/v1/containers", `{"image":"nginx"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Contains(t, body, `"id":"new-nginx"`)
	assert.Equal(t, []string{"nginx"}, service.started)

	status, _ = do(t, app, http.MethodPost, "/api/v1/containers", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	service.err = errors.New("pull denied")
	status, body = do(t, app, http.MethodPost, "/api/v1/containers", `{"image":"private"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "pull denied")
}

func TestStopContainerResolvesName(t *testing.T) {
	service := &fakeService{}
	lookup := &fakeLookup{snapshot: domain.Snapshot{"b1": cached("b1", "web", false, "")}}
	app := newTestApp(t, service, lookup)

	status, _ := do(t, app, http.MethodDelete, "/api/v1/containers/web", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, app, http.MethodDelete, "/api/v1/containers/unknown", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"b1", "unknown"}, service.stopped)
}

func TestGetContainerLogsDemultiplexes(t *testing.T) {
	var framed bytes.Buffer
	stdcopy.NewStdWriter(&framed, stdcopy.Stdout).Write([]byte("out line\n"))
	stdcopy.NewStdWriter(&framed, stdcopy.Stderr).Write([]byte("err line\n"))

	service := &fakeService{logs: map[string][]byte{
		"b1": framed.Bytes(),
		"a1": []byte("raw tty \x1b[1mbold\x1b[m\r\n"),
	}}
	lookup := &fakeLookup{snapshot: domain.Snapshot{
		"b1": cached("b1", "web", false, ""),
		"a1": cached("a1", "shell", true, ""),
	}}
	app := newTestApp(t, service, lookup)

	status, body := do(t, app, http.MethodGet, "/api/v1/containers/web/logs", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "out line\nerr line\n", body)

	status, body = do(t, app, http.MethodGet, "/api/v1/containers/shell/logs", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "raw tty \x1b[1mbold\x1b[m\r\n", body)
}

func TestCmdline(t *testing.T) {
	app := newTestApp(t, &fakeService{}, &fakeLookup{})

	status, body := do(t, app, http.MethodPost, "/api/v1/cmdline/quote", `{"words":["echo","hello world"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"text":"echo \"hello world\""}`, body)

	status, body = do(t, app, http.MethodPost, "/api/v1/cmdline/unquote", `{"text":"sh -c 'echo hi'"}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"words":["sh","-c","echo hi"]}`, body)

	status, body = do(t, app, http.MethodPost, "/api/v1/cmdline/unquote", `{"text":""}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"words":[]}`, body)
}

func TestMetricsRoute(t *testing.T) {
	app := newTestApp(t, &fakeService{}, &fakeLookup{})
	status, body := do(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "lighthouse_cache_containers")
}
