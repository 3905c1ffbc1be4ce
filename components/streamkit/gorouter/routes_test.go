package gorouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-streamkit/components/streamkit"
	"github.com/goliatone/go-streamkit/components/streamkit/commands"
	"github.com/goliatone/go-streamkit/components/streamkit/queries"
)

func TestRegisterValidatesConfig(t *testing.T) {
	if err := Register(Config[struct{}]{}); err == nil {
		t.Fatalf("expected error when router/controller missing")
	}
}

func TestDefaultRouteConfig(t *testing.T) {
	routes := defaultRouteConfig(RouteConfig{Widget: "/w/:region/:accountId/:type"})
	if routes.Widget != "/w/:region/:accountId/:type" {
		t.Fatalf("expected custom widget path to survive, got %s", routes.Widget)
	}
	if routes.WebSocket != "/widgets/ws" || routes.Health != "/healthz" {
		t.Fatalf("expected defaults to fill empty paths, got %+v", routes)
	}
}

func TestQueryValues(t *testing.T) {
	values := queryValues(map[string]string{streamkit.QueryVars: "total_kd", "hero_name": "Haze"})
	cfg := streamkit.FromQuery(streamkit.WidgetTypeBox, values)
	if len(cfg.Variables) != 1 || cfg.Variables[0] != "total_kd" {
		t.Fatalf("unexpected variables %v", cfg.Variables)
	}
	if cfg.ExtraArgs["hero_name"] != "Haze" {
		t.Fatalf("expected extra args to survive, got %v", cfg.ExtraArgs)
	}
}

func TestWidgetRouteStatuses(t *testing.T) {
	cases := []struct {
		name     string
		params   map[string]string
		status   int
		template string
	}{
		{
			name:     "missing account",
			params:   map[string]string{"region": "Europe", "type": "box"},
			status:   http.StatusBadRequest,
			template: streamkit.TemplateMessage,
		},
		{
			name:     "unknown type",
			params:   map[string]string{"region": "Europe", "accountId": "22202", "type": "ticker"},
			status:   http.StatusNotFound,
			template: streamkit.TemplateMessage,
		},
		{
			name:     "box widget",
			params:   map[string]string{"region": "Europe", "accountId": "22202", "type": "box"},
			status:   http.StatusOK,
			template: streamkit.TemplateBox,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock, renderer, service := registerTestRoutes(t, &stubExecutor{})
			h := mock.handler(t, "GET:/widgets/:region/:accountId/:type")

			ctx := newMockContext()
			ctx.params = tc.params
			ctx.queries = map[string]string{streamkit.QueryShowHeader: "false"}
			if err := h(ctx); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if ctx.status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, ctx.status)
			}
			if renderer.lastTemplate != tc.template {
				t.Fatalf("expected template %s, got %s", tc.template, renderer.lastTemplate)
			}
			if string(ctx.body) != "ok" {
				t.Fatalf("expected rendered body, got %q", ctx.body)
			}
			if ctx.headers["Content-Type"] != "text/html; charset=utf-8" {
				t.Fatalf("expected html content type, got %q", ctx.headers["Content-Type"])
			}
			if tc.status == http.StatusOK {
				if service.remembered.ShowHeader {
					t.Fatalf("expected query to reach the widget config")
				}
			} else if service.remembered.Type != "" {
				t.Fatalf("advisory pages must not remember a widget")
			}
		})
	}
}

func TestBuilderRoutesAcceptGetAndPost(t *testing.T) {
	api := &stubExecutor{}
	mock, _, _ := registerTestRoutes(t, api)

	get := newMockContext()
	get.queries = map[string]string{"region": "Europe", "accountId": "22202", "template": "{hero_kills}", "hero_name": "Haze"}
	if err := mock.handler(t, "GET:/api/commands/url")(get); err != nil {
		t.Fatalf("GET handler returned error: %v", err)
	}
	if get.status != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.status)
	}
	if api.command.Template != "{hero_kills}" || api.command.ExtraArgs["hero_name"] != "Haze" {
		t.Fatalf("expected query request, got %+v", api.command)
	}

	post := newMockContext()
	post.body = []byte(`{"region":"Asia","account_id":"1","template":"{total_kd}"}`)
	if err := mock.handler(t, "POST:/api/commands/url")(post); err != nil {
		t.Fatalf("POST handler returned error: %v", err)
	}
	if api.command.Region != "Asia" || api.command.Template != "{total_kd}" {
		t.Fatalf("expected body request, got %+v", api.command)
	}
	var result streamkit.CommandResult
	if err := json.Unmarshal(post.body, &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.URL != "https://commands.test/r?template=%7Btotal_kd%7D" {
		t.Fatalf("unexpected result %+v", result)
	}

	preview := newMockContext()
	preview.queries = map[string]string{"region": "Europe", "accountId": "22202", "template": "hi"}
	if err := mock.handler(t, "GET:/api/commands/preview")(preview); err != nil {
		t.Fatalf("preview handler returned error: %v", err)
	}
	if preview.status != http.StatusOK || api.previews != 1 {
		t.Fatalf("expected preview to run, status %d", preview.status)
	}
	mock.handler(t, "POST:/api/commands/preview")

	widget := newMockContext()
	widget.queries = map[string]string{"region": "Europe", "accountId": "22202", "type": "raw", "variable": "total_kd"}
	if err := mock.handler(t, "GET:/api/widgets/url")(widget); err != nil {
		t.Fatalf("widget url handler returned error: %v", err)
	}
	if api.widget.Type != "raw" || api.widget.Query.Get("variable") != "total_kd" {
		t.Fatalf("expected widget query input, got %+v", api.widget)
	}
	mock.handler(t, "POST:/api/widgets/url")

	bad := newMockContext()
	bad.body = []byte(`{"template":`)
	if err := mock.handler(t, "POST:/api/commands/url")(bad); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if bad.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", bad.status)
	}
}

func TestRefreshAndVersionRoutes(t *testing.T) {
	api := &stubExecutor{}
	mock, _, _ := registerTestRoutes(t, api)
	refresh := mock.handler(t, "POST:/api/widgets/refresh")
	versions := mock.handler(t, "POST:/api/widgets/versions/check")

	ctx := newMockContext()
	ctx.body = []byte(`{"widget_key":"abc"}`)
	if err := refresh(ctx); err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if ctx.status != http.StatusAccepted || api.refreshed.WidgetKey != "abc" {
		t.Fatalf("expected 202 for abc, got %d %+v", ctx.status, api.refreshed)
	}

	api.refreshErr = errors.New("streamkit: widget abc is not watched")
	ctx = newMockContext()
	ctx.body = []byte(`{"widget_key":"abc"}`)
	if err := refresh(ctx); err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if ctx.status != http.StatusNotFound {
		t.Fatalf("expected 404 for unwatched widget, got %d", ctx.status)
	}

	ctx = newMockContext()
	if err := versions(ctx); err != nil {
		t.Fatalf("versions returned error: %v", err)
	}
	if ctx.status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", ctx.status)
	}

	api.versionsErr = errors.New("upstream 503")
	ctx = newMockContext()
	if err := versions(ctx); err != nil {
		t.Fatalf("versions returned error: %v", err)
	}
	if ctx.status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", ctx.status)
	}
}

func TestLiveRoutesRegistered(t *testing.T) {
	mock := newMockRouter()
	controller := streamkit.NewController(streamkit.ControllerOptions{Service: &stubWidgetService{}, Renderer: &stubRenderer{}})
	err := Register(Config[struct{}]{
		Router:     mock,
		Controller: controller,
		Live:       stubLive{},
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if _, ok := mock.ws["/widgets/ws"]; !ok {
		t.Fatalf("expected websocket route")
	}

	ctx := newMockContext()
	ctx.params = map[string]string{"accountId": "22202"}
	ctx.queries = map[string]string{"n": "0"}
	if err := mock.handler(t, "GET:/api/players/:accountId/history-chart")(ctx); err != nil {
		t.Fatalf("chart handler returned error: %v", err)
	}
	if ctx.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for n=0, got %d", ctx.status)
	}
	if _, ok := mock.routes["GET:/api/commands/url"]; ok {
		t.Fatalf("builder routes need an executor")
	}
}

// --- Test helpers ---

func registerTestRoutes(t *testing.T, api *stubExecutor) (*mockRouter, *stubRenderer, *stubWidgetService) {
	t.Helper()
	mock := newMockRouter()
	renderer := &stubRenderer{}
	service := &stubWidgetService{}
	controller := streamkit.NewController(streamkit.ControllerOptions{
		Service:    service,
		Renderer:   renderer,
		EventsPath: "/widgets/ws",
	})
	if err := Register(Config[struct{}]{Router: mock, Controller: controller, API: api}); err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	return mock, renderer, service
}

type mockRouter struct {
	router.Router[struct{}]
	prefix string
	routes map[string]router.HandlerFunc
	ws     map[string]func(router.WebSocketContext) error
}

func newMockRouter() *mockRouter {
	return &mockRouter{
		routes: map[string]router.HandlerFunc{},
		ws:     map[string]func(router.WebSocketContext) error{},
	}
}

func (m *mockRouter) handler(t *testing.T, key string) router.HandlerFunc {
	t.Helper()
	h, ok := m.routes[key]
	if !ok {
		t.Fatalf("expected route %s to be registered", key)
	}
	return h
}

func (m *mockRouter) Group(prefix string) router.Router[struct{}] {
	return &mockRouter{
		prefix: m.prefix + prefix,
		routes: m.routes,
		ws:     m.ws,
	}
}

func (m *mockRouter) record(method, path string, handler router.HandlerFunc) {
	full := m.prefix + path
	m.routes[method+":"+full] = handler
}

func (m *mockRouter) Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	m.record(string(router.GET), path, handler)
	return mockRouteInfo{}
}

func (m *mockRouter) Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	m.record(string(router.POST), path, handler)
	return mockRouteInfo{}
}

func (m *mockRouter) WebSocket(path string, cfg router.WebSocketConfig, handler func(router.WebSocketContext) error) router.RouteInfo {
	full := m.prefix + path
	m.ws[full] = handler
	return mockRouteInfo{}
}

type mockRouteInfo struct {
	router.RouteInfo
}

func (mockRouteInfo) SetName(string) router.RouteInfo { return mockRouteInfo{} }

// routerContext lets mockContext embed the interface without clashing with
// its own Context method.
type routerContext = router.Context

type mockContext struct {
	routerContext
	ctx     context.Context
	headers map[string]string
	body    []byte
	locals  map[any]any
	params  map[string]string
	queries map[string]string
	status  int
}

func newMockContext() *mockContext {
	return &mockContext{
		ctx:     context.Background(),
		headers: map[string]string{},
		locals:  map[any]any{},
		params:  map[string]string{},
		queries: map[string]string{},
	}
}

func (m *mockContext) Context() context.Context {
	return m.ctx
}

func (m *mockContext) SetHeader(k, v string) router.Context {
	m.headers[k] = v
	return m
}

func (m *mockContext) Status(code int) router.Context {
	m.status = code
	return m
}

func (m *mockContext) Send(b []byte) error {
	m.body = append([]byte{}, b...)
	return nil
}

func (m *mockContext) JSON(code int, v any) error {
	m.status = code
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.body = data
	return nil
}

func (m *mockContext) Body() []byte { return m.body }

func (m *mockContext) Param(name string, defaultValue ...string) string {
	if v, ok := m.params[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *mockContext) Query(name string, defaultValue ...string) string {
	if v, ok := m.queries[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *mockContext) Queries() map[string]string {
	return m.queries
}

func (m *mockContext) Locals(key any, value ...any) any {
	if len(value) == 0 {
		return m.locals[key]
	}
	m.locals[key] = value[0]
	return value[0]
}

type stubWidgetService struct {
	remembered streamkit.WidgetConfig
}

func (s *stubWidgetService) BoxView(_ context.Context, cfg streamkit.WidgetConfig) streamkit.BoxView {
	return streamkit.BoxView{Config: cfg}
}

func (s *stubWidgetService) RawView(_ context.Context, cfg streamkit.WidgetConfig) streamkit.RawView {
	return streamkit.RawView{Config: cfg}
}

func (s *stubWidgetService) Remember(cfg streamkit.WidgetConfig) string {
	s.remembered = cfg
	return "key"
}

func (s *stubWidgetService) RefreshInterval() time.Duration { return time.Minute }

type stubRenderer struct {
	calls        int
	lastTemplate string
}

func (s *stubRenderer) Render(name string, data any, out ...io.Writer) (string, error) {
	s.calls++
	s.lastTemplate = name
	if len(out) > 0 && out[0] != nil {
		out[0].Write([]byte("ok"))
	}
	return "ok", nil
}

type stubExecutor struct {
	command     streamkit.CommandRequest
	widget      queries.WidgetURLInput
	refreshed   commands.RefreshStatsInput
	previews    int
	refreshErr  error
	versionsErr error
}

func (s *stubExecutor) Catalog(context.Context, queries.CatalogInput) (queries.CatalogResult, error) {
	return queries.CatalogResult{}, nil
}

func (s *stubExecutor) CommandURL(_ context.Context, req streamkit.CommandRequest) (streamkit.CommandResult, error) {
	s.command = req
	return streamkit.CommandResult{URL: "https://commands.test/r?template=%7Btotal_kd%7D"}, nil
}

func (s *stubExecutor) Preview(_ context.Context, req streamkit.CommandRequest) (streamkit.PreviewStatus, error) {
	s.command = req
	s.previews++
	return streamkit.PreviewStatus{State: streamkit.PreviewResolved, Text: "ok"}, nil
}

func (s *stubExecutor) WidgetURL(_ context.Context, input queries.WidgetURLInput) (queries.WidgetURLResult, error) {
	s.widget = input
	return queries.WidgetURLResult{URL: "https://kit.test/widgets/Europe/22202/raw"}, nil
}

func (s *stubExecutor) Refresh(_ context.Context, input commands.RefreshStatsInput) error {
	s.refreshed = input
	return s.refreshErr
}

func (s *stubExecutor) CheckVersions(context.Context, commands.CheckWidgetVersionsInput) error {
	return s.versionsErr
}

type stubLive struct{}

func (stubLive) WatchKey(string) (func(), error)     { return func() {}, nil }
func (stubLive) Broadcast() *streamkit.BroadcastHook { return streamkit.NewBroadcastHook() }
func (stubLive) MatchHistoryChart(context.Context, string, int, streamkit.Theme) (string, error) {
	return "<div></div>", nil
}
