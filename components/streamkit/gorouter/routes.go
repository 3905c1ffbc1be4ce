package gorouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-streamkit/components/streamkit"
	"github.com/goliatone/go-streamkit/components/streamkit/commands"
	"github.com/goliatone/go-streamkit/components/streamkit/httpapi"
	"github.com/goliatone/go-streamkit/components/streamkit/queries"
)

// LiveService is what the live and chart routes need from the streamkit service.
type LiveService interface {
	WatchKey(key string) (func(), error)
	Broadcast() *streamkit.BroadcastHook
	MatchHistoryChart(ctx context.Context, accountID string, n int, theme streamkit.Theme) (string, error)
}

// Config wires go-router with the streamkit controller, API and live events.
type Config[T any] struct {
	Router     router.Router[T]
	Controller *streamkit.Controller
	API        httpapi.Executor
	Live       LiveService
	BasePath   string
	Routes     RouteConfig
}

// RouteConfig customizes the relative paths used for streamkit endpoints.
type RouteConfig struct {
	Widget       string
	WebSocket    string
	Variables    string
	Regions      string
	CommandURL   string
	Preview      string
	WidgetURL    string
	Refresh      string
	Versions     string
	HistoryChart string
	Health       string
}

// Register mounts the widget pages, builder API and live socket on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Controller == nil {
		return errors.New("gorouter: controller is required")
	}
	routes := cfg.routes()

	group := cfg.Router.Group(cfg.BasePath)

	group.Get(routes.Health, router.WrapHandler(func(ctx router.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}))

	group.Get(routes.Widget, router.WrapHandler(func(ctx router.Context) error {
		req := streamkit.WidgetRequest{
			Region:    ctx.Param("region"),
			AccountID: ctx.Param("accountId"),
			Type:      ctx.Param("type"),
			Query:     queryValues(ctx.Queries()),
		}
		var buf bytes.Buffer
		status, err := cfg.Controller.RenderWidget(ctx.Context(), req, &buf)
		if err != nil {
			return respondError(ctx, status, err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		ctx.SetHeader("Cache-Control", "no-store")
		ctx.Status(status)
		return ctx.Send(buf.Bytes())
	}))

	group.Get(routes.Regions, router.WrapHandler(func(ctx router.Context) error {
		return ctx.JSON(http.StatusOK, map[string]any{"regions": streamkit.Regions()})
	}))

	if cfg.API != nil {
		registerAPI(group, cfg.API, routes)
	}

	if cfg.Live != nil {
		registerChart(group, cfg.Live, routes.HistoryChart)
		registerWebSocket(group, cfg.Live, routes.WebSocket)
	}

	return nil
}

func registerAPI[T any](r router.Router[T], api httpapi.Executor, routes RouteConfig) {
	r.Get(routes.Variables, router.WrapHandler(func(ctx router.Context) error {
		result, err := api.Catalog(ctx.Context(), queries.CatalogInput{
			IncludeImages: ctx.Query("images") == "true",
			Category:      ctx.Query("category"),
		})
		if err != nil {
			return respondError(ctx, http.StatusBadGateway, err)
		}
		return ctx.JSON(http.StatusOK, result)
	}))

	commandURL := router.WrapHandler(func(ctx router.Context) error {
		payload, err := commandRequest(ctx)
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		result, err := api.CommandURL(ctx.Context(), payload)
		if err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return ctx.JSON(http.StatusOK, result)
	})
	r.Get(routes.CommandURL, commandURL)
	r.Post(routes.CommandURL, commandURL)

	preview := router.WrapHandler(func(ctx router.Context) error {
		payload, err := commandRequest(ctx)
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		status, err := api.Preview(ctx.Context(), payload)
		if err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return ctx.JSON(http.StatusOK, status)
	})
	r.Get(routes.Preview, preview)
	r.Post(routes.Preview, preview)

	widgetURL := router.WrapHandler(func(ctx router.Context) error {
		payload := httpapi.WidgetURLInputFromQuery(queryValues(ctx.Queries()))
		if body := ctx.Body(); len(body) > 0 {
			payload = queries.WidgetURLInput{}
			if err := json.Unmarshal(body, &payload); err != nil {
				return respondError(ctx, http.StatusBadRequest, err)
			}
		}
		result, err := api.WidgetURL(ctx.Context(), payload)
		if err != nil {
			return respondError(ctx, httpapi.StatusForError(err), err)
		}
		return ctx.JSON(http.StatusOK, result)
	})
	r.Get(routes.WidgetURL, widgetURL)
	r.Post(routes.WidgetURL, widgetURL)

	r.Post(routes.Refresh, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.RefreshStatsInput
		if body := ctx.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return respondError(ctx, http.StatusBadRequest, err)
			}
		}
		if err := api.Refresh(ctx.Context(), payload); err != nil {
			return respondError(ctx, http.StatusNotFound, err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
	}))

	r.Post(routes.Versions, router.WrapHandler(func(ctx router.Context) error {
		if err := api.CheckVersions(ctx.Context(), commands.CheckWidgetVersionsInput{}); err != nil {
			return respondError(ctx, http.StatusBadGateway, err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "checked"})
	}))
}

func registerChart[T any](r router.Router[T], live LiveService, path string) {
	r.Get(path, router.WrapHandler(func(ctx router.Context) error {
		n := streamkit.DefaultNumMatches
		if raw := ctx.Query("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				return respondError(ctx, http.StatusBadRequest, errors.New("n must be a positive integer"))
			}
			n = v
		}
		html, err := live.MatchHistoryChart(ctx.Context(), ctx.Param("accountId"), n, streamkit.ParseTheme(ctx.Query("theme")))
		if err != nil {
			return respondError(ctx, http.StatusBadGateway, err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.Send([]byte(html))
	}))
}

// registerWebSocket streams snapshot and reload events to widget pages. A
// remembered widget key keeps a shared poller alive for the connection.
func registerWebSocket[T any](r router.Router[T], live LiveService, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		key := ws.Query("key")
		widgetType := streamkit.WidgetType(ws.Query("type"))
		if key != "" {
			release, err := live.WatchKey(key)
			if err == nil {
				defer release()
			}
		}
		events, cancel := live.Broadcast().Subscribe(streamkit.ForWidget(key, widgetType))
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

// commandRequest decodes a JSON body when present and the query string otherwise.
func commandRequest(ctx router.Context) (streamkit.CommandRequest, error) {
	if body := ctx.Body(); len(body) > 0 {
		var payload streamkit.CommandRequest
		err := json.Unmarshal(body, &payload)
		return payload, err
	}
	return httpapi.CommandRequestFromQuery(queryValues(ctx.Queries())), nil
}

func queryValues(raw map[string]string) url.Values {
	values := make(url.Values, len(raw))
	for k, v := range raw {
		values.Set(k, v)
	}
	return values
}

func respondError(ctx router.Context, status int, err error) error {
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

func (cfg Config[T]) routes() RouteConfig {
	return defaultRouteConfig(cfg.Routes)
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Widget == "" {
		routes.Widget = "/widgets/:region/:accountId/:type"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/widgets/ws"
	}
	if routes.Variables == "" {
		routes.Variables = "/api/variables"
	}
	if routes.Regions == "" {
		routes.Regions = "/api/regions"
	}
	if routes.CommandURL == "" {
		routes.CommandURL = "/api/commands/url"
	}
	if routes.Preview == "" {
		routes.Preview = "/api/commands/preview"
	}
	if routes.WidgetURL == "" {
		routes.WidgetURL = "/api/widgets/url"
	}
	if routes.Refresh == "" {
		routes.Refresh = "/api/widgets/refresh"
	}
	if routes.Versions == "" {
		routes.Versions = "/api/widgets/versions/check"
	}
	if routes.HistoryChart == "" {
		routes.HistoryChart = "/api/players/:accountId/history-chart"
	}
	if routes.Health == "" {
		routes.Health = "/healthz"
	}
	return routes
}
