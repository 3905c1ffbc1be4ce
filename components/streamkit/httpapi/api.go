package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-streamkit/components/streamkit"
	"github.com/goliatone/go-streamkit/components/streamkit/commands"
	"github.com/goliatone/go-streamkit/components/streamkit/queries"
)

// Executor is the transport-neutral surface of the builder API.
type Executor interface {
	Catalog(ctx context.Context, input queries.CatalogInput) (queries.CatalogResult, error)
	CommandURL(ctx context.Context, req streamkit.CommandRequest) (streamkit.CommandResult, error)
	Preview(ctx context.Context, req streamkit.CommandRequest) (streamkit.PreviewStatus, error)
	WidgetURL(ctx context.Context, input queries.WidgetURLInput) (queries.WidgetURLResult, error)
	Refresh(ctx context.Context, input commands.RefreshStatsInput) error
	CheckVersions(ctx context.Context, input commands.CheckWidgetVersionsInput) error
}

// Handlers exposes HTTP endpoints backed by shared commands and queries.
type Handlers struct {
	CatalogQuery    gocommand.Querier[queries.CatalogInput, queries.CatalogResult]
	CommandURLQuery gocommand.Querier[streamkit.CommandRequest, streamkit.CommandResult]
	PreviewQuery    gocommand.Querier[streamkit.CommandRequest, streamkit.PreviewStatus]
	WidgetURLQuery  gocommand.Querier[queries.WidgetURLInput, queries.WidgetURLResult]
	RefreshCommand  gocommand.Commander[commands.RefreshStatsInput]
	VersionsCommand gocommand.Commander[commands.CheckWidgetVersionsInput]
}

var _ Executor = (*Handlers)(nil)

var errNotConfigured = errors.New("httpapi: handler not configured")

// NewHandlers wires the commands and queries of a service. A nil watcher
// leaves the version check unconfigured.
func NewHandlers(service *streamkit.Service, watcher *streamkit.VersionWatcher, telemetry commands.Telemetry) *Handlers {
	h := &Handlers{
		CatalogQuery:    queries.NewCatalogQuery(service),
		CommandURLQuery: queries.NewCommandURLQuery(service),
		PreviewQuery:    queries.NewPreviewQuery(service),
		WidgetURLQuery:  queries.NewWidgetURLQuery(service),
		RefreshCommand:  commands.NewRefreshStatsCommand(service, telemetry),
	}
	if watcher != nil {
		h.VersionsCommand = commands.NewCheckWidgetVersionsCommand(watcher, telemetry)
	}
	return h
}

func (h *Handlers) Catalog(ctx context.Context, input queries.CatalogInput) (queries.CatalogResult, error) {
	if h.CatalogQuery == nil {
		return queries.CatalogResult{}, errNotConfigured
	}
	return h.CatalogQuery.Query(ctx, input)
}

func (h *Handlers) CommandURL(ctx context.Context, req streamkit.CommandRequest) (streamkit.CommandResult, error) {
	if h.CommandURLQuery == nil {
		return streamkit.CommandResult{}, errNotConfigured
	}
	return h.CommandURLQuery.Query(ctx, req)
}

func (h *Handlers) Preview(ctx context.Context, req streamkit.CommandRequest) (streamkit.PreviewStatus, error) {
	if h.PreviewQuery == nil {
		return streamkit.PreviewStatus{}, errNotConfigured
	}
	return h.PreviewQuery.Query(ctx, req)
}

func (h *Handlers) WidgetURL(ctx context.Context, input queries.WidgetURLInput) (queries.WidgetURLResult, error) {
	if h.WidgetURLQuery == nil {
		return queries.WidgetURLResult{}, errNotConfigured
	}
	return h.WidgetURLQuery.Query(ctx, input)
}

func (h *Handlers) Refresh(ctx context.Context, input commands.RefreshStatsInput) error {
	if h.RefreshCommand == nil {
		return errNotConfigured
	}
	return h.RefreshCommand.Execute(ctx, input)
}

func (h *Handlers) CheckVersions(ctx context.Context, input commands.CheckWidgetVersionsInput) error {
	if h.VersionsCommand == nil {
		return errNotConfigured
	}
	return h.VersionsCommand.Execute(ctx, input)
}

func (h *Handlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	input := queries.CatalogInput{
		IncludeImages: r.URL.Query().Get("images") == "true",
		Category:      r.URL.Query().Get("category"),
	}
	result, err := h.Catalog(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleCommandURL(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeCommandRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.CommandURL(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeCommandRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := h.Preview(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) HandleWidgetURL(w http.ResponseWriter, r *http.Request) {
	payload := WidgetURLInputFromQuery(r.URL.Query())
	if r.Method != http.MethodGet {
		payload = queries.WidgetURLInput{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	result, err := h.WidgetURL(r.Context(), payload)
	if err != nil {
		writeError(w, StatusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload commands.RefreshStatsInput
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if err := h.Refresh(r.Context(), payload); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) HandleCheckVersions(w http.ResponseWriter, r *http.Request) {
	if err := h.CheckVersions(r.Context(), commands.CheckWidgetVersionsInput{}); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Query keys of the GET builder endpoints.
const (
	QueryRegion    = "region"
	QueryAccountID = "accountId"
	QueryTemplate  = "template"
	QueryType      = "type"
)

// CommandRequestFromQuery reads region, accountId and template; every other
// key is an extra argument value.
func CommandRequestFromQuery(q url.Values) streamkit.CommandRequest {
	req := streamkit.CommandRequest{
		Region:    q.Get(QueryRegion),
		AccountID: q.Get(QueryAccountID),
		Template:  q.Get(QueryTemplate),
		ExtraArgs: streamkit.ExtraArgs{},
	}
	for key, values := range q {
		switch key {
		case QueryRegion, QueryAccountID, QueryTemplate:
			continue
		}
		if len(values) > 0 && values[0] != "" {
			req.ExtraArgs[key] = values[0]
		}
	}
	return req
}

// WidgetURLInputFromQuery reads type, region and accountId; the remaining
// keys are widget options.
func WidgetURLInputFromQuery(q url.Values) queries.WidgetURLInput {
	input := queries.WidgetURLInput{
		Region:    q.Get(QueryRegion),
		AccountID: q.Get(QueryAccountID),
		Type:      q.Get(QueryType),
		Query:     url.Values{},
	}
	for key, values := range q {
		switch key {
		case QueryRegion, QueryAccountID, QueryType:
			continue
		}
		input.Query[key] = values
	}
	return input
}

func decodeCommandRequest(r *http.Request) (streamkit.CommandRequest, error) {
	if r.Method == http.MethodGet {
		return CommandRequestFromQuery(r.URL.Query()), nil
	}
	var payload streamkit.CommandRequest
	err := json.NewDecoder(r.Body).Decode(&payload)
	return payload, err
}

// StatusForError maps builder errors onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, streamkit.ErrMissingAccount):
		return http.StatusBadRequest
	case errors.Is(err, streamkit.ErrUnknownWidgetType):
		return http.StatusNotFound
	case errors.Is(err, errNotConfigured):
		return http.StatusNotImplemented
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
