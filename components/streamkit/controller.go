package streamkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Advisory texts rendered instead of a widget.
const (
	MessageMissingInput = "Region and Account ID are required"
	MessageInvalidType  = "Invalid widget type"
)

// WidgetService is the subset of Service used to render widget pages.
type WidgetService interface {
	BoxView(ctx context.Context, cfg WidgetConfig) BoxView
	RawView(ctx context.Context, cfg WidgetConfig) RawView
	Remember(cfg WidgetConfig) string
	RefreshInterval() time.Duration
}

// ControllerOptions configures the widget page controller.
type ControllerOptions struct {
	Service    WidgetService
	Renderer   Renderer
	EventsPath string
	Logger     *slog.Logger
}

// Controller renders widget pages.
type Controller struct {
	service    WidgetService
	renderer   Renderer
	eventsPath string
	logger     *slog.Logger
}

// NewController wires the service and renderer into a controller.
func NewController(opts ControllerOptions) *Controller {
	return &Controller{
		service:    opts.Service,
		renderer:   opts.Renderer,
		eventsPath: opts.EventsPath,
		logger:     normalizeLogger(opts.Logger),
	}
}

// WidgetRequest carries the path and query of a widget route.
type WidgetRequest struct {
	Region    string
	AccountID string
	Type      string
	Query     url.Values
}

// RenderWidget renders the widget page into out and returns the HTTP status to use.
// Missing input and unknown types render an advisory page rather than failing.
func (c *Controller) RenderWidget(ctx context.Context, req WidgetRequest, out io.Writer) (int, error) {
	if c.renderer == nil {
		return http.StatusInternalServerError, fmt.Errorf("streamkit: renderer is required")
	}
	cfg, err := ParseWidgetRequest(req.Region, req.AccountID, req.Type, req.Query)
	switch {
	case errors.Is(err, ErrMissingAccount):
		return c.renderMessage(http.StatusBadRequest, MessageMissingInput, out)
	case errors.Is(err, ErrUnknownWidgetType):
		return c.renderMessage(http.StatusNotFound, MessageInvalidType, out)
	case err != nil:
		return http.StatusBadRequest, err
	}
	if c.service == nil {
		return http.StatusInternalServerError, fmt.Errorf("streamkit: service is required")
	}

	live := LiveOptions{
		EventsPath: c.eventsPath,
		Interval:   c.service.RefreshInterval().Milliseconds(),
	}
	c.service.Remember(cfg)

	var (
		name string
		data map[string]any
	)
	switch cfg.Type {
	case WidgetTypeRaw:
		name = TemplateRaw
		data = RawTemplateData(c.service.RawView(ctx, cfg), live)
	default:
		name = TemplateBox
		data = BoxTemplateData(c.service.BoxView(ctx, cfg), live)
	}
	if _, err := c.renderer.Render(name, data, out); err != nil {
		c.logger.ErrorContext(ctx, "streamkit: render widget failed", "template", name, "error", err)
		return http.StatusInternalServerError, fmt.Errorf("streamkit: render %s: %w", name, err)
	}
	return http.StatusOK, nil
}

func (c *Controller) renderMessage(status int, message string, out io.Writer) (int, error) {
	if _, err := c.renderer.Render(TemplateMessage, MessageTemplateData(message), out); err != nil {
		return http.StatusInternalServerError, fmt.Errorf("streamkit: render message: %w", err)
	}
	return status, nil
}
