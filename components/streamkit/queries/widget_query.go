package queries

import (
	"context"
	"net/url"

	gocommand "github.com/goliatone/go-command"
	streamkit "github.com/goliatone/go-streamkit/components/streamkit"
)

// WidgetURLInput describes a widget through its type and builder query.
type WidgetURLInput struct {
	Region    string     `json:"region"`
	AccountID string     `json:"account_id"`
	Type      string     `json:"type"`
	Query     url.Values `json:"query,omitempty"`
}

// WidgetURLResult carries the decoded config and its public URL.
type WidgetURLResult struct {
	URL    string                 `json:"url"`
	Config streamkit.WidgetConfig `json:"config"`
}

type widgetURLService interface {
	WidgetURL(cfg streamkit.WidgetConfig) (string, error)
}

// WidgetURLQuery validates a widget configuration and returns its URL.
type WidgetURLQuery struct {
	service widgetURLService
}

// NewWidgetURLQuery builds the query.
func NewWidgetURLQuery(service widgetURLService) *WidgetURLQuery {
	return &WidgetURLQuery{service: service}
}

var _ gocommand.Querier[WidgetURLInput, WidgetURLResult] = (*WidgetURLQuery)(nil)

// Query decodes input and asks the service for the widget URL.
func (q *WidgetURLQuery) Query(_ context.Context, input WidgetURLInput) (WidgetURLResult, error) {
	cfg, err := streamkit.ParseWidgetRequest(input.Region, input.AccountID, input.Type, input.Query)
	if err != nil {
		return WidgetURLResult{}, err
	}
	u, err := q.service.WidgetURL(cfg)
	if err != nil {
		return WidgetURLResult{Config: cfg}, err
	}
	return WidgetURLResult{URL: u, Config: cfg}, nil
}
