package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
)

// RefreshStatsInput selects the widget to refresh. An empty key refreshes every watched widget.
type RefreshStatsInput struct {
	WidgetKey string `json:"widget_key"`
}

type widgetRefresher interface {
	RefreshWidget(ctx context.Context, key string) (int, error)
}

// RefreshStatsCommand forces a stats fetch for watched widgets and broadcasts the result.
type RefreshStatsCommand struct {
	service   widgetRefresher
	telemetry Telemetry
}

// NewRefreshStatsCommand creates the command.
func NewRefreshStatsCommand(service widgetRefresher, telemetry Telemetry) *RefreshStatsCommand {
	return &RefreshStatsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RefreshStatsInput] = (*RefreshStatsCommand)(nil)

// Execute delegates to the streamkit service.
func (c *RefreshStatsCommand) Execute(ctx context.Context, msg RefreshStatsInput) error {
	if c.service == nil {
		return errors.New("refresh command requires service")
	}
	n, err := c.service.RefreshWidget(ctx, msg.WidgetKey)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "streamkit.widget.refresh", map[string]any{
		"widget_key": msg.WidgetKey,
		"refreshed":  n,
	})
	return nil
}
