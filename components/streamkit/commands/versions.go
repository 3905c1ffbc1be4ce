package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	streamkit "github.com/goliatone/go-streamkit/components/streamkit"
)

// CheckWidgetVersionsInput is the (empty) message for a version check.
type CheckWidgetVersionsInput struct{}

type versionChecker interface {
	Check(ctx context.Context) ([]streamkit.WidgetType, error)
}

// CheckWidgetVersionsCommand polls the published widget versions and
// broadcasts reload events for types that changed.
type CheckWidgetVersionsCommand struct {
	watcher   versionChecker
	telemetry Telemetry
}

// NewCheckWidgetVersionsCommand creates the command.
func NewCheckWidgetVersionsCommand(watcher versionChecker, telemetry Telemetry) *CheckWidgetVersionsCommand {
	return &CheckWidgetVersionsCommand{watcher: watcher, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[CheckWidgetVersionsInput] = (*CheckWidgetVersionsCommand)(nil)

// Execute runs one version check.
func (c *CheckWidgetVersionsCommand) Execute(ctx context.Context, _ CheckWidgetVersionsInput) error {
	if c.watcher == nil {
		return errors.New("version check command requires watcher")
	}
	changed, err := c.watcher.Check(ctx)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		c.telemetry.Record(ctx, "streamkit.widget.versions", map[string]any{"changed": changed})
	}
	return nil
}
