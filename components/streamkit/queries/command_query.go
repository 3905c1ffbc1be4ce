package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	streamkit "github.com/goliatone/go-streamkit/components/streamkit"
)

type commandService interface {
	CommandURL(ctx context.Context, req streamkit.CommandRequest) streamkit.CommandResult
	Preview(ctx context.Context, req streamkit.CommandRequest) streamkit.PreviewStatus
}

// CommandURLQuery builds a command URL with chat bot snippets.
type CommandURLQuery struct {
	service commandService
}

// NewCommandURLQuery builds the query.
func NewCommandURLQuery(service commandService) *CommandURLQuery {
	return &CommandURLQuery{service: service}
}

var _ gocommand.Querier[streamkit.CommandRequest, streamkit.CommandResult] = (*CommandURLQuery)(nil)

// Query returns the command URL for req. Incomplete requests yield an empty URL.
func (q *CommandURLQuery) Query(ctx context.Context, req streamkit.CommandRequest) (streamkit.CommandResult, error) {
	return q.service.CommandURL(ctx, req), nil
}

// PreviewQuery resolves a command once and reports the outcome.
type PreviewQuery struct {
	service commandService
}

// NewPreviewQuery builds the query.
func NewPreviewQuery(service commandService) *PreviewQuery {
	return &PreviewQuery{service: service}
}

var _ gocommand.Querier[streamkit.CommandRequest, streamkit.PreviewStatus] = (*PreviewQuery)(nil)

// Query resolves the preview. Failures are reported in the status, not as errors.
func (q *PreviewQuery) Query(ctx context.Context, req streamkit.CommandRequest) (streamkit.PreviewStatus, error) {
	return q.service.Preview(ctx, req), nil
}
