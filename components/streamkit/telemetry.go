package streamkit

import (
	"context"
	"log/slog"
)

// Telemetry records streamkit events for observability.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// LogTelemetry writes telemetry events to a structured logger at debug level.
type LogTelemetry struct {
	logger *slog.Logger
}

// NewLogTelemetry wraps logger. A nil logger uses slog.Default().
func NewLogTelemetry(logger *slog.Logger) *LogTelemetry {
	return &LogTelemetry{logger: normalizeLogger(logger)}
}

// Record implements Telemetry.
func (t *LogTelemetry) Record(ctx context.Context, event string, payload map[string]any) {
	attrs := make([]any, 0, len(payload)*2)
	for _, key := range sortedKeys(payload) {
		attrs = append(attrs, key, payload[key])
	}
	t.logger.DebugContext(ctx, event, attrs...)
}

func normalizeLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
