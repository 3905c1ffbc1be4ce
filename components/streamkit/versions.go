package streamkit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultVersionCheckInterval = time.Minute

// VersionWatcherOptions configures a VersionWatcher.
type VersionWatcherOptions struct {
	Client    VersionClient
	Hook      *BroadcastHook
	Interval  time.Duration
	Logger    *slog.Logger
	Telemetry Telemetry
}

// VersionWatcher polls the published widget versions and broadcasts a reload
// event for every widget type whose version increased since the first check.
type VersionWatcher struct {
	client    VersionClient
	hook      *BroadcastHook
	interval  time.Duration
	logger    *slog.Logger
	telemetry Telemetry

	mu       sync.Mutex
	baseline map[string]int
}

// NewVersionWatcher builds a watcher.
func NewVersionWatcher(opts VersionWatcherOptions) *VersionWatcher {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultVersionCheckInterval
	}
	return &VersionWatcher{
		client:    opts.Client,
		hook:      opts.Hook,
		interval:  interval,
		logger:    normalizeLogger(opts.Logger),
		telemetry: normalizeTelemetry(opts.Telemetry),
	}
}

// Check fetches the versions once and returns the widget types that were bumped.
// The first successful check only records the baseline.
func (w *VersionWatcher) Check(ctx context.Context) ([]WidgetType, error) {
	if w.client == nil {
		return nil, fmt.Errorf("streamkit: version client is required")
	}
	versions, err := w.client.FetchWidgetVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("streamkit: fetch widget versions: %w", err)
	}

	w.mu.Lock()
	if w.baseline == nil {
		w.baseline = make(map[string]int, len(versions))
		for name, version := range versions {
			w.baseline[name] = version
		}
		w.mu.Unlock()
		return nil, nil
	}
	var bumped []WidgetType
	events := make([]Event, 0)
	for _, name := range sortedKeys(versions) {
		version := versions[name]
		previous, known := w.baseline[name]
		w.baseline[name] = version
		if !known || version <= previous {
			continue
		}
		bumped = append(bumped, WidgetType(name))
		events = append(events, Event{Kind: EventReload, WidgetType: WidgetType(name), Version: version})
	}
	w.mu.Unlock()

	for _, event := range events {
		w.logger.InfoContext(ctx, "streamkit: widget version changed", "widget_type", event.WidgetType, "version", event.Version)
		w.hook.Publish(ctx, event)
	}
	if len(bumped) > 0 {
		w.telemetry.Record(ctx, "streamkit.versions.bumped", map[string]any{"widget_types": bumped})
	}
	return bumped, nil
}

// Versions returns the last known versions.
func (w *VersionWatcher) Versions() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.baseline))
	for k, v := range w.baseline {
		out[k] = v
	}
	return out
}

// Run checks immediately and then on every interval until ctx is cancelled.
func (w *VersionWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Check(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "streamkit: version check failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
