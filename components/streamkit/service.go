package streamkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// DefaultCommandsBaseURL is used when Options.CommandsBaseURL is empty.
const DefaultCommandsBaseURL = "https://api.deadlock-api.com/v1/commands"

// rememberedWidgetTTL bounds how long a rendered widget can be watched by key alone.
const rememberedWidgetTTL = 24 * time.Hour

const (
	maxRememberedWidgets = 4096
	cacheSweepInterval   = time.Minute
)

// Options configures the streamkit service.
type Options struct {
	Client          Client
	CommandsBaseURL string
	PublicURL       string
	RefreshInterval time.Duration
	Validator       ConfigValidator
	Broadcast       *BroadcastHook
	Telemetry       Telemetry
	Logger          *slog.Logger
}

// Service orchestrates the builder and the widget pages.
type Service struct {
	opts      Options
	catalog   *CatalogCache
	heroes    lazyValue[map[int]string]
	ranks     lazyValue[*RankPalette]
	responses *TTLCache[Stats]
	history   *TTLCache[[]Match]
	charts    *TTLCache[string]
	widgets   *TTLCache[WidgetConfig]
	telemetry Telemetry
	logger    *slog.Logger

	mu      sync.Mutex
	watches map[string]*watch
	ctx     context.Context
	cancel  context.CancelFunc
}

type watch struct {
	poller *Poller
	cfg    WidgetConfig
	refs   int
	// shown is the data widget pages for this key were last rendered with.
	shown Stats
}

var errNoClient = errors.New("streamkit: client is required")

// NewService wires the provided options into a usable service.
func NewService(opts Options) *Service {
	if opts.CommandsBaseURL == "" {
		opts.CommandsBaseURL = DefaultCommandsBaseURL
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshPeriod
	}
	if opts.Validator == nil {
		opts.Validator = noopConfigValidator{}
	}
	if opts.Broadcast == nil {
		opts.Broadcast = NewBroadcastHook()
	}
	var catalogClient CatalogClient
	if opts.Client != nil {
		catalogClient = opts.Client
	}
	stale := StaleTime(opts.RefreshInterval)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		opts:      opts,
		catalog:   NewCatalogCache(catalogClient),
		responses: NewTTLCache[Stats](stale),
		history:   NewTTLCache[[]Match](stale),
		charts:    NewTTLCache[string](stale),
		widgets:   NewBoundedTTLCache[WidgetConfig](rememberedWidgetTTL, maxRememberedWidgets),
		telemetry: normalizeTelemetry(opts.Telemetry),
		logger:    normalizeLogger(opts.Logger),
		watches:   make(map[string]*watch),
		ctx:       ctx,
		cancel:    cancel,
	}
	go s.sweepCaches(ctx, cacheSweepInterval)
	return s
}

func (s *Service) sweepCaches(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				s.logger.DebugContext(ctx, "streamkit: swept expired cache entries", "removed", removed)
			}
		}
	}
}

// sweep drops expired entries from every service cache.
func (s *Service) sweep() int {
	return s.responses.Sweep() + s.history.Sweep() + s.charts.Sweep() + s.widgets.Sweep()
}

// Broadcast exposes the event hub for transports.
func (s *Service) Broadcast() *BroadcastHook {
	return s.opts.Broadcast
}

// RefreshInterval is the stats poll interval.
func (s *Service) RefreshInterval() time.Duration {
	return s.opts.RefreshInterval
}

// Catalog returns the variable catalog, loading it on first use.
func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	return s.catalog.Load(ctx)
}

// CatalogCache exposes the shared catalog cache.
func (s *Service) CatalogCache() *CatalogCache {
	return s.catalog
}

// catalogOrEmpty tolerates catalog failures: the builder keeps working without
// extra argument detection until the catalog loads.
func (s *Service) catalogOrEmpty(ctx context.Context) *Catalog {
	catalog, err := s.catalog.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "streamkit: catalog unavailable", "error", err)
		return s.catalog.Current()
	}
	return catalog
}

// CommandURL builds the command URL and chat bot snippets for req.
func (s *Service) CommandURL(ctx context.Context, req CommandRequest) CommandResult {
	result := BuildCommand(s.opts.CommandsBaseURL, req, s.catalogOrEmpty(ctx))
	s.telemetry.Record(ctx, "streamkit.command.url", map[string]any{
		"region":     req.Region,
		"has_url":    result.URL != "",
		"extra_args": len(result.ExtraArgs),
	})
	return result
}

// Preview resolves the command built from req once.
func (s *Service) Preview(ctx context.Context, req CommandRequest) PreviewStatus {
	result := s.CommandURL(ctx, req)
	var resolver TemplateResolver
	if s.opts.Client != nil {
		resolver = s.opts.Client
	}
	return ResolvePreview(ctx, resolver, result.URL, s.logger)
}

// NewCommandPreview creates an interactive preview session bound to the service catalog.
func (s *Service) NewCommandPreview(ctx context.Context, debounce time.Duration, onChange func(PreviewStatus)) *CommandPreview {
	var resolver TemplateResolver
	if s.opts.Client != nil {
		resolver = s.opts.Client
	}
	return NewCommandPreview(ctx, CommandPreviewOptions{
		Resolver:        resolver,
		CommandsBaseURL: s.opts.CommandsBaseURL,
		Catalog:         s.catalog,
		Debounce:        debounce,
		Logger:          s.logger,
		OnChange:        onChange,
	})
}

// WidgetURL validates cfg and returns its public URL.
func (s *Service) WidgetURL(cfg WidgetConfig) (string, error) {
	cfg.AccountID = NormalizeAccountID(cfg.AccountID)
	if err := s.opts.Validator.Validate(cfg); err != nil {
		return "", err
	}
	u := WidgetURL(s.opts.PublicURL, cfg)
	if u == "" {
		return "", ErrMissingAccount
	}
	return u, nil
}

// Stats resolves a snapshot through the shared response cache.
func (s *Service) Stats(ctx context.Context, req StatsRequest) Snapshot {
	if !req.Valid() {
		return Snapshot{}
	}
	if s.opts.Client == nil {
		return Snapshot{Err: errNoClient, Error: errNoClient.Error()}
	}
	stats, err := s.responses.GetOrLoad(req.Key(), func() (Stats, error) {
		return s.opts.Client.ResolveVariables(ctx, req)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "streamkit: stats fetch failed", "region", req.Region, "account_id", req.AccountID, "error", err)
		return Snapshot{Err: err, Error: err.Error()}
	}
	return Snapshot{Data: stats, FetchedAt: time.Now().UTC()}
}

// MatchHistory returns recent matches for an account, newest first.
func (s *Service) MatchHistory(ctx context.Context, accountID string) ([]Match, error) {
	if s.opts.Client == nil {
		return nil, errNoClient
	}
	accountID = NormalizeAccountID(accountID)
	return s.history.GetOrLoad(accountID, func() ([]Match, error) {
		matches, err := s.opts.Client.FetchMatchHistory(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("streamkit: fetch match history: %w", err)
		}
		return matches, nil
	})
}

// Heroes returns hero id to icon URL, loaded once.
func (s *Service) Heroes(ctx context.Context) (map[int]string, error) {
	if s.opts.Client == nil {
		return nil, errNoClient
	}
	return s.heroes.get(ctx, func(ctx context.Context) (map[int]string, error) {
		heroes, err := s.opts.Client.FetchHeroes(ctx)
		if err != nil {
			return nil, fmt.Errorf("streamkit: fetch heroes: %w", err)
		}
		out := make(map[int]string, len(heroes))
		for _, h := range heroes {
			if h.IconURL != "" {
				out[h.ID] = h.IconURL
			}
		}
		return out, nil
	})
}

// RankPalette returns the rank colour table, loaded once.
func (s *Service) RankPalette(ctx context.Context) (*RankPalette, error) {
	if s.opts.Client == nil {
		return nil, errNoClient
	}
	return s.ranks.get(ctx, func(ctx context.Context) (*RankPalette, error) {
		ranks, err := s.opts.Client.FetchRanks(ctx)
		if err != nil {
			return nil, fmt.Errorf("streamkit: fetch ranks: %w", err)
		}
		return NewRankPalette(ranks), nil
	})
}

// RankColor returns the rank colour for a badge level, or "" when the badge
// or the rank table is unavailable.
func (s *Service) RankColor(ctx context.Context, badge string) string {
	palette, err := s.RankPalette(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "streamkit: rank table unavailable", "error", err)
		return ""
	}
	color, _ := palette.ColorForBadge(badge)
	return color
}

// BoxView builds the box render model for cfg.
func (s *Service) BoxView(ctx context.Context, cfg WidgetConfig) BoxView {
	snap := s.currentSnapshot(ctx, cfg)
	var (
		matches []Match
		heroes  map[int]string
	)
	if cfg.ShowMatchHistory && snap.HasData() {
		var err error
		if matches, err = s.MatchHistory(ctx, cfg.AccountID); err != nil {
			s.logger.ErrorContext(ctx, "streamkit: match history unavailable", "account_id", cfg.AccountID, "error", err)
		}
		if heroes, err = s.Heroes(ctx); err != nil {
			s.logger.ErrorContext(ctx, "streamkit: heroes unavailable", "error", err)
		}
	}
	return NewBoxView(cfg, snap, matches, heroes)
}

// RawView builds the raw render model for cfg.
func (s *Service) RawView(ctx context.Context, cfg WidgetConfig) RawView {
	snap := s.currentSnapshot(ctx, cfg)
	var palette *RankPalette
	if cfg.Raw.FontColorLikeRank {
		var err error
		if palette, err = s.RankPalette(ctx); err != nil {
			s.logger.ErrorContext(ctx, "streamkit: ranks unavailable", "error", err)
		}
	}
	return NewRawView(cfg, snap, palette)
}

// MatchHistoryChart renders the echarts match history for an account.
func (s *Service) MatchHistoryChart(ctx context.Context, accountID string, n int, theme Theme) (string, error) {
	matches, err := s.MatchHistory(ctx, accountID)
	if err != nil {
		return "", err
	}
	key := requestHash(map[string]any{"account_id": NormalizeAccountID(accountID), "n": n, "theme": theme, "latest": latestMatchID(matches)})
	return s.charts.GetOrLoad(key, func() (string, error) {
		return RenderMatchHistoryChart(matches, n, HistoryChartOptions{Theme: theme})
	})
}

// Watch starts (or joins) the shared poller for cfg. Snapshots whose data
// differs from what the widget was rendered with are broadcast to subscribers
// of the widget key. Call the returned release func when done.
func (s *Service) Watch(cfg WidgetConfig) (string, func()) {
	req := NewStatsRequest(cfg)
	key := req.Key()

	s.mu.Lock()
	w, ok := s.watches[key]
	if !ok {
		w = &watch{cfg: cfg}
		if cached, hit := s.responses.Get(key); hit {
			w.shown = cached
		}
		w.poller = NewPoller(PollerOptions{
			Fetcher:   s.opts.Client,
			Request:   req,
			Interval:  s.opts.RefreshInterval,
			Cache:     s.responses,
			Logger:    s.logger,
			Telemetry: s.telemetry,
			OnSnapshot: func(snap Snapshot) {
				s.publishSnapshot(w, key, snap)
			},
		})
		s.watches[key] = w
		w.poller.Start(s.ctx)
	}
	w.refs++
	s.mu.Unlock()

	var once sync.Once
	return key, func() {
		once.Do(func() { s.release(key) })
	}
}

// publishSnapshot broadcasts snap when its data changed. Failed polls are not
// broadcast; pages keep the last data they rendered.
func (s *Service) publishSnapshot(w *watch, key string, snap Snapshot) {
	if snap.Err != nil || !snap.HasData() {
		return
	}
	s.mu.Lock()
	unchanged := w.shown != nil && maps.Equal(w.shown, snap.Data)
	if !unchanged {
		w.shown = snap.Data
	}
	s.mu.Unlock()
	if unchanged {
		return
	}
	s.opts.Broadcast.Publish(s.ctx, Event{
		Kind:       EventSnapshot,
		WidgetKey:  key,
		WidgetType: w.cfg.Type,
		Snapshot:   &snap,
	})
}

// Remember records cfg so a live connection can watch it by key alone.
func (s *Service) Remember(cfg WidgetConfig) string {
	key := NewStatsRequest(cfg).Key()
	s.widgets.Set(key, cfg)
	return key
}

// WatchKey watches a widget previously passed to Remember.
func (s *Service) WatchKey(key string) (func(), error) {
	cfg, ok := s.widgets.Get(key)
	if !ok {
		return nil, fmt.Errorf("streamkit: unknown widget %s", key)
	}
	_, release := s.Watch(cfg)
	return release, nil
}

func (s *Service) release(key string) {
	s.mu.Lock()
	w, ok := s.watches[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	w.refs--
	if w.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.watches, key)
	s.mu.Unlock()
	w.poller.Stop()
}

// Watching reports the number of active shared pollers.
func (s *Service) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// RefreshWidget forces a fetch for a watched widget and broadcasts the result.
// Without a key every watched widget is refreshed. Cached match history is
// dropped so the next render picks up new matches.
func (s *Service) RefreshWidget(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	var targets []*Poller
	for k, w := range s.watches {
		if key == "" || k == key {
			targets = append(targets, w.poller)
		}
	}
	s.mu.Unlock()
	if key != "" && len(targets) == 0 {
		return 0, fmt.Errorf("streamkit: widget %s is not watched", key)
	}
	s.history.Invalidate()
	s.charts.Invalidate()
	for _, p := range targets {
		p.Refresh(ctx)
	}
	return len(targets), nil
}

// Close stops every poller.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	watches := s.watches
	s.watches = make(map[string]*watch)
	s.mu.Unlock()
	for _, w := range watches {
		w.poller.Stop()
	}
}

func (s *Service) currentSnapshot(ctx context.Context, cfg WidgetConfig) Snapshot {
	req := NewStatsRequest(cfg)
	s.mu.Lock()
	w, ok := s.watches[req.Key()]
	s.mu.Unlock()
	if ok {
		if snap := w.poller.Snapshot(); snap.HasData() {
			return snap
		}
	}
	return s.Stats(ctx, req)
}

func latestMatchID(matches []Match) int64 {
	if len(matches) == 0 {
		return 0
	}
	return matches[0].MatchID
}
