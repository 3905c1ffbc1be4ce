package streamkit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PollerOptions configures a stats poller.
type PollerOptions struct {
	Fetcher    StatsFetcher
	Request    StatsRequest
	Interval   time.Duration
	Cache      *TTLCache[Stats]
	OnSnapshot func(Snapshot)
	Logger     *slog.Logger
	Telemetry  Telemetry
}

// Poller fetches stats immediately on start and then on every interval tick.
type Poller struct {
	fetcher    StatsFetcher
	interval   time.Duration
	cache      *TTLCache[Stats]
	onSnapshot func(Snapshot)
	logger     *slog.Logger
	telemetry  Telemetry

	mu      sync.RWMutex
	req     StatsRequest
	snap    Snapshot
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

// NewPoller builds a poller; call Start to begin polling.
func NewPoller(opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultRefreshPeriod
	}
	return &Poller{
		fetcher:    opts.Fetcher,
		interval:   interval,
		cache:      opts.Cache,
		onSnapshot: opts.OnSnapshot,
		logger:     normalizeLogger(opts.Logger),
		telemetry:  normalizeTelemetry(opts.Telemetry),
		req:        opts.Request,
		trigger:    make(chan struct{}, 1),
	}
}

// Start launches the polling loop. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Snapshot returns the latest state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Request returns the current request.
func (p *Poller) Request() StatsRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.req
}

// SetRequest swaps the parameters and triggers an immediate fetch.
// Responses for the previous parameters are discarded.
func (p *Poller) SetRequest(req StatsRequest) {
	p.mu.Lock()
	p.req = req
	p.gen++
	p.snap = Snapshot{}
	p.mu.Unlock()
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Refresh fetches synchronously, bypassing the response cache.
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	p.poll(ctx, true)
	return p.Snapshot()
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	p.poll(ctx, false)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, false)
		case <-p.trigger:
			ticker.Reset(p.interval)
			p.poll(ctx, false)
		}
	}
}

func (p *Poller) poll(ctx context.Context, bypassCache bool) {
	p.mu.Lock()
	req, gen := p.req, p.gen
	p.snap.Loading = true
	p.mu.Unlock()

	if !req.Valid() {
		p.mu.Lock()
		if gen == p.gen {
			p.snap.Loading = false
		}
		p.mu.Unlock()
		return
	}

	started := time.Now()
	stats, err := p.fetch(ctx, req, bypassCache)
	if err != nil && ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.snap.Loading = false
		p.snap.Err = err
		p.snap.Error = err.Error()
	} else {
		p.snap = Snapshot{Data: stats, FetchedAt: time.Now().UTC()}
	}
	snap := p.snap
	p.mu.Unlock()

	if err != nil {
		p.logger.ErrorContext(ctx, "streamkit: stats fetch failed",
			"region", req.Region, "account_id", req.AccountID, "error", err)
	}
	p.telemetry.Record(ctx, "streamkit.stats.poll", map[string]any{
		"key":         req.Key(),
		"duration_ms": time.Since(started).Milliseconds(),
		"ok":          err == nil,
	})
	if p.onSnapshot != nil {
		p.onSnapshot(snap)
	}
}

var errNoFetcher = errors.New("streamkit: stats fetcher is required")

func (p *Poller) fetch(ctx context.Context, req StatsRequest, bypassCache bool) (Stats, error) {
	if p.fetcher == nil {
		return nil, errNoFetcher
	}
	load := func() (Stats, error) {
		return p.fetcher.ResolveVariables(ctx, req)
	}
	if p.cache == nil {
		return load()
	}
	if bypassCache {
		stats, err := load()
		if err != nil {
			return nil, err
		}
		p.cache.Set(req.Key(), stats)
		return stats, nil
	}
	return p.cache.GetOrLoad(req.Key(), load)
}
