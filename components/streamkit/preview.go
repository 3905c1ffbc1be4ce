package streamkit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// PreviewFailureMessage is shown when the preview request fails.
const PreviewFailureMessage = "Failed to load preview. Please check the generated URL."

// DefaultPreviewDebounce is the idle delay before a template edit is previewed.
const DefaultPreviewDebounce = 500 * time.Millisecond

// PreviewState is the lifecycle of a command preview.
type PreviewState string

const (
	PreviewIdle     PreviewState = "idle"
	PreviewLoading  PreviewState = "loading"
	PreviewResolved PreviewState = "resolved"
	PreviewFailed   PreviewState = "failed"
)

// PreviewStatus is what the builder shows under the generated URL.
type PreviewStatus struct {
	State   PreviewState `json:"state"`
	URL     string       `json:"url,omitempty"`
	Text    string       `json:"text,omitempty"`
	Message string       `json:"message,omitempty"`
}

// ResolvePreview fetches the resolved text for commandURL once.
func ResolvePreview(ctx context.Context, resolver TemplateResolver, commandURL string, logger *slog.Logger) PreviewStatus {
	if commandURL == "" {
		return PreviewStatus{State: PreviewIdle}
	}
	if resolver == nil {
		return PreviewStatus{State: PreviewFailed, URL: commandURL, Message: PreviewFailureMessage}
	}
	text, err := resolver.ResolveTemplate(ctx, commandURL)
	if err != nil {
		normalizeLogger(logger).ErrorContext(ctx, "streamkit: preview failed", "url", commandURL, "error", err)
		return PreviewStatus{State: PreviewFailed, URL: commandURL, Message: PreviewFailureMessage}
	}
	return PreviewStatus{State: PreviewResolved, URL: commandURL, Text: text}
}

// CommandPreviewOptions configures a CommandPreview.
type CommandPreviewOptions struct {
	Resolver        TemplateResolver
	CommandsBaseURL string
	Catalog         *CatalogCache
	Debounce        time.Duration
	Logger          *slog.Logger
	OnChange        func(PreviewStatus)
}

// CommandPreview tracks a template being edited and previews the command it
// produces. Template edits are debounced; account, region and extra argument
// changes apply immediately. Only the response for the newest URL is kept.
type CommandPreview struct {
	resolver TemplateResolver
	baseURL  string
	catalog  *CatalogCache
	logger   *slog.Logger
	onChange func(PreviewStatus)
	debounce func(func())

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	region     string
	accountID  string
	live       string
	settled    string
	extraArgs  ExtraArgs
	lastURL    string
	generation uint64
	status     PreviewStatus
}

// NewCommandPreview creates an idle preview bound to ctx. The variable catalog
// loads in the background; the URL is recomputed once it arrives so extra
// arguments set before then are not lost.
func NewCommandPreview(ctx context.Context, opts CommandPreviewOptions) *CommandPreview {
	delay := opts.Debounce
	if delay <= 0 {
		delay = DefaultPreviewDebounce
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &CommandPreview{
		resolver:  opts.Resolver,
		baseURL:   opts.CommandsBaseURL,
		catalog:   opts.Catalog,
		logger:    normalizeLogger(opts.Logger),
		onChange:  opts.OnChange,
		debounce:  debounce.New(delay),
		ctx:       ctx,
		cancel:    cancel,
		extraArgs: ExtraArgs{},
		status:    PreviewStatus{State: PreviewIdle},
	}
	if p.catalog != nil {
		go p.loadCatalog()
	}
	return p
}

func (p *CommandPreview) loadCatalog() {
	if _, err := p.catalog.Load(p.ctx); err != nil {
		if p.ctx.Err() == nil {
			p.logger.WarnContext(p.ctx, "streamkit: preview catalog unavailable", "error", err)
		}
		return
	}
	p.mu.Lock()
	status, changed := p.settleLocked()
	p.mu.Unlock()
	p.notify(status, changed)
}

// SetTarget changes the account and region.
func (p *CommandPreview) SetTarget(region, accountID string) {
	p.mu.Lock()
	p.region = strings.TrimSpace(region)
	p.accountID = NormalizeAccountID(accountID)
	status, changed := p.settleLocked()
	p.mu.Unlock()
	p.notify(status, changed)
}

// SetExtraArg records a value for an extra argument.
func (p *CommandPreview) SetExtraArg(name, value string) {
	p.mu.Lock()
	p.extraArgs[name] = value
	status, changed := p.settleLocked()
	p.mu.Unlock()
	p.notify(status, changed)
}

// SetTemplate records an edit. The preview follows once edits pause.
func (p *CommandPreview) SetTemplate(template string) {
	p.mu.Lock()
	p.live = template
	p.mu.Unlock()
	p.debounce(func() {
		if p.ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		p.settled = p.live
		status, changed := p.settleLocked()
		p.mu.Unlock()
		p.notify(status, changed)
	})
}

// GeneratedURL is the command URL for the template as currently typed.
func (p *CommandPreview) GeneratedURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urlForLocked(p.live)
}

// UsedExtraArgs lists the extra arguments the current template needs.
func (p *CommandPreview) UsedExtraArgs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return UsedExtraArgs(p.live, p.catalog.Current())
}

// Status returns the current preview state.
func (p *CommandPreview) Status() PreviewStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Close stops pending debounce timers and drops in-flight responses.
func (p *CommandPreview) Close() {
	p.cancel()
}

func (p *CommandPreview) urlForLocked(template string) string {
	used := UsedExtraArgs(template, p.catalog.Current())
	return GenerateCommandURL(p.baseURL, p.accountID, p.region, template, p.extraArgs.Only(used))
}

// settleLocked recomputes the debounced URL and starts a fetch when it changed.
func (p *CommandPreview) settleLocked() (PreviewStatus, bool) {
	if p.ctx.Err() != nil {
		return p.status, false
	}
	next := p.urlForLocked(p.settled)
	if next == p.lastURL {
		return p.status, false
	}
	p.lastURL = next
	p.generation++
	if next == "" {
		p.status = PreviewStatus{State: PreviewIdle}
		return p.status, true
	}
	p.status = PreviewStatus{State: PreviewLoading, URL: next}
	go p.fetch(p.generation, next)
	return p.status, true
}

func (p *CommandPreview) fetch(generation uint64, commandURL string) {
	status := ResolvePreview(p.ctx, p.resolver, commandURL, p.logger)
	p.mu.Lock()
	if generation != p.generation || p.ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.status = status
	p.mu.Unlock()
	p.notify(status, true)
}

func (p *CommandPreview) notify(status PreviewStatus, changed bool) {
	if changed && p.onChange != nil {
		p.onChange(status)
	}
}
