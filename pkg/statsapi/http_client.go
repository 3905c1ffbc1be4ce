package statsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	streamkit "github.com/goliatone/go-streamkit/components/streamkit"
)

const (
	// DefaultBaseURL is the public stats API.
	DefaultBaseURL = "https://api.deadlock-api.com"
	// DefaultAssetsURL serves heroes and ranks.
	DefaultAssetsURL = "https://assets.deadlock-api.com"

	maxBodyBytes = 4 << 20
)

// HTTPConfig configures the HTTP stats client.
type HTTPConfig struct {
	BaseURL    string
	AssetsURL  string
	HTTPClient *http.Client
	Retry      *RetryPolicy
	Logger     *slog.Logger
}

// HTTPClient talks to the stats and assets APIs.
type HTTPClient struct {
	baseURL   string
	assetsURL string
	client    *http.Client
	retry     RetryPolicy
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("statsapi: remote error %d: %s", e.Code, e.Body)
}

var _ streamkit.Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the live APIs.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("statsapi: invalid base url %q: %w", cfg.BaseURL, err)
	}
	assetsURL := strings.TrimRight(strings.TrimSpace(cfg.AssetsURL), "/")
	if assetsURL == "" {
		assetsURL = DefaultAssetsURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = cfg.Retry.normalized()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL:   baseURL,
		assetsURL: assetsURL,
		client:    httpClient,
		retry:     retry,
		logger:    logger,
		sleep:     sleepContext,
	}, nil
}

// CommandsBaseURL is the base used to build command resolve URLs.
func (c *HTTPClient) CommandsBaseURL() string {
	return c.baseURL + "/v1/commands"
}

// FetchVariables implements streamkit.CatalogClient.
func (c *HTTPClient) FetchVariables(ctx context.Context) ([]streamkit.Variable, error) {
	var vars []streamkit.Variable
	if err := c.getJSON(ctx, c.CommandsBaseURL()+"/available-variables", &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// ResolveTemplate implements streamkit.TemplateResolver.
func (c *HTTPClient) ResolveTemplate(ctx context.Context, commandURL string) (string, error) {
	body, err := c.get(ctx, commandURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ResolveVariables implements streamkit.StatsFetcher.
func (c *HTTPClient) ResolveVariables(ctx context.Context, req streamkit.StatsRequest) (streamkit.Stats, error) {
	if strings.TrimSpace(req.Region) == "" || strings.TrimSpace(req.AccountID) == "" {
		return nil, streamkit.ErrMissingAccount
	}
	endpoint := c.CommandsBaseURL() + "/" + url.PathEscape(req.Region) + "/" + url.PathEscape(req.AccountID) + "/resolve-variables"
	q := url.Values{}
	for name, value := range req.ExtraArgs {
		if value != "" {
			q.Set(name, value)
		}
	}
	q.Set("variables", strings.Join(req.AllVariables(), ","))

	var raw map[string]any
	if err := c.getJSON(ctx, endpoint+"?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	stats := make(streamkit.Stats, len(raw))
	for name, value := range raw {
		if s, ok := stringify(value); ok {
			stats[name] = s
		}
	}
	return stats, nil
}

// FetchMatchHistory implements streamkit.MatchHistoryClient. Both the
// {"matches": [...]} envelope and a bare array are accepted.
func (c *HTTPClient) FetchMatchHistory(ctx context.Context, accountID string) ([]streamkit.Match, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, streamkit.ErrMissingAccount
	}
	body, err := c.get(ctx, c.baseURL+"/v1/players/"+url.PathEscape(accountID)+"/match-history")
	if err != nil {
		return nil, err
	}
	return decodeMatchHistory(body)
}

// FetchHeroes implements streamkit.AssetsClient.
func (c *HTTPClient) FetchHeroes(ctx context.Context) ([]streamkit.Hero, error) {
	var resp []heroResponse
	if err := c.getJSON(ctx, c.assetsURL+"/v2/heroes", &resp); err != nil {
		return nil, err
	}
	heroes := make([]streamkit.Hero, 0, len(resp))
	for _, h := range resp {
		heroes = append(heroes, streamkit.Hero{ID: h.ID, IconURL: h.Images.IconHeroCardWebp})
	}
	return heroes, nil
}

// FetchRanks implements streamkit.AssetsClient.
func (c *HTTPClient) FetchRanks(ctx context.Context) ([]streamkit.Rank, error) {
	var ranks []streamkit.Rank
	if err := c.getJSON(ctx, c.assetsURL+"/v2/ranks", &ranks); err != nil {
		return nil, err
	}
	return ranks, nil
}

// FetchWidgetVersions implements streamkit.VersionClient.
func (c *HTTPClient) FetchWidgetVersions(ctx context.Context) (map[string]int, error) {
	var versions map[string]int
	if err := c.getJSON(ctx, c.CommandsBaseURL()+"/widget-versions", &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, target any) error {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("statsapi: decode response: %w", err)
	}
	return nil
}

// get performs a GET with the retry policy applied.
func (c *HTTPClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := c.getOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		remaining := c.retry.Retries - attempt
		if remaining <= 0 || ctx.Err() != nil {
			c.logger.ErrorContext(ctx, "statsapi: request failed", "url", rawURL, "attempts", attempt+1, "error", err)
			return nil, err
		}
		c.logger.WarnContext(ctx, "statsapi: request failed, retrying", "url", rawURL, "retries_left", remaining, "error", err)
		if err := c.sleep(ctx, c.retry.Delay); err != nil {
			return nil, err
		}
	}
}

func (c *HTTPClient) getOnce(ctx context.Context, rawURL string) ([]byte, error) {
	if c.retry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.retry.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("statsapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("statsapi: http request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("statsapi: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type heroResponse struct {
	ID     int `json:"id"`
	Images struct {
		IconHeroCardWebp string `json:"icon_hero_card_webp"`
	} `json:"images"`
}

type matchHistoryEnvelope struct {
	Matches []streamkit.Match `json:"matches"`
}

var errUnknownHistoryShape = errors.New("statsapi: unrecognised match history payload")

func decodeMatchHistory(body []byte) ([]streamkit.Match, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errUnknownHistoryShape
	}
	switch trimmed[0] {
	case '[':
		var matches []streamkit.Match
		if err := json.Unmarshal(trimmed, &matches); err != nil {
			return nil, fmt.Errorf("statsapi: decode match history: %w", err)
		}
		return matches, nil
	case '{':
		var envelope matchHistoryEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("statsapi: decode match history: %w", err)
		}
		return envelope.Matches, nil
	default:
		return nil, errUnknownHistoryShape
	}
}

func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
