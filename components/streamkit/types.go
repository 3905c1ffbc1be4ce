package streamkit

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrMissingAccount is returned when a region or account id is absent.
	ErrMissingAccount = errors.New("streamkit: region and account id are required")
	// ErrUnknownWidgetType is returned for widget types other than box/raw.
	ErrUnknownWidgetType = errors.New("streamkit: invalid widget type")
)

// Region identifies a leaderboard region understood by the stats API.
type Region string

const (
	RegionEurope   Region = "Europe"
	RegionAsia     Region = "Asia"
	RegionNAmerica Region = "NAmerica"
	RegionSAmerica Region = "SAmerica"
	RegionOceania  Region = "Oceania"
)

// Regions lists the regions offered by the builder.
func Regions() []Region {
	return []Region{RegionEurope, RegionAsia, RegionNAmerica, RegionSAmerica, RegionOceania}
}

// WidgetType selects the widget variant.
type WidgetType string

const (
	WidgetTypeBox WidgetType = "box"
	WidgetTypeRaw WidgetType = "raw"
)

// ParseWidgetType returns the widget type or ErrUnknownWidgetType.
func ParseWidgetType(value string) (WidgetType, error) {
	switch WidgetType(strings.ToLower(strings.TrimSpace(value))) {
	case WidgetTypeBox:
		return WidgetTypeBox, nil
	case WidgetTypeRaw:
		return WidgetTypeRaw, nil
	default:
		return "", ErrUnknownWidgetType
	}
}

// Theme is the visual theme of a widget.
type Theme string

const (
	ThemeDefault Theme = "default"
	ThemeDark    Theme = "dark"
	ThemeLight   Theme = "light"
	ThemeGlass   Theme = "glass"
)

// ParseTheme maps a query value onto a known theme, falling back to ThemeDefault.
func ParseTheme(value string) Theme {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case ThemeDark:
		return ThemeDark
	case ThemeLight:
		return ThemeLight
	case ThemeGlass:
		return ThemeGlass
	default:
		return ThemeDefault
	}
}

// Variable is a template variable published by the stats API.
type Variable struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ExtraArgs   []string `json:"extra_args,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// IsImage reports whether the variable resolves to an image URL.
func (v Variable) IsImage() bool {
	return isImageVariable(v.Name)
}

// Stats maps variable names to resolved values. Missing keys mean the value is unavailable.
type Stats map[string]string

// Value returns the resolved value for name.
func (s Stats) Value(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s[name]
	return v, ok
}

// Clone returns a copy safe to hand to another goroutine.
func (s Stats) Clone() Stats {
	if s == nil {
		return nil
	}
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Match is one entry of a player's match history.
type Match struct {
	MatchID     int64 `json:"match_id"`
	HeroID      int   `json:"hero_id"`
	MatchResult int   `json:"match_result"`
	PlayerTeam  int   `json:"player_team"`
}

// IsWin reports whether the player's team won.
func (m Match) IsWin() bool {
	return m.MatchResult == m.PlayerTeam
}

// Hero carries the asset data used by the match history strip.
type Hero struct {
	ID      int    `json:"id"`
	IconURL string `json:"icon_url"`
}

// Rank maps a badge tier to its display colour.
type Rank struct {
	Tier  int    `json:"tier"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color"`
}

// CatalogClient fetches the available template variables.
type CatalogClient interface {
	FetchVariables(ctx context.Context) ([]Variable, error)
}

// TemplateResolver resolves a generated command URL into its text.
type TemplateResolver interface {
	ResolveTemplate(ctx context.Context, commandURL string) (string, error)
}

// StatsFetcher resolves variable values for an account.
type StatsFetcher interface {
	ResolveVariables(ctx context.Context, req StatsRequest) (Stats, error)
}

// MatchHistoryClient fetches recent matches, newest first.
type MatchHistoryClient interface {
	FetchMatchHistory(ctx context.Context, accountID string) ([]Match, error)
}

// AssetsClient fetches static game assets.
type AssetsClient interface {
	FetchHeroes(ctx context.Context) ([]Hero, error)
	FetchRanks(ctx context.Context) ([]Rank, error)
}

// VersionClient fetches the published widget versions.
type VersionClient interface {
	FetchWidgetVersions(ctx context.Context) (map[string]int, error)
}

// Client is the union of every remote call the service makes.
type Client interface {
	CatalogClient
	TemplateResolver
	StatsFetcher
	MatchHistoryClient
	AssetsClient
	VersionClient
}
