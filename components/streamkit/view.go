package streamkit

import "strings"

// MatchView is one entry of the match history strip.
type MatchView struct {
	MatchID  int64  `json:"match_id"`
	HeroIcon string `json:"hero_icon"`
	Win      bool   `json:"win"`
}

// MatchHistoryViews takes the n most recent matches (input is newest first)
// and returns them oldest to newest. Matches without a hero icon are skipped.
func MatchHistoryViews(matches []Match, n int, heroes map[int]string) []MatchView {
	if n <= 0 || len(matches) == 0 || len(heroes) == 0 {
		return nil
	}
	if n > len(matches) {
		n = len(matches)
	}
	out := make([]MatchView, 0, n)
	for i := n - 1; i >= 0; i-- {
		m := matches[i]
		icon := heroes[m.HeroID]
		if icon == "" {
			continue
		}
		out = append(out, MatchView{MatchID: m.MatchID, HeroIcon: icon, Win: m.IsWin()})
	}
	return out
}

// BoxView is the render model of the box widget.
type BoxView struct {
	Config       WidgetConfig    `json:"config"`
	WidgetKey    string          `json:"widget_key"`
	Theme        *ThemeSelection `json:"-"`
	Style        string          `json:"style"`
	Header       string          `json:"header,omitempty"`
	ShowHeader   bool            `json:"show_header"`
	Stats        []Stat          `json:"stats"`
	Matches      []MatchView     `json:"matches,omitempty"`
	ShowMatches  bool            `json:"show_matches"`
	ShowBranding bool            `json:"show_branding"`
	Loading      bool            `json:"loading"`
}

// NewBoxView assembles the box render model. Loading, empty and failed
// snapshots all render without tiles; errors are never shown in the widget.
func NewBoxView(cfg WidgetConfig, snap Snapshot, matches []Match, heroes map[int]string) BoxView {
	theme := ResolveTheme(cfg.Theme, cfg.Opacity)
	view := BoxView{
		Config:    cfg,
		WidgetKey: NewStatsRequest(cfg).Key(),
		Theme:     theme,
		Style:     theme.CSSVariablesInline(),
		Stats:     BuildStats(cfg, snap.Data),
		Loading:   snap.Loading && !snap.HasData(),
	}
	if name, _ := snap.Data.Value(VariableAccountName); cfg.ShowHeader && strings.TrimSpace(name) != "" {
		view.Header = name
		view.ShowHeader = true
	}
	if cfg.ShowMatchHistory {
		view.Matches = MatchHistoryViews(matches, MatchesToShow(cfg, snap.Data), heroes)
		view.ShowMatches = len(view.Matches) > 0
	}
	view.ShowBranding = cfg.ShowBranding && !view.Loading && snap.HasData()
	return view
}

// RawView is the render model of the raw widget.
type RawView struct {
	Config    WidgetConfig `json:"config"`
	WidgetKey string       `json:"widget_key"`
	Text      string       `json:"text,omitempty"`
	ImageURL  string       `json:"image_url,omitempty"`
	FontColor string       `json:"font_color"`
	HasValue  bool         `json:"has_value"`
	Loading   bool         `json:"loading"`
}

// NewRawView assembles the raw render model. Empty values render nothing.
func NewRawView(cfg WidgetConfig, snap Snapshot, palette *RankPalette) RawView {
	view := RawView{
		Config:    cfg,
		WidgetKey: NewStatsRequest(cfg).Key(),
		FontColor: RawFontColor(cfg.Raw, snap.Data, palette),
		Loading:   snap.Loading && !snap.HasData(),
	}
	value, _ := snap.Data.Value(cfg.Raw.Variable)
	if value == "" {
		return view
	}
	view.HasValue = true
	if isImageVariable(cfg.Raw.Variable) {
		view.ImageURL = value
		return view
	}
	view.Text = cfg.Raw.Prefix + value + cfg.Raw.Suffix
	return view
}
