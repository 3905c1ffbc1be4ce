package streamkit

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ettle/strcase"
)

// Query keys understood by the widget route.
const (
	QueryVars                   = "vars"
	QueryLabels                 = "labels"
	QueryTheme                  = "theme"
	QueryShowHeader             = "showHeader"
	QueryShowBranding           = "showBranding"
	QueryShowMatchHistory       = "showMatchHistory"
	QueryMatchHistoryShowsToday = "matchHistoryShowsToday"
	QueryNumMatches             = "numMatches"
	QueryOpacity                = "opacity"

	QueryRawVariable          = "variable"
	QueryRawPrefix            = "prefix"
	QueryRawSuffix            = "suffix"
	QueryRawFontColor         = "fontColor"
	QueryRawFontColorLikeRank = "fontColorLikeRank"
)

const (
	DefaultNumMatches   = 10
	DefaultOpacity      = 100
	DefaultRawVariable  = "wins_losses_today"
	DefaultRawFontColor = "#ffffff"
)

var (
	defaultVariables = []string{"leaderboard_place", "leaderboard_rank", "wins_losses_today", "total_kd"}
	defaultLabels    = []string{"Place", "Rank", "Daily W-L", "K/D"}

	reservedQueryKeys = map[string]struct{}{
		QueryVars: {}, QueryLabels: {}, QueryTheme: {},
		QueryShowHeader: {}, QueryShowBranding: {}, QueryShowMatchHistory: {},
		QueryMatchHistoryShowsToday: {}, QueryNumMatches: {}, QueryOpacity: {},
	}
	reservedRawQueryKeys = map[string]struct{}{
		QueryRawVariable: {}, QueryRawPrefix: {}, QueryRawSuffix: {},
		QueryRawFontColor: {}, QueryRawFontColorLikeRank: {},
	}
)

// DefaultVariables returns the stats shown when a box widget names none.
func DefaultVariables() []string { return append([]string(nil), defaultVariables...) }

// DefaultLabels returns the labels paired with DefaultVariables.
func DefaultLabels() []string { return append([]string(nil), defaultLabels...) }

// RawOptions configures the single-value raw widget.
type RawOptions struct {
	Variable          string `json:"variable"`
	Prefix            string `json:"prefix,omitempty"`
	Suffix            string `json:"suffix,omitempty"`
	FontColor         string `json:"font_color,omitempty"`
	FontColorLikeRank bool   `json:"font_color_like_rank"`
}

// WidgetConfig is the full configuration of an overlay widget.
type WidgetConfig struct {
	Type                   WidgetType        `json:"type"`
	Region                 string            `json:"region"`
	AccountID              string            `json:"account_id"`
	Variables              []string          `json:"variables"`
	Labels                 []string          `json:"labels"`
	Theme                  Theme             `json:"theme"`
	ShowHeader             bool              `json:"show_header"`
	ShowBranding           bool              `json:"show_branding"`
	ShowMatchHistory       bool              `json:"show_match_history"`
	MatchHistoryShowsToday bool              `json:"match_history_shows_today"`
	NumMatches             int               `json:"num_matches"`
	Opacity                int               `json:"opacity"`
	ExtraArgs              map[string]string `json:"extra_args,omitempty"`
	Raw                    RawOptions        `json:"raw"`
}

// DefaultWidgetConfig returns the configuration a bare widget URL decodes to.
func DefaultWidgetConfig(t WidgetType) WidgetConfig {
	return WidgetConfig{
		Type:                   t,
		Variables:              DefaultVariables(),
		Labels:                 DefaultLabels(),
		Theme:                  ThemeDefault,
		ShowHeader:             true,
		ShowBranding:           true,
		ShowMatchHistory:       true,
		MatchHistoryShowsToday: true,
		NumMatches:             DefaultNumMatches,
		Opacity:                DefaultOpacity,
		ExtraArgs:              map[string]string{},
		Raw: RawOptions{
			Variable:  DefaultRawVariable,
			FontColor: DefaultRawFontColor,
		},
	}
}

// ToQuery encodes cfg as widget URL query parameters.
// Empty lists and empty extra values are omitted. Booleans and numbers are always written.
func (cfg WidgetConfig) ToQuery() url.Values {
	q := url.Values{}
	if len(cfg.Variables) > 0 {
		q.Set(QueryVars, strings.Join(cfg.Variables, ","))
	}
	if len(cfg.Labels) > 0 {
		q.Set(QueryLabels, strings.Join(cfg.Labels, ","))
	}
	if cfg.Theme != "" {
		q.Set(QueryTheme, string(cfg.Theme))
	}
	q.Set(QueryShowHeader, strconv.FormatBool(cfg.ShowHeader))
	q.Set(QueryShowBranding, strconv.FormatBool(cfg.ShowBranding))
	q.Set(QueryShowMatchHistory, strconv.FormatBool(cfg.ShowMatchHistory))
	q.Set(QueryMatchHistoryShowsToday, strconv.FormatBool(cfg.MatchHistoryShowsToday))
	q.Set(QueryNumMatches, strconv.Itoa(cfg.NumMatches))
	q.Set(QueryOpacity, strconv.Itoa(cfg.Opacity))

	if cfg.Type == WidgetTypeRaw {
		if cfg.Raw.Variable != "" {
			q.Set(QueryRawVariable, cfg.Raw.Variable)
		}
		if cfg.Raw.Prefix != "" {
			q.Set(QueryRawPrefix, cfg.Raw.Prefix)
		}
		if cfg.Raw.Suffix != "" {
			q.Set(QueryRawSuffix, cfg.Raw.Suffix)
		}
		if cfg.Raw.FontColor != "" {
			q.Set(QueryRawFontColor, cfg.Raw.FontColor)
		}
		if cfg.Raw.FontColorLikeRank {
			q.Set(QueryRawFontColorLikeRank, "true")
		}
	}

	for name, value := range cfg.ExtraArgs {
		if value == "" || isReservedKey(cfg.Type, name) {
			continue
		}
		q.Set(name, value)
	}
	return q
}

// FromQuery decodes widget query parameters for a widget of type t.
// Missing keys take their defaults; unknown keys become extra arguments.
func FromQuery(t WidgetType, q url.Values) WidgetConfig {
	cfg := DefaultWidgetConfig(t)
	q = canonicalQuery(t, q)

	if vars := splitList(q.Get(QueryVars)); len(vars) > 0 {
		cfg.Variables = vars
		cfg.Labels = nil
		if labels, ok := q[QueryLabels]; ok && len(labels) > 0 && labels[0] != "" {
			cfg.Labels = strings.Split(labels[0], ",")
		} else {
			cfg.Labels = make([]string, len(vars))
			for i, name := range vars {
				cfg.Labels[i] = SnakeToPretty(name)
			}
		}
	} else if labels := q.Get(QueryLabels); labels != "" {
		cfg.Labels = strings.Split(labels, ",")
	}

	cfg.Theme = ParseTheme(q.Get(QueryTheme))
	cfg.ShowHeader = queryFlag(q, QueryShowHeader)
	cfg.ShowBranding = queryFlag(q, QueryShowBranding)
	cfg.ShowMatchHistory = queryFlag(q, QueryShowMatchHistory)
	cfg.MatchHistoryShowsToday = queryFlag(q, QueryMatchHistoryShowsToday)
	cfg.NumMatches = queryInt(q, QueryNumMatches, DefaultNumMatches)
	cfg.Opacity = queryInt(q, QueryOpacity, DefaultOpacity)

	if t == WidgetTypeRaw {
		if v := q.Get(QueryRawVariable); v != "" {
			cfg.Raw.Variable = v
		}
		cfg.Raw.Prefix = q.Get(QueryRawPrefix)
		cfg.Raw.Suffix = q.Get(QueryRawSuffix)
		if v := q.Get(QueryRawFontColor); v != "" {
			cfg.Raw.FontColor = v
		}
		cfg.Raw.FontColorLikeRank = q.Get(QueryRawFontColorLikeRank) == "true"
	}

	for name, values := range q {
		if isReservedKey(t, name) || len(values) == 0 || values[0] == "" {
			continue
		}
		cfg.ExtraArgs[name] = values[0]
	}
	return cfg
}

// ParseWidgetRequest decodes the path and query of a widget route.
func ParseWidgetRequest(region, accountID, widgetType string, q url.Values) (WidgetConfig, error) {
	if strings.TrimSpace(region) == "" || strings.TrimSpace(accountID) == "" {
		return WidgetConfig{}, ErrMissingAccount
	}
	t, err := ParseWidgetType(widgetType)
	if err != nil {
		return WidgetConfig{}, err
	}
	cfg := FromQuery(t, q)
	cfg.Region = region
	cfg.AccountID = NormalizeAccountID(accountID)
	return cfg, nil
}

// WidgetURL builds the public URL of the widget. It returns "" when the
// region or account id is missing.
func WidgetURL(publicBase string, cfg WidgetConfig) string {
	if strings.TrimSpace(cfg.Region) == "" || strings.TrimSpace(cfg.AccountID) == "" || cfg.Type == "" {
		return ""
	}
	base := strings.TrimRight(publicBase, "/")
	u, err := url.Parse(base + "/widgets/" + url.PathEscape(cfg.Region) + "/" +
		url.PathEscape(NormalizeAccountID(cfg.AccountID)) + "/" + url.PathEscape(string(cfg.Type)))
	if err != nil {
		return ""
	}
	u.RawQuery = cfg.ToQuery().Encode()
	return u.String()
}

// LabelAt returns the label for slot i, falling back to the pretty variable name.
func (cfg WidgetConfig) LabelAt(i int) string {
	if i < len(cfg.Labels) && cfg.Labels[i] != "" {
		return cfg.Labels[i]
	}
	if i < len(cfg.Variables) {
		return SnakeToPretty(cfg.Variables[i])
	}
	return ""
}

func isReservedKey(t WidgetType, name string) bool {
	if _, ok := reservedQueryKeys[name]; ok {
		return true
	}
	if t == WidgetTypeRaw {
		_, ok := reservedRawQueryKeys[name]
		return ok
	}
	return false
}

// canonicalQuery accepts snake_case spellings of the widget keys, so
// "show_header" reads as "showHeader". The camelCase key wins when both are set.
func canonicalQuery(t WidgetType, q url.Values) url.Values {
	out := make(url.Values, len(q))
	for name, values := range q {
		if !isReservedKey(t, name) && strings.Contains(name, "_") {
			if camel := strcase.ToCamel(name); isReservedKey(t, camel) {
				if _, set := q[camel]; !set {
					out[camel] = values
				}
				continue
			}
		}
		out[name] = values
	}
	return out
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

// queryFlag is false only for the literal "false"; absent or any other value is true.
func queryFlag(q url.Values, key string) bool {
	return q.Get(key) != "false"
}

func queryInt(q url.Values, key string, fallback int) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
