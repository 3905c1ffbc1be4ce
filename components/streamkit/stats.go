package streamkit

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Auxiliary variables are requested for conditional rendering only.
const (
	VariableAccountName  = "steam_account_name"
	VariableMatchesToday = "matches_today"
	VariableRankBadge    = "leaderboard_rank_badge_level"
)

const (
	statPlaceholder       = "-"
	defaultRefreshPeriod  = 5 * time.Minute
	staleWindowAdjustment = 10 * time.Second
)

// StatsRequest identifies one resolve-variables call.
type StatsRequest struct {
	Region    string            `json:"region"`
	AccountID string            `json:"account_id"`
	Variables []string          `json:"variables"`
	Auxiliary []string          `json:"auxiliary,omitempty"`
	ExtraArgs map[string]string `json:"extra_args,omitempty"`
}

// AllVariables returns the user variables followed by auxiliary ones, without duplicates.
func (r StatsRequest) AllVariables() []string {
	seen := make(map[string]struct{}, len(r.Variables)+len(r.Auxiliary))
	out := make([]string, 0, len(r.Variables)+len(r.Auxiliary))
	for _, list := range [][]string{r.Variables, r.Auxiliary} {
		for _, name := range list {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Key returns a stable hash identifying the request.
func (r StatsRequest) Key() string {
	payload := map[string]any{
		"region":     r.Region,
		"account_id": r.AccountID,
		"variables":  r.AllVariables(),
	}
	if len(r.ExtraArgs) > 0 {
		args := make([]string, 0, len(r.ExtraArgs))
		for _, k := range sortedKeys(r.ExtraArgs) {
			if r.ExtraArgs[k] == "" {
				continue
			}
			args = append(args, k+"="+r.ExtraArgs[k])
		}
		payload["extra_args"] = args
	}
	return requestHash(payload)
}

// Valid reports whether the request can be sent.
func (r StatsRequest) Valid() bool {
	return strings.TrimSpace(r.Region) != "" && strings.TrimSpace(r.AccountID) != "" && len(r.AllVariables()) > 0
}

// AuxiliaryVariables returns the extra variables a widget needs for conditional
// rendering, skipping names the user already selected.
func AuxiliaryVariables(cfg WidgetConfig) []string {
	selected := make(map[string]struct{}, len(cfg.Variables))
	for _, name := range cfg.Variables {
		selected[name] = struct{}{}
	}
	var aux []string
	add := func(name string) {
		if _, ok := selected[name]; ok {
			return
		}
		selected[name] = struct{}{}
		aux = append(aux, name)
	}
	switch cfg.Type {
	case WidgetTypeRaw:
		if cfg.Raw.FontColorLikeRank {
			add(VariableRankBadge)
		}
	default:
		if cfg.ShowHeader {
			add(VariableAccountName)
		}
		if cfg.ShowMatchHistory && cfg.MatchHistoryShowsToday {
			add(VariableMatchesToday)
		}
	}
	return aux
}

// NewStatsRequest derives the stats request for a widget.
func NewStatsRequest(cfg WidgetConfig) StatsRequest {
	vars := cfg.Variables
	if cfg.Type == WidgetTypeRaw {
		vars = []string{cfg.Raw.Variable}
	}
	extra := make(map[string]string, len(cfg.ExtraArgs))
	for k, v := range cfg.ExtraArgs {
		if v != "" {
			extra[k] = v
		}
	}
	return StatsRequest{
		Region:    cfg.Region,
		AccountID: NormalizeAccountID(cfg.AccountID),
		Variables: append([]string(nil), vars...),
		Auxiliary: AuxiliaryVariables(cfg),
		ExtraArgs: extra,
	}
}

// Snapshot is the latest state of a stats subscription.
type Snapshot struct {
	Data      Stats     `json:"data"`
	Loading   bool      `json:"loading"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HasData reports whether at least one successful fetch landed.
func (s Snapshot) HasData() bool {
	return s.Data != nil
}

// StatKind tags how a stat tile is rendered.
type StatKind string

const (
	StatKindText  StatKind = "text"
	StatKindImage StatKind = "image"
)

// Stat is one rendered tile.
type Stat struct {
	Kind     StatKind `json:"kind"`
	Variable string   `json:"variable"`
	Label    string   `json:"label"`
	Value    string   `json:"value"`
	HasValue bool     `json:"has_value"`
}

// Display returns the value or a placeholder when the API did not resolve it.
func (s Stat) Display() string {
	if !s.HasValue {
		return statPlaceholder
	}
	return s.Value
}

// IsImage is a template helper.
func (s Stat) IsImage() bool {
	return s.Kind == StatKindImage
}

// BuildStats zips the configured variables with their labels and resolved values.
// Auxiliary values in stats never produce tiles. A nil stats map yields no tiles.
func BuildStats(cfg WidgetConfig, stats Stats) []Stat {
	if stats == nil {
		return nil
	}
	tiles := make([]Stat, 0, len(cfg.Variables))
	for i, name := range cfg.Variables {
		if name == "" {
			continue
		}
		value, ok := stats.Value(name)
		kind := StatKindText
		if isImageVariable(name) {
			kind = StatKindImage
		}
		tiles = append(tiles, Stat{
			Kind:     kind,
			Variable: name,
			Label:    cfg.LabelAt(i),
			Value:    value,
			HasValue: ok,
		})
	}
	return tiles
}

// MatchesToShow returns how many match history entries the strip shows.
func MatchesToShow(cfg WidgetConfig, stats Stats) int {
	if cfg.MatchHistoryShowsToday {
		raw, _ := stats.Value(VariableMatchesToday)
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	if cfg.NumMatches < 0 {
		return 0
	}
	return cfg.NumMatches
}

// StaleTime is how long a fetched response stays fresh for a given poll interval.
func StaleTime(interval time.Duration) time.Duration {
	if interval <= staleWindowAdjustment {
		return 0
	}
	return interval - staleWindowAdjustment
}

func requestHash(payload map[string]any) string {
	if len(payload) == 0 {
		return "empty"
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "invalid"
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
