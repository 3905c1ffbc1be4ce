package statsapi

import (
	"context"
	"net/url"
	"strings"
	"sync"

	streamkit "github.com/goliatone/go-streamkit/components/streamkit"
)

// MockData seeds the in-memory client.
type MockData struct {
	Variables []streamkit.Variable
	Stats     map[string]streamkit.Stats
	Matches   map[string][]streamkit.Match
	Heroes    []streamkit.Hero
	Ranks     []streamkit.Rank
	Versions  map[string]int
}

// MockClient serves canned responses for demos and tests.
type MockClient struct {
	mu   sync.RWMutex
	data MockData
	err  error
}

var _ streamkit.Client = (*MockClient)(nil)

// NewMockClient returns a client seeded with data. A nil data uses DemoData.
func NewMockClient(data *MockData) *MockClient {
	if data == nil {
		demo := DemoData()
		data = &demo
	}
	return &MockClient{data: *data}
}

// SetError makes every call fail with err until cleared with nil.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// SetStats replaces the stats served for an account.
func (m *MockClient) SetStats(accountID string, stats streamkit.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data.Stats == nil {
		m.data.Stats = map[string]streamkit.Stats{}
	}
	m.data.Stats[accountID] = stats.Clone()
}

// SetVersion bumps a widget version.
func (m *MockClient) SetVersion(widgetType string, version int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data.Versions == nil {
		m.data.Versions = map[string]int{}
	}
	m.data.Versions[widgetType] = version
}

func (m *MockClient) FetchVariables(context.Context) ([]streamkit.Variable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]streamkit.Variable(nil), m.data.Variables...), nil
}

// ResolveTemplate substitutes {name} placeholders with the account's stats.
func (m *MockClient) ResolveTemplate(_ context.Context, commandURL string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	u, err := url.Parse(commandURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	account := ""
	if len(parts) >= 2 {
		account = parts[len(parts)-2]
	}
	stats := m.data.Stats[account]
	text := u.Query().Get("template")
	for _, name := range streamkit.TemplateVariables(text) {
		if value, ok := stats[name]; ok {
			text = strings.ReplaceAll(text, "{"+name+"}", value)
		}
	}
	return text, nil
}

func (m *MockClient) ResolveVariables(_ context.Context, req streamkit.StatsRequest) (streamkit.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	source := m.data.Stats[req.AccountID]
	out := make(streamkit.Stats)
	for _, name := range req.AllVariables() {
		if value, ok := source[name]; ok {
			out[name] = value
		}
	}
	return out, nil
}

func (m *MockClient) FetchMatchHistory(_ context.Context, accountID string) ([]streamkit.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]streamkit.Match(nil), m.data.Matches[accountID]...), nil
}

func (m *MockClient) FetchHeroes(context.Context) ([]streamkit.Hero, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]streamkit.Hero(nil), m.data.Heroes...), nil
}

func (m *MockClient) FetchRanks(context.Context) ([]streamkit.Rank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]streamkit.Rank(nil), m.data.Ranks...), nil
}

func (m *MockClient) FetchWidgetVersions(context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]int, len(m.data.Versions))
	for k, v := range m.data.Versions {
		out[k] = v
	}
	return out, nil
}

// DemoAccountID is the account seeded by DemoData.
const DemoAccountID = "22202"

// DemoData returns a small data set used by the offline demo.
func DemoData() MockData {
	return MockData{
		Variables: []streamkit.Variable{
			{Name: "steam_account_name", Description: "Steam account name", Category: "Account"},
			{Name: "leaderboard_place", Description: "Leaderboard place", Category: "Leaderboard"},
			{Name: "leaderboard_rank", Description: "Leaderboard rank", Category: "Leaderboard"},
			{Name: "leaderboard_rank_img", Description: "Leaderboard rank badge", Category: "Leaderboard"},
			{Name: "leaderboard_rank_badge_level", Description: "Rank badge level", Category: "Leaderboard"},
			{Name: "wins_losses_today", Description: "Wins and losses today", Category: "Daily"},
			{Name: "matches_today", Description: "Matches played today", Category: "Daily"},
			{Name: "total_kd", Description: "Total K/D", Category: "Overall"},
			{Name: "hero_kills", Description: "Kills on a hero", ExtraArgs: []string{"hero_name"}, Category: "Hero"},
		},
		Stats: map[string]streamkit.Stats{
			DemoAccountID: {
				"steam_account_name":           "Demo Player",
				"leaderboard_place":            "1234",
				"leaderboard_rank":             "Ritualist 4",
				"leaderboard_rank_img":         "https://assets.deadlock-api.com/images/ranks/rank7/badge_sm_4.webp",
				"leaderboard_rank_badge_level": "74",
				"wins_losses_today":            "3W - 1L",
				"matches_today":                "4",
				"total_kd":                     "1.42",
				"hero_kills":                   "812",
			},
		},
		Matches: map[string][]streamkit.Match{
			DemoAccountID: {
				{MatchID: 104, HeroID: 1, MatchResult: 0, PlayerTeam: 0},
				{MatchID: 103, HeroID: 2, MatchResult: 1, PlayerTeam: 1},
				{MatchID: 102, HeroID: 1, MatchResult: 0, PlayerTeam: 1},
				{MatchID: 101, HeroID: 2, MatchResult: 1, PlayerTeam: 1},
			},
		},
		Heroes: []streamkit.Hero{
			{ID: 1, IconURL: "https://assets.deadlock-api.com/images/heroes/infernus_card.webp"},
			{ID: 2, IconURL: "https://assets.deadlock-api.com/images/heroes/haze_card.webp"},
		},
		Ranks: []streamkit.Rank{
			{Tier: 0, Name: "Obscurus", Color: "#7a7a7a"},
			{Tier: 7, Name: "Ritualist", Color: "#c06cff"},
			{Tier: 11, Name: "Eternus", Color: "#f5c26b"},
		},
		Versions: map[string]int{"box": 1, "raw": 1},
	}
}
