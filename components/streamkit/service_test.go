package streamkit

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu          sync.Mutex
	vars        []Variable
	stats       Stats
	statsErr    error
	matches     []Match
	heroes      []Hero
	ranks       []Rank
	versions    map[string]int
	statsCalls  int32
	historyHits int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		vars: sampleVariables(),
		stats: Stats{
			"leaderboard_place":  "12",
			"leaderboard_rank":   "Eternus 6",
			"wins_losses_today":  "2-1",
			"total_kd":           "1.8",
			VariableAccountName:  "Player",
			VariableMatchesToday: "2",
			VariableRankBadge:    "116",
		},
		matches:  sampleMatches(),
		heroes:   []Hero{{ID: 1, IconURL: "https://assets/1.webp"}, {ID: 2, IconURL: "https://assets/2.webp"}},
		ranks:    []Rank{{Tier: 11, Color: "#ffd700"}},
		versions: map[string]int{"box": 1},
	}
}

func (f *fakeClient) FetchVariables(context.Context) ([]Variable, error) { return f.vars, nil }

func (f *fakeClient) ResolveTemplate(_ context.Context, commandURL string) (string, error) {
	u, err := url.Parse(commandURL)
	if err != nil {
		return "", err
	}
	return "ok:" + u.Query().Get("template"), nil
}

func (f *fakeClient) ResolveVariables(_ context.Context, req StatsRequest) (Stats, error) {
	atomic.AddInt32(&f.statsCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	out := Stats{}
	for _, name := range req.AllVariables() {
		if v, ok := f.stats[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

func (f *fakeClient) FetchMatchHistory(context.Context, string) ([]Match, error) {
	atomic.AddInt32(&f.historyHits, 1)
	return f.matches, nil
}

func (f *fakeClient) FetchHeroes(context.Context) ([]Hero, error) { return f.heroes, nil }
func (f *fakeClient) FetchRanks(context.Context) ([]Rank, error)  { return f.ranks, nil }
func (f *fakeClient) FetchWidgetVersions(context.Context) (map[string]int, error) {
	return f.versions, nil
}

func newTestService(client Client) *Service {
	return NewService(Options{
		Client:          client,
		CommandsBaseURL: testCommandsBase,
		PublicURL:       "https://kit.example.com",
		RefreshInterval: time.Minute,
		Validator:       NewJSONSchemaValidator(),
	})
}

func TestServiceCommandURLAndPreview(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()
	req := CommandRequest{AccountID: "22202", Region: "Europe", Template: "{hero_kills}", ExtraArgs: ExtraArgs{"hero_name": "Haze"}}

	result := svc.CommandURL(context.Background(), req)
	assert.Contains(t, result.URL, "hero_name=Haze")
	assert.Equal(t, []string{"hero_name"}, result.ExtraArgs)
	assert.Len(t, result.ChatBots, 3)

	status := svc.Preview(context.Background(), req)
	assert.Equal(t, PreviewResolved, status.State)
	assert.Equal(t, "ok:{hero_kills}", status.Text)

	status = svc.Preview(context.Background(), CommandRequest{Template: "x"})
	assert.Equal(t, PreviewIdle, status.State)
}

func TestServiceWidgetURLValidates(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()

	cfg := validBoxConfig()
	u, err := svc.WidgetURL(cfg)
	require.NoError(t, err)
	assert.Contains(t, u, "https://kit.example.com/widgets/Europe/22202/box?")

	cfg.Opacity = 500
	_, err = svc.WidgetURL(cfg)
	assert.Error(t, err)
}

func TestServiceBoxView(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	defer svc.Close()

	view := svc.BoxView(context.Background(), validBoxConfig())
	assert.True(t, view.ShowHeader)
	assert.Equal(t, "Player", view.Header)
	require.Len(t, view.Stats, 4)
	assert.Equal(t, "Place", view.Stats[0].Label)
	assert.Equal(t, "12", view.Stats[0].Value)
	assert.Len(t, view.Matches, 2)
	assert.True(t, view.ShowBranding)

	svc.BoxView(context.Background(), validBoxConfig())
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.statsCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.historyHits))
}

func TestServiceBoxViewOnFailure(t *testing.T) {
	client := newFakeClient()
	client.statsErr = errors.New("remote error 500")
	svc := newTestService(client)
	defer svc.Close()

	view := svc.BoxView(context.Background(), validBoxConfig())
	assert.Empty(t, view.Stats)
	assert.False(t, view.ShowHeader)
	assert.False(t, view.ShowBranding)
	assert.Zero(t, atomic.LoadInt32(&client.historyHits))
}

func TestServiceRawViewUsesRankColour(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()

	cfg := validBoxConfig()
	cfg.Type = WidgetTypeRaw
	cfg.Raw.Variable = "total_kd"
	cfg.Raw.Suffix = " KD"
	cfg.Raw.FontColorLikeRank = true

	view := svc.RawView(context.Background(), cfg)
	assert.Equal(t, "1.8 KD", view.Text)
	assert.Equal(t, "#ffd700", view.FontColor)
}

func TestServiceWatchSharesPollerAndBroadcasts(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	defer svc.Close()

	cfg := validBoxConfig()
	key, release1 := svc.Watch(cfg)
	events, cancel := svc.Broadcast().Subscribe(ForWidget(key, cfg.Type))
	defer cancel()
	_, release2 := svc.Watch(cfg)
	assert.Equal(t, 1, svc.Watching())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&client.statsCalls) == 1 }, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	client.stats["total_kd"] = "2.4"
	client.mu.Unlock()
	n, err := svc.RefreshWidget(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deadline := time.After(time.Second)
	for found := false; !found; {
		select {
		case event := <-events:
			assert.Equal(t, EventSnapshot, event.Kind)
			require.NotNil(t, event.Snapshot)
			found = event.Snapshot.Data["total_kd"] == "2.4"
		case <-deadline:
			t.Fatal("expected snapshot event")
		}
	}

	release1()
	release1()
	assert.Equal(t, 1, svc.Watching())
	release2()
	assert.Equal(t, 0, svc.Watching())

	_, err = svc.RefreshWidget(context.Background(), key)
	assert.Error(t, err)
}

func TestServiceMatchHistoryChart(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()

	html, err := svc.MatchHistoryChart(context.Background(), "22202", 4, ThemeDark)
	require.NoError(t, err)
	assert.Contains(t, html, "Match History")
}

func TestServiceWithoutClient(t *testing.T) {
	svc := NewService(Options{})
	defer svc.Close()

	snap := svc.Stats(context.Background(), testRequest("1"))
	assert.Error(t, snap.Err)
	_, err := svc.Heroes(context.Background())
	assert.Error(t, err)
	result := svc.CommandURL(context.Background(), CommandRequest{AccountID: "1", Region: "Europe", Template: "x"})
	assert.Contains(t, result.URL, DefaultCommandsBaseURL)
}

func TestServiceWatchKeyNeedsRememberedWidget(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()

	_, err := svc.WatchKey("missing")
	assert.Error(t, err)

	key := svc.Remember(validBoxConfig())
	release, err := svc.WatchKey(key)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Watching())
	release()
	assert.Equal(t, 0, svc.Watching())
}

func TestServiceRankColor(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()

	require.Equal(t, "#ffd700", svc.RankColor(context.Background(), "116"))
	require.Equal(t, "", svc.RankColor(context.Background(), "0"))
	require.Equal(t, "", svc.RankColor(context.Background(), "badge"))

	offline := NewService(Options{})
	defer offline.Close()
	require.Equal(t, "", offline.RankColor(context.Background(), "116"))
}

func TestServiceWatchKeySkipsSnapshotsAlreadyRendered(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	defer svc.Close()

	cfg := validBoxConfig()
	key := svc.Remember(cfg)
	svc.BoxView(context.Background(), cfg)
	_, cached := svc.responses.Get(key)
	require.True(t, cached)

	for i := 0; i < 3; i++ {
		events, cancel := svc.Broadcast().Subscribe(ForWidget(key, cfg.Type))
		release, err := svc.WatchKey(key)
		require.NoError(t, err)

		svc.mu.Lock()
		poller := svc.watches[key].poller
		svc.mu.Unlock()
		require.Eventually(t, func() bool { return poller.Snapshot().HasData() }, time.Second, 5*time.Millisecond)

		select {
		case event := <-events:
			t.Fatalf("page %d got %s for data it already shows", i, event.Kind)
		case <-time.After(30 * time.Millisecond):
		}
		release()
		cancel()
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.statsCalls))
}

func TestServiceWatchDoesNotBroadcastFailures(t *testing.T) {
	client := newFakeClient()
	client.statsErr = errors.New("upstream 503")
	svc := newTestService(client)
	defer svc.Close()

	cfg := validBoxConfig()
	events, cancel := svc.Broadcast().Subscribe(nil)
	defer cancel()
	key, release := svc.Watch(cfg)
	defer release()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&client.statsCalls) >= 1 }, time.Second, 5*time.Millisecond)

	_, err := svc.RefreshWidget(context.Background(), key)
	require.NoError(t, err)
	select {
	case event := <-events:
		t.Fatalf("unexpected %s event", event.Kind)
	case <-time.After(30 * time.Millisecond):
	}

	client.mu.Lock()
	client.statsErr = nil
	client.mu.Unlock()
	_, err = svc.RefreshWidget(context.Background(), key)
	require.NoError(t, err)
	select {
	case event := <-events:
		require.NotNil(t, event.Snapshot)
		assert.Equal(t, "1.8", event.Snapshot.Data["total_kd"])
	case <-time.After(time.Second):
		t.Fatal("expected snapshot once the fetch recovered")
	}
}

func TestServiceSweepDropsExpiredEntries(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc.responses.now = clock
	svc.history.now = clock
	svc.charts.now = clock
	svc.widgets.now = clock

	cfg := validBoxConfig()
	key := svc.Remember(cfg)
	require.True(t, svc.Stats(context.Background(), NewStatsRequest(cfg)).HasData())
	_, err := svc.MatchHistoryChart(context.Background(), cfg.AccountID, 4, ThemeDark)
	require.NoError(t, err)
	assert.Zero(t, svc.sweep())

	now = now.Add(time.Hour)
	assert.Equal(t, 3, svc.sweep())
	assert.Zero(t, svc.responses.Len())
	assert.Zero(t, svc.history.Len())
	assert.Zero(t, svc.charts.Len())
	_, ok := svc.widgets.Get(key)
	assert.True(t, ok)

	now = now.Add(rememberedWidgetTTL)
	assert.Equal(t, 1, svc.sweep())
	_, err = svc.WatchKey(key)
	assert.Error(t, err)
}

func TestServiceRememberIsBounded(t *testing.T) {
	svc := newTestService(newFakeClient())
	defer svc.Close()

	cfg := validBoxConfig()
	for i := 0; i < maxRememberedWidgets+10; i++ {
		cfg.AccountID = strconv.Itoa(1000 + i)
		svc.Remember(cfg)
	}
	assert.Equal(t, maxRememberedWidgets, svc.widgets.Len())
}

func TestServiceRefreshDropsCachedHistory(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	defer svc.Close()

	cfg := validBoxConfig()
	key, release := svc.Watch(cfg)
	defer release()

	_, err := svc.MatchHistory(context.Background(), cfg.AccountID)
	require.NoError(t, err)
	_, err = svc.MatchHistory(context.Background(), cfg.AccountID)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&client.historyHits))

	_, err = svc.RefreshWidget(context.Background(), key)
	require.NoError(t, err)
	_, err = svc.MatchHistory(context.Background(), cfg.AccountID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.historyHits))
}
