package streamkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalogClient struct {
	vars  []Variable
	err   error
	calls int
}

func (s *stubCatalogClient) FetchVariables(context.Context) ([]Variable, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vars, nil
}

func sampleVariables() []Variable {
	return []Variable{
		{Name: "leaderboard_place", Description: "Place", Category: "Leaderboard"},
		{Name: "leaderboard_rank", Description: "Rank", Category: "Leaderboard"},
		{Name: "leaderboard_rank_img", Description: "Rank badge", Category: "Leaderboard"},
		{Name: "hero_kills", Description: "Kills on a hero", ExtraArgs: []string{"hero_name"}, Category: "Hero"},
		{Name: "hero_wins", Description: "Wins on a hero", ExtraArgs: []string{"hero_name"}, Category: "Hero"},
		{Name: "wins_losses_today", Description: "Daily W-L", Category: "Daily"},
		{Name: "total_kd", Description: "K/D"},
		{Name: "steam_account_name", Description: "Account name"},
		{Name: "matches_today", Description: "Matches today", Category: "Daily"},
		{Name: "leaderboard_place", Description: "duplicate"},
	}
}

func TestCatalogLookupAndSelectable(t *testing.T) {
	catalog := NewCatalog(sampleVariables())

	v, ok := catalog.Lookup("hero_kills")
	require.True(t, ok)
	assert.Equal(t, []string{"hero_name"}, v.ExtraArgs)

	place, _ := catalog.Lookup("leaderboard_place")
	assert.Equal(t, "Place", place.Description)
	assert.Equal(t, 9, catalog.Len())

	for _, v := range catalog.Selectable() {
		assert.False(t, v.IsImage(), v.Name)
	}
	assert.Equal(t, []string{"Leaderboard", "Hero", "Daily"}, catalog.Categories())
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var catalog *Catalog
	_, ok := catalog.Lookup("x")
	assert.False(t, ok)
	assert.Empty(t, catalog.Variables())
	assert.Zero(t, catalog.Len())
}

func TestCatalogCacheRetriesAfterFailure(t *testing.T) {
	client := &stubCatalogClient{err: errors.New("boom")}
	cache := NewCatalogCache(client)

	_, err := cache.Load(context.Background())
	require.Error(t, err)
	assert.Zero(t, cache.Current().Len())

	client.err = nil
	client.vars = sampleVariables()
	catalog, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, catalog.Len())

	_, err = cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Same(t, catalog, cache.Current())
}

type gatedCatalogClient struct {
	vars    []Variable
	started chan struct{}
	release chan struct{}
}

func newGatedCatalogClient(vars []Variable) *gatedCatalogClient {
	return &gatedCatalogClient{
		vars:    vars,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedCatalogClient) FetchVariables(ctx context.Context) ([]Variable, error) {
	close(g.started)
	select {
	case <-g.release:
		return g.vars, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCatalogCacheCurrentDoesNotWaitForLoad(t *testing.T) {
	client := newGatedCatalogClient(sampleVariables())
	cache := NewCatalogCache(client)

	loaded := make(chan *Catalog, 1)
	go func() {
		catalog, err := cache.Load(context.Background())
		if err == nil {
			loaded <- catalog
		}
	}()
	<-client.started

	current := make(chan *Catalog, 1)
	go func() { current <- cache.Current() }()
	select {
	case catalog := <-current:
		assert.Zero(t, catalog.Len())
	case <-time.After(time.Second):
		t.Fatal("Current blocked behind an in-flight load")
	}

	close(client.release)
	select {
	case catalog := <-loaded:
		assert.Equal(t, 9, catalog.Len())
		assert.Same(t, catalog, cache.Current())
	case <-time.After(time.Second):
		t.Fatal("load did not finish")
	}
}
