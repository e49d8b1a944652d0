package search

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/infra/config"
)

type fakeProvider struct {
	name   string
	tracks []track.Track
	err    error
	calls  int
	limit  int
}

func (p *fakeProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	p.calls++
	p.limit = limit
	return p.tracks, p.err
}

func (p *fakeProvider) Name() string { return p.name }

type fakeImporter struct {
	fakeProvider
}

func (p *fakeImporter) CanImport(url string) bool { return true }

func (p *fakeImporter) Import(ctx context.Context, url string) ([]track.Track, error) {
	return p.tracks, nil
}

type fakeDurationProvider struct {
	fakeProvider
}

func (p *fakeDurationProvider) Durations(ctx context.Context, ids []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func TestProviderChain_FirstSuccessWins(t *testing.T) {
	failing := &fakeProvider{name: "failing", err: errors.New("quota exceeded")}
	empty := &fakeProvider{name: "empty"}
	good := &fakeProvider{name: "good", tracks: []track.Track{{ID: "a"}}}
	unused := &fakeProvider{name: "unused", tracks: []track.Track{{ID: "b"}}}

	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: failing, DisplayName: "Failing"},
		{Provider: empty, DisplayName: "Empty"},
		{Provider: good, DisplayName: "Good"},
		{Provider: unused, DisplayName: "Unused"},
	})

	result, err := chain.Search(context.Background(), "query", 7)
	require.NoError(t, err)
	assert.Equal(t, "Good", result.DisplayName)
	assert.Equal(t, []track.Track{{ID: "a"}}, result.Tracks)
	assert.Equal(t, 7, good.limit)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
	assert.Equal(t, 0, unused.calls)
}

func TestProviderChain_BlankQuery(t *testing.T) {
	p := &fakeProvider{name: "p", tracks: []track.Track{{ID: "a"}}}
	chain := NewProviderChain([]ProviderWithMetadata{{Provider: p, DisplayName: "P"}})

	_, err := chain.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrBlankQuery)
	assert.Equal(t, 0, p.calls)
}

func TestProviderChain_AllFailed(t *testing.T) {
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &fakeProvider{name: "a", err: errors.New("boom a")}, DisplayName: "A"},
		{Provider: &fakeProvider{name: "b", err: errors.New("boom b")}, DisplayName: "B"},
	})

	_, err := chain.Search(context.Background(), "query", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoResults))
	assert.Contains(t, err.Error(), "boom a")
}

func TestProviderChain_NothingFound(t *testing.T) {
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &fakeProvider{name: "a"}, DisplayName: "A"},
	})

	result, err := chain.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Tracks)
}

func TestProviderChain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &fakeProvider{name: "b", tracks: []track.Track{{ID: "x"}}}
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &fakeProvider{name: "a", err: context.Canceled}, DisplayName: "A"},
		{Provider: second, DisplayName: "B"},
	})

	_, err := chain.Search(ctx, "query", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, second.calls)
}

func TestProviderChain_Capabilities(t *testing.T) {
	importer := &fakeImporter{fakeProvider{name: "importer"}}
	durations := &fakeDurationProvider{fakeProvider{name: "durations"}}

	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &fakeProvider{name: "plain"}},
		{Provider: importer},
		{Provider: durations},
	})

	importers := chain.Importers()
	require.Len(t, importers, 1)
	assert.Same(t, importer, importers[0])
	assert.Same(t, durations, chain.DurationLookup())

	assert.Nil(t, NewProviderChain(nil).DurationLookup())
	assert.Empty(t, NewProviderChain(nil).Importers())
}

func TestNewProviderChainFromConfig(t *testing.T) {
	chain, err := NewProviderChainFromConfig(context.Background(), config.SearchConfig{
		Providers: []config.ProviderConfig{
			{Type: "youtube", Settings: map[string]any{"api_key": "key", "region_code": "JP"}},
			{Type: "spotify", DisplayName: "Spotify Catalog", Settings: map[string]any{
				"client_id":     "id",
				"client_secret": "secret",
			}},
		},
	})
	require.NoError(t, err)

	providers := chain.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "youtube", providers[0].DisplayName)
	assert.Equal(t, "youtube", providers[0].Provider.Name())
	assert.Equal(t, "Spotify Catalog", providers[1].DisplayName)
	assert.NotNil(t, chain.DurationLookup())
	assert.Len(t, chain.Importers(), 1)

	spotifyProvider := providers[1].Provider.(*SpotifyProvider)
	assert.Equal(t, "JP", spotifyProvider.config.Market)
	assert.True(t, spotifyProvider.CanImport("spotify:playlist:abc"))
	assert.False(t, spotifyProvider.CanImport("https://www.youtube.com/playlist?list=PL1"))

	youtubeProvider := providers[0].Provider.(*YouTubeProvider)
	assert.Equal(t, "moderate", youtubeProvider.config.SafeSearch)
}

func TestNewProviderChainFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name      string
		providers []config.ProviderConfig
	}{
		{"no providers", nil},
		{"unsupported type", []config.ProviderConfig{{Type: "soundcloud"}}},
		{"youtube without key", []config.ProviderConfig{{Type: "youtube", Settings: map[string]any{}}}},
		{"youtube bad region", []config.ProviderConfig{{Type: "youtube", Settings: map[string]any{"api_key": "k", "region_code": "JPN"}}}},
		{"youtube bad safe search", []config.ProviderConfig{{Type: "youtube", Settings: map[string]any{"api_key": "k", "safe_search": "off"}}}},
		{"spotify without secret", []config.ProviderConfig{{Type: "spotify", Settings: map[string]any{"client_id": "id"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProviderChainFromConfig(context.Background(), config.SearchConfig{Providers: tt.providers})
			assert.Error(t, err)
		})
	}
}
