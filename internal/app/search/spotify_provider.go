package search

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/infra/spotify"
)

// SpotifyClient defines the Spotify operations the provider needs.
type SpotifyClient interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error)
}

type SpotifyProviderConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret" validate:"required"`
	Market       string `yaml:"market" mapstructure:"market" default:"JP" validate:"len=2"`
}

// SpotifyProvider searches the Spotify catalog and imports public Spotify playlists.
type SpotifyProvider struct {
	client SpotifyClient
	config *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider from provider settings.
func NewSpotifyProvider(ctx context.Context, settings map[string]any) (*SpotifyProvider, error) {
	var config SpotifyProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("spotify provider config: market=%s", config.Market)

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Market:       config.Market,
	})
	if err != nil {
		return nil, err
	}

	return &SpotifyProvider{client: client, config: &config}, nil
}

// Search returns matching catalog tracks.
func (p *SpotifyProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	return p.client.Search(ctx, query, limit)
}

// CanImport reports whether url is a Spotify playlist.
func (p *SpotifyProvider) CanImport(url string) bool {
	return spotify.IsPlaylistURL(url)
}

// Import returns the tracks of a public Spotify playlist.
func (p *SpotifyProvider) Import(ctx context.Context, url string) ([]track.Track, error) {
	return p.client.GetPlaylistTracks(ctx, url)
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}
