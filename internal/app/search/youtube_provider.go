package search

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/infra/youtube"
)

// YouTubeClient defines the YouTube operations the provider needs.
type YouTubeClient interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	Durations(ctx context.Context, ids []string) (map[string]string, error)
}

type YouTubeProviderConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	RegionCode string `yaml:"region_code" mapstructure:"region_code" validate:"omitempty,len=2"`
	SafeSearch string `yaml:"safe_search" mapstructure:"safe_search" default:"moderate" validate:"oneof=none moderate strict"`
}

// YouTubeProvider searches the YouTube Data API.
type YouTubeProvider struct {
	client YouTubeClient
	config *YouTubeProviderConfig
}

// NewYouTubeProvider creates a new YouTubeProvider from provider settings.
func NewYouTubeProvider(settings map[string]any) (*YouTubeProvider, error) {
	var config YouTubeProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("youtube provider config: region=%s safe_search=%s", config.RegionCode, config.SafeSearch)

	client, err := youtube.New(youtube.Config{
		APIKey:     config.APIKey,
		RegionCode: config.RegionCode,
		SafeSearch: config.SafeSearch,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create youtube client")
	}

	return &YouTubeProvider{client: client, config: &config}, nil
}

// Search returns matching music videos.
func (p *YouTubeProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	return p.client.Search(ctx, query, limit)
}

// Durations resolves display durations for video IDs.
func (p *YouTubeProvider) Durations(ctx context.Context, ids []string) (map[string]string, error) {
	return p.client.Durations(ctx, ids)
}

// Name returns the provider name.
func (p *YouTubeProvider) Name() string {
	return "youtube"
}
