// Package search provides catalog search providers and their fallback chain.
package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Provider is the interface for catalog search providers.
type Provider interface {
	// Search returns up to limit tracks matching query, in relevance order.
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)

	// Name returns the provider name (used in config).
	Name() string
}

// Importer is implemented by providers that can import public playlists.
type Importer interface {
	// CanImport reports whether url is a playlist this importer understands.
	CanImport(url string) bool
	// Import returns the playlist's tracks in playlist order.
	Import(ctx context.Context, url string) ([]track.Track, error)
}

// DurationLookup resolves display durations for video IDs.
type DurationLookup interface {
	Durations(ctx context.Context, ids []string) (map[string]string, error)
}

// decodeSettings decodes provider settings into out, applies defaults and validates.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
