package search

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Errors
var (
	ErrNoResults  = errors.New("all providers failed to return results")
	ErrBlankQuery = errors.New("search query is blank")
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Result is a search result with the provider that produced it.
type Result struct {
	Tracks      []track.Track
	DisplayName string
}

// ProviderChain tries providers in order until one returns results.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Search returns the results of the first provider that succeeds with a
// non-empty result. A blank query is not sent to any provider.
func (c *ProviderChain) Search(ctx context.Context, query string, limit int) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrBlankQuery
	}

	var errs error
	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		tracks, err := pm.Provider.Search(ctx, query, limit)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, errors.Wrap(ctx.Err(), "search cancelled")
			}
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "provider %s", pm.DisplayName))
			continue
		}

		if len(tracks) == 0 {
			zlog.Debug().Msgf("provider returned no results: provider=%s", pm.DisplayName)
			continue
		}

		zlog.Info().Msgf("provider returned results: provider=%s count=%d", pm.DisplayName, len(tracks))
		return Result{Tracks: tracks, DisplayName: pm.DisplayName}, nil
	}

	if errs != nil {
		return Result{}, errors.Mark(errs, ErrNoResults)
	}
	// Every provider answered, there is simply nothing to play
	return Result{Tracks: []track.Track{}}, nil
}

// Importers returns the providers able to import playlists.
func (c *ProviderChain) Importers() []Importer {
	var importers []Importer
	for _, pm := range c.providers {
		if imp, ok := pm.Provider.(Importer); ok {
			importers = append(importers, imp)
		}
	}
	return importers
}

// DurationLookup returns the first provider able to resolve video durations, or nil.
func (c *ProviderChain) DurationLookup() DurationLookup {
	for _, pm := range c.providers {
		if d, ok := pm.Provider.(DurationLookup); ok {
			return d
		}
	}
	return nil
}

// Providers returns the chained providers.
func (c *ProviderChain) Providers() []ProviderWithMetadata {
	return c.providers
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
