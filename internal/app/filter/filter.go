// Package filter provides the filter chain applied to candidate tracks before
// they become the active queue.
package filter

import (
	"context"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Source identifies where a candidate track set came from.
type Source string

const (
	SourceSearch   Source = "SEARCH"
	SourceLiked    Source = "LIKED"
	SourcePlaylist Source = "PLAYLIST"
	SourceImport   Source = "IMPORT"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_track", "blocked_channel", "not_playable"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for track filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to tracks from source.
	AppliesTo(source Source) bool
	// Check checks candidate against the tracks already accepted from the same set.
	Check(ctx context.Context, candidate track.Track, accepted []track.Track) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
