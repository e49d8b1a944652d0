package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Return codes of DurationLimitFilter.
const (
	CodeTooShort = "track_too_short"
	CodeTooLong  = "track_too_long"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
// A zero MaxMinutes means no upper bound.
type DurationLimitConfig struct {
	MinMinutes float64 `mapstructure:"min_minutes" default:"1" validate:"gte=0"`
	MaxMinutes float64 `mapstructure:"max_minutes" validate:"gte=0"`
}

// DurationLimitFilter rejects search results outside a length window.
// Without a config it accepts everything.
type DurationLimitFilter struct {
	min, max time.Duration
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects search results shorter or longer than the configured minutes"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{CodeTooShort, CodeTooLong}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	if config.MaxMinutes > 0 && config.MinMinutes > config.MaxMinutes {
		return errors.Newf("min_minutes (%g) is greater than max_minutes (%g)", config.MinMinutes, config.MaxMinutes)
	}

	f.min = minutes(config.MinMinutes)
	f.max = minutes(config.MaxMinutes)
	zlog.Info().Msgf("duration limit filter: min=%s max=%s", f.min, f.max)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(source Source) bool {
	// The user's own lists are never trimmed
	return source == SourceSearch
}

func (f *DurationLimitFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	// Unknown lengths are playable_filter's call
	length := t.Length()
	if length == 0 {
		return Accept()
	}
	if length < f.min {
		return Reject(CodeTooShort)
	}
	if f.max > 0 && length > f.max {
		return Reject(CodeTooLong)
	}
	return Accept()
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return &DurationLimitFilter{}
	})
}
