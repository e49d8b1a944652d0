package filter

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tubebox/internal/domain/track"
)

// BlockedChannelConfig represents the configuration for BlockedChannelFilter.
type BlockedChannelConfig struct {
	Channels []string `mapstructure:"channels"`
}

// BlockedChannelFilter rejects tracks uploaded by blocked channels.
type BlockedChannelFilter struct {
	blocked map[string]struct{}
}

func (f *BlockedChannelFilter) Name() string {
	return "blocked_channel_filter"
}

func (f *BlockedChannelFilter) Description() string {
	return "Rejects tracks from channels on the block list"
}

func (f *BlockedChannelFilter) ReturnCodes() []string {
	return []string{"blocked_channel"}
}

func (f *BlockedChannelFilter) ValidateConfig(settings map[string]any) error {
	var config BlockedChannelConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	blocked := make(map[string]struct{}, len(config.Channels))
	for _, ch := range config.Channels {
		ch = strings.ToLower(strings.TrimSpace(ch))
		if ch == "" {
			return errors.New("channels must not contain empty names")
		}
		blocked[ch] = struct{}{}
	}
	f.blocked = blocked
	return nil
}

func (f *BlockedChannelFilter) AppliesTo(source Source) bool {
	// Anything that did not come from the user's own lists
	return source == SourceSearch || source == SourceImport
}

func (f *BlockedChannelFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	if _, ok := f.blocked[strings.ToLower(strings.TrimSpace(t.ChannelTitle))]; ok {
		return Reject("blocked_channel")
	}
	return Accept()
}

func init() {
	Register("blocked_channel_filter", func() Filter {
		return &BlockedChannelFilter{}
	})
}
