package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/domain/track"
)

func TestNewChainFromConfig(t *testing.T) {
	t.Run("enabled filters in name order", func(t *testing.T) {
		chain, err := NewChainFromConfig(map[string]Settings{
			"playable_filter":        {Enabled: true},
			"duplicate_track_filter": {Enabled: true},
			"duration_limit_filter":  {Enabled: false},
		})
		require.NoError(t, err)

		names := make([]string, 0)
		for _, f := range chain.Filters() {
			names = append(names, f.Name())
		}
		assert.Equal(t, []string{"duplicate_track_filter", "playable_filter"}, names)
	})

	t.Run("unknown filter", func(t *testing.T) {
		_, err := NewChainFromConfig(map[string]Settings{
			"no_such_filter": {Enabled: true},
		})
		assert.Error(t, err)
	})

	t.Run("unknown filter ignored when disabled", func(t *testing.T) {
		chain, err := NewChainFromConfig(map[string]Settings{
			"no_such_filter": {Enabled: false},
		})
		require.NoError(t, err)
		assert.Empty(t, chain.Filters())
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := NewChainFromConfig(map[string]Settings{
			"duration_limit_filter": {
				Enabled:  true,
				Settings: map[string]any{"min_minutes": 10, "max_minutes": 5},
			},
		})
		assert.Error(t, err)
	})
}

type stubFilter struct {
	name    string
	sources []Source
	reject  string
	calls   int
}

func (f *stubFilter) Name() string                        { return f.name }
func (f *stubFilter) Description() string                 { return "stub" }
func (f *stubFilter) ReturnCodes() []string               { return []string{f.reject} }
func (f *stubFilter) ValidateConfig(map[string]any) error { return nil }
func (f *stubFilter) AppliesTo(source Source) bool {
	for _, s := range f.sources {
		if s == source {
			return true
		}
	}
	return false
}

func (f *stubFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	f.calls++
	if f.reject != "" {
		return Reject(f.reject)
	}
	return Accept()
}

func TestChain_Execute(t *testing.T) {
	first := &stubFilter{name: "first", sources: []Source{SourceSearch}, reject: "first_code"}
	second := &stubFilter{name: "second", sources: []Source{SourceSearch, SourceLiked}}

	chain := NewChain()
	chain.Add(first)
	chain.Add(second)

	result := chain.Execute(context.Background(), track.Track{ID: "a"}, nil, SourceSearch)
	assert.False(t, result.Accepted)
	assert.Equal(t, "first_code", result.Code)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "chain must stop at the first rejection")

	result = chain.Execute(context.Background(), track.Track{ID: "a"}, nil, SourceLiked)
	assert.True(t, result.Accepted)
	assert.Equal(t, 1, first.calls, "filter not applying to LIKED must be skipped")
	assert.Equal(t, 1, second.calls)
}

func TestChain_Apply(t *testing.T) {
	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())
	chain.Add(&PlayableFilter{})

	tracks := []track.Track{
		{ID: "a", Title: "Song A", ChannelTitle: "Band", Duration: "3:00"},
		{ID: "b", Title: "Live Now", ChannelTitle: "Band"},
		{ID: "a", Title: "Song A", ChannelTitle: "Band", Duration: "3:00"},
		{ID: "c", Title: "Song A (Official Video)", ChannelTitle: "Band", Duration: "3:05"},
		{ID: "d", Title: "Song D", ChannelTitle: "Band", Duration: "4:10"},
	}

	kept := chain.Apply(context.Background(), tracks, SourceSearch)
	ids := make([]string, 0, len(kept))
	for _, k := range kept {
		ids = append(ids, k.ID)
	}
	assert.Equal(t, []string{"a", "d"}, ids)

	// Curated sources keep duplicates
	kept = chain.Apply(context.Background(), tracks, SourceLiked)
	assert.Len(t, kept, 4)
}

func TestChain_ApplyEmpty(t *testing.T) {
	chain := NewChain()
	kept := chain.Apply(context.Background(), nil, SourceSearch)
	assert.NotNil(t, kept)
	assert.Empty(t, kept)
}

func TestBlockedChannelFilter_Check(t *testing.T) {
	f := &BlockedChannelFilter{}
	require.NoError(t, f.ValidateConfig(map[string]any{
		"channels": []string{"Spam Channel", " clickbait "},
	}))

	tests := []struct {
		name         string
		channel      string
		wantAccepted bool
	}{
		{"blocked exact", "Spam Channel", false},
		{"blocked case insensitive", "spam channel", false},
		{"blocked trimmed", "Clickbait", false},
		{"allowed", "Good Music", true},
		{"empty channel", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), track.Track{ID: "x", ChannelTitle: tt.channel}, nil)
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "blocked_channel", result.Code)
			}
		})
	}
}

func TestBlockedChannelFilter_ValidateConfig(t *testing.T) {
	f := &BlockedChannelFilter{}
	assert.NoError(t, f.ValidateConfig(nil))
	assert.NoError(t, f.ValidateConfig(map[string]any{"channels": []any{"a", "b"}}))
	assert.Error(t, f.ValidateConfig(map[string]any{"channels": []string{"  "}}))
	assert.Error(t, f.ValidateConfig(map[string]any{"channels": 42}))
	assert.Error(t, f.ValidateConfig(map[string]any{"channels": "spam"}))
}

func TestBlockedChannelFilter_RejectedConfigKeepsPrevious(t *testing.T) {
	f := &BlockedChannelFilter{}
	require.NoError(t, f.ValidateConfig(map[string]any{"channels": []any{"Spam"}}))

	err := f.ValidateConfig(map[string]any{"channels": []any{"other", " "}})
	require.Error(t, err)

	assert.False(t, f.Check(context.Background(), track.Track{ID: "x", ChannelTitle: "spam"}, nil).Accepted)
	assert.True(t, f.Check(context.Background(), track.Track{ID: "x", ChannelTitle: "other"}, nil).Accepted)
}

func TestPlayableFilter_Check(t *testing.T) {
	f := &PlayableFilter{}

	tests := []struct {
		name         string
		track        track.Track
		wantAccepted bool
	}{
		{"finite track", track.Track{ID: "a", Duration: "3:45"}, true},
		{"long track", track.Track{ID: "a", Duration: "1:02:03"}, true},
		{"live stream", track.Track{ID: "a", Duration: ""}, false},
		{"zero duration", track.Track{ID: "a", Duration: "0:00"}, false},
		{"malformed duration", track.Track{ID: "a", Duration: "abc"}, false},
		{"missing id", track.Track{Duration: "3:00"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), tt.track, nil)
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "not_playable", result.Code)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	registered := GetRegistered()
	for _, name := range []string{
		"blocked_channel_filter",
		"duplicate_track_filter",
		"duration_limit_filter",
		"playable_filter",
	} {
		factory, ok := registered[name]
		require.True(t, ok, "filter %s must be registered", name)
		assert.Equal(t, name, factory().Name())
	}
}
