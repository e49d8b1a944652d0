package playlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/domain/track"
)

func TestPlaylist_TrackIDs(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []track.Track
		expected []string
	}{
		{
			name:     "empty playlist",
			tracks:   []track.Track{},
			expected: []string{},
		},
		{
			name: "single track",
			tracks: []track.Track{
				{ID: "track-1"},
			},
			expected: []string{"track-1"},
		},
		{
			name: "multiple tracks",
			tracks: []track.Track{
				{ID: "track-1"},
				{ID: "track-2"},
				{ID: "track-3"},
			},
			expected: []string{"track-1", "track-2", "track-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{
				ID:     "playlist-1",
				Tracks: tt.tracks,
			}

			result := p.TrackIDs()
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPlaylist_TotalDuration(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []track.Track
		expected int64
	}{
		{
			name:     "empty playlist",
			tracks:   []track.Track{},
			expected: 0,
		},
		{
			name: "multiple tracks",
			tracks: []track.Track{
				{ID: "track-1", Duration: "2:00"},
				{ID: "track-2", Duration: "3:30"},
				{ID: "track-3", Duration: "4:00"},
			},
			expected: 570,
		},
		{
			name: "unknown duration counts as zero",
			tracks: []track.Track{
				{ID: "track-1", Duration: "2:15"},
				{ID: "track-2", Duration: ""},
			},
			expected: 135,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{
				ID:     "playlist-1",
				Name:   "Test Playlist",
				Tracks: tt.tracks,
			}

			assert.Equal(t, tt.expected, p.TotalDuration())
		})
	}
}

func TestPlaylist_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Playlist
		wantErr error
	}{
		{
			name: "valid",
			p:    Playlist{Name: "Road trip", Description: "songs"},
		},
		{
			name:    "blank name",
			p:       Playlist{Name: "   "},
			wantErr: ErrNameRequired,
		},
		{
			name:    "name too long",
			p:       Playlist{Name: strings.Repeat("a", MaxNameLength+1)},
			wantErr: ErrNameTooLong,
		},
		{
			name: "multibyte name at limit",
			p:    Playlist{Name: strings.Repeat("あ", MaxNameLength)},
		},
		{
			name:    "description too long",
			p:       Playlist{Name: "ok", Description: strings.Repeat("d", MaxDescriptionLength+1)},
			wantErr: ErrDescriptionTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlaylist_AddRemoveTrack(t *testing.T) {
	p := &Playlist{ID: "p1", Name: "mix"}

	require.NoError(t, p.AddTrack(track.Track{ID: "a"}))
	require.NoError(t, p.AddTrack(track.Track{ID: "b"}))
	require.NoError(t, p.AddTrack(track.Track{ID: "c"}))
	assert.True(t, p.HasTrack("b"))

	err := p.AddTrack(track.Track{ID: "b"})
	assert.ErrorIs(t, err, ErrDuplicateTrack)
	assert.Len(t, p.Tracks, 3)

	require.NoError(t, p.RemoveTrack("b"))
	assert.False(t, p.HasTrack("b"))
	assert.Equal(t, []string{"a", "c"}, p.TrackIDs())

	assert.ErrorIs(t, p.RemoveTrack("missing"), ErrTrackNotFound)
}
