package ytplaylist

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDurations struct {
	durations map[string]string
	err       error
	calls     [][]string
}

func (f *fakeDurations) Durations(ctx context.Context, ids []string) (map[string]string, error) {
	f.calls = append(f.calls, ids)
	return f.durations, f.err
}

func newTestImporter(items []Item, fetchErr error, durations DurationLookup) (*Importer, *string) {
	var requested string
	imp := New(durations)
	imp.fetch = func(ctx context.Context, playlistID string) ([]Item, error) {
		requested = playlistID
		return items, fetchErr
	}
	return imp, &requested
}

func TestImport(t *testing.T) {
	items := []Item{
		{VideoID: "v1", Title: "First"},
		{VideoID: "", Title: "Deleted video"},
		{VideoID: "v2", Title: "Second"},
		{VideoID: "v1", Title: "First again"},
	}
	durations := &fakeDurations{durations: map[string]string{"v1": "3:00", "v2": "4:30"}}
	imp, requested := newTestImporter(items, nil, durations)

	tracks, err := imp.Import(context.Background(), "https://www.youtube.com/playlist?list=PL123&si=x")
	require.NoError(t, err)
	assert.Equal(t, "PL123", *requested)

	require.Len(t, tracks, 2)
	assert.Equal(t, "v1", tracks[0].ID)
	assert.Equal(t, "First", tracks[0].Title)
	assert.Equal(t, "3:00", tracks[0].Duration)
	assert.Equal(t, "https://i.ytimg.com/vi/v1/hqdefault.jpg", tracks[0].Thumbnail())
	assert.Equal(t, "v2", tracks[1].ID)
	assert.Equal(t, "4:30", tracks[1].Duration)

	require.Len(t, durations.calls, 1)
	assert.Equal(t, []string{"v1", "v2"}, durations.calls[0])
}

func TestImport_WithoutDurationLookup(t *testing.T) {
	imp, _ := newTestImporter([]Item{{VideoID: "v1", Title: "First"}}, nil, nil)

	tracks, err := imp.Import(context.Background(), "PL123")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Empty(t, tracks[0].Duration)
}

func TestImport_DurationLookupFailureKeepsTracks(t *testing.T) {
	durations := &fakeDurations{err: errors.New("quota")}
	imp, _ := newTestImporter([]Item{{VideoID: "v1", Title: "First"}}, nil, durations)

	tracks, err := imp.Import(context.Background(), "PL123")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Empty(t, tracks[0].Duration)
}

func TestImport_FetchError(t *testing.T) {
	imp, _ := newTestImporter(nil, errors.New("private playlist"), nil)

	_, err := imp.Import(context.Background(), "PL123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private playlist")
}

func TestImport_InvalidURL(t *testing.T) {
	imp, _ := newTestImporter(nil, nil, nil)

	_, err := imp.Import(context.Background(), "https://www.youtube.com/watch?v=abc")
	assert.True(t, errors.Is(err, ErrInvalidPlaylistURL))
}

func TestImporter_CanImport(t *testing.T) {
	imp := New(nil)
	assert.True(t, imp.CanImport("https://www.youtube.com/playlist?list=PLabc"))
	assert.True(t, imp.CanImport("PLabc"))
	assert.False(t, imp.CanImport("https://open.spotify.com/playlist/abc"))
	assert.False(t, imp.CanImport(""))
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"playlist URL", "https://www.youtube.com/playlist?list=PLabc", "PLabc", false},
		{"watch URL with list", "https://www.youtube.com/watch?v=x&list=PLabc&index=2", "PLabc", false},
		{"music URL", "https://music.youtube.com/playlist?list=OLAK5uy_abc", "OLAK5uy_abc", false},
		{"bare ID", " PLabc ", "PLabc", false},
		{"no list parameter", "https://www.youtube.com/watch?v=x", "", true},
		{"empty", "", "", true},
		{"path without scheme", "youtube.com/foo", "", true},
		{"spotify URI", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "", true},
		{"spotify URL", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPlaylistID(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPlaylistURL))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
