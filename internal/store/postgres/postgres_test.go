package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/store"
	"github.com/osa030/tubebox/internal/store/storetest"
)

// Set TUBEBOX_TEST_DATABASE_URL to run against a scratch database.
// Tables are truncated before each case.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TUBEBOX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TUBEBOX_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.db.NewTruncateTable().
		Table("liked_tracks", "playlist_tracks", "playlists").
		Exec(ctx)
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTestStore(t)
	})
}

var testTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestModelConversion(t *testing.T) {
	tr := storetest.Track("a")
	l := newLikedTrack("alice", tr, testTime)
	got := l.toDomain()
	assert.Equal(t, tr, got.Track)
	assert.Equal(t, testTime, got.LikedAt)

	row := &PlaylistRow{
		ID:     "p1",
		UserID: "alice",
		Name:   "Mix",
		Tracks: []*PlaylistTrack{newPlaylistTrack("p1", 0, tr), newPlaylistTrack("p1", 1, storetest.Track("b"))},
	}
	p := row.toDomain()
	assert.Equal(t, []string{"a", "b"}, p.TrackIDs())
	assert.Equal(t, tr, p.Tracks[0])

	empty := (&PlaylistRow{ID: "p2"}).toDomain()
	assert.Equal(t, []track.Track{}, empty.Tracks)
}
