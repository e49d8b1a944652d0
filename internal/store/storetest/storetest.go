// Package storetest provides a behavior suite shared by store backends.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/store"
)

// Track returns a fully populated test track.
func Track(id string) track.Track {
	return track.Track{
		ID:           id,
		Title:        "Title " + id,
		ChannelTitle: "Channel " + id,
		Duration:     "3:45",
		PublishedAt:  "2024-01-02T03:04:05Z",
		Thumbnails: track.Thumbnails{
			Default: track.Thumbnail{URL: "http://img/" + id + "/default.jpg", Width: 120, Height: 90},
			Medium:  track.Thumbnail{URL: "http://img/" + id + "/mq.jpg", Width: 320, Height: 180},
			High:    track.Thumbnail{URL: "http://img/" + id + "/hq.jpg", Width: 480, Height: 360},
		},
	}
}

// Run runs the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("LikeAndList", func(t *testing.T) { testLikeAndList(t, newStore(t)) })
	t.Run("LikeTwice", func(t *testing.T) { testLikeTwice(t, newStore(t)) })
	t.Run("Unlike", func(t *testing.T) { testUnlike(t, newStore(t)) })
	t.Run("LikedIsPerUser", func(t *testing.T) { testLikedIsPerUser(t, newStore(t)) })
	t.Run("LikeRequiresID", func(t *testing.T) { testLikeRequiresID(t, newStore(t)) })
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateValidates", func(t *testing.T) { testCreateValidates(t, newStore(t)) })
	t.Run("Visibility", func(t *testing.T) { testVisibility(t, newStore(t)) })
	t.Run("AddAndRemoveTracks", func(t *testing.T) { testAddAndRemoveTracks(t, newStore(t)) })
	t.Run("UpdateAndList", func(t *testing.T) { testUpdateAndList(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
}

func testLikeAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	require.NoError(t, s.Like(ctx, "alice", Track("a")))
	require.NoError(t, s.Like(ctx, "alice", Track("b")))
	require.NoError(t, s.Like(ctx, "alice", Track("c")))

	liked, err := s.Liked(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, liked, 3)
	assert.Equal(t, []string{"c", "b", "a"}, ids(liked))
	assert.Equal(t, Track("c"), liked[0].Track)
	assert.True(t, liked[0].LikedAt.After(before))

	ok, err := s.IsLiked(ctx, "alice", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsLiked(ctx, "alice", "z")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testLikeTwice(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Like(ctx, "alice", Track("a")))

	err := s.Like(ctx, "alice", Track("a"))
	assert.True(t, errors.Is(err, store.ErrAlreadyLiked), "got %v", err)

	liked, err := s.Liked(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, liked, 1)
}

func testUnlike(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Like(ctx, "alice", Track("a")))
	require.NoError(t, s.Like(ctx, "alice", Track("b")))

	require.NoError(t, s.Unlike(ctx, "alice", "a"))
	err := s.Unlike(ctx, "alice", "a")
	assert.True(t, errors.Is(err, store.ErrNotLiked), "got %v", err)

	liked, err := s.Liked(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(liked))

	// Liking again after unlike is allowed and moves the track to the front
	require.NoError(t, s.Like(ctx, "alice", Track("a")))
	liked, err = s.Liked(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(liked))
}

func testLikedIsPerUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Like(ctx, "alice", Track("a")))
	require.NoError(t, s.Like(ctx, "bob", Track("a")))

	liked, err := s.Liked(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, liked)

	require.NoError(t, s.Unlike(ctx, "bob", "a"))
	ok, err := s.IsLiked(ctx, "alice", "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testLikeRequiresID(t *testing.T, s store.Store) {
	err := s.Like(context.Background(), "alice", track.Track{Title: "no id"})
	assert.True(t, errors.Is(err, store.ErrInvalidTrack))
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, playlist.Playlist{
		UserID:      "alice",
		Name:        "Road Trip",
		Description: "long drives",
		Tracks:      []track.Track{Track("a"), Track("b")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.Get(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", got.Name)
	assert.Equal(t, "long drives", got.Description)
	assert.Equal(t, "alice", got.UserID)
	assert.False(t, got.IsPublic)
	assert.Equal(t, []track.Track{Track("a"), Track("b")}, got.Tracks)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = s.Get(ctx, "alice", "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testCreateValidates(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "  "})
	assert.True(t, errors.Is(err, playlist.ErrNameRequired))

	_, err = s.Create(ctx, playlist.Playlist{UserID: "alice", Name: strings.Repeat("x", playlist.MaxNameLength+1)})
	assert.True(t, errors.Is(err, playlist.ErrNameTooLong))

	_, err = s.Create(ctx, playlist.Playlist{
		UserID: "alice",
		Name:   "Dupes",
		Tracks: []track.Track{Track("a"), Track("a")},
	})
	assert.True(t, errors.Is(err, playlist.ErrDuplicateTrack))

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testVisibility(t *testing.T, s store.Store) {
	ctx := context.Background()
	private, err := s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "Private"})
	require.NoError(t, err)
	public, err := s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "Public", IsPublic: true})
	require.NoError(t, err)

	_, err = s.Get(ctx, "bob", private.ID)
	assert.True(t, errors.Is(err, store.ErrForbidden), "got %v", err)

	got, err := s.Get(ctx, "bob", public.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)

	// Public playlists are still read-only for others
	_, err = s.AddTrack(ctx, "bob", public.ID, Track("x"))
	assert.True(t, errors.Is(err, store.ErrForbidden), "got %v", err)
	_, err = s.Update(ctx, "bob", public.ID, "Mine", "")
	assert.True(t, errors.Is(err, store.ErrForbidden), "got %v", err)
	err = s.Delete(ctx, "bob", public.ID)
	assert.True(t, errors.Is(err, store.ErrForbidden), "got %v", err)

	list, err := s.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testAddAndRemoveTracks(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "Mix"})
	require.NoError(t, err)
	assert.Empty(t, p.Tracks)

	for _, id := range []string{"a", "b", "c", "d"} {
		p, err = s.AddTrack(ctx, "alice", p.ID, Track(id))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, p.TrackIDs())

	_, err = s.AddTrack(ctx, "alice", p.ID, Track("b"))
	assert.True(t, errors.Is(err, playlist.ErrDuplicateTrack), "got %v", err)

	p, err = s.RemoveTrack(ctx, "alice", p.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, p.TrackIDs())

	_, err = s.RemoveTrack(ctx, "alice", p.ID, "b")
	assert.True(t, errors.Is(err, playlist.ErrTrackNotFound), "got %v", err)

	// Positions stay consistent after removal
	p, err = s.AddTrack(ctx, "alice", p.ID, Track("e"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d", "e"}, p.TrackIDs())

	got, err := s.Get(ctx, "alice", p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d", "e"}, got.TrackIDs())
	assert.Equal(t, Track("e"), got.Tracks[3])
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	_, err = s.AddTrack(ctx, "alice", "00000000-0000-0000-0000-000000000000", Track("z"))
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testUpdateAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	first, err := s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "First"})
	require.NoError(t, err)
	_, err = s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "Second"})
	require.NoError(t, err)
	_, err = s.Create(ctx, playlist.Playlist{UserID: "bob", Name: "Other"})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	updated, err := s.Update(ctx, "alice", first.ID, "First (renamed)", "new description")
	require.NoError(t, err)
	assert.Equal(t, "First (renamed)", updated.Name)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))

	_, err = s.Update(ctx, "alice", first.ID, "", "")
	assert.True(t, errors.Is(err, playlist.ErrNameRequired))

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "First (renamed)", list[0].Name)
	assert.Equal(t, "new description", list[0].Description)
	assert.Equal(t, "Second", list[1].Name)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "Temp", Tracks: []track.Track{Track("a")}})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "alice", p.ID))

	_, err = s.Get(ctx, "alice", p.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
	err = s.Delete(ctx, "alice", p.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

	// Track rows do not leak into a new playlist with the same track
	p2, err := s.Create(ctx, playlist.Playlist{UserID: "alice", Name: "Again", Tracks: []track.Track{Track("a")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p2.TrackIDs())
}

func ids(liked []track.Liked) []string {
	out := make([]string, len(liked))
	for i, l := range liked {
		out[i] = l.ID
	}
	return out
}
