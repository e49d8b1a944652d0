package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
)

// LikedTrack is a row of liked_tracks.
type LikedTrack struct {
	bun.BaseModel `bun:"table:liked_tracks"`

	Seq          int64            `bun:"seq,pk,autoincrement"`
	UserID       string           `bun:"user_id,notnull,unique:liked_user_track"`
	TrackID      string           `bun:"track_id,notnull,unique:liked_user_track"`
	Title        string           `bun:"title,notnull"`
	ChannelTitle string           `bun:"channel_title,notnull"`
	Duration     string           `bun:"duration,notnull"`
	PublishedAt  string           `bun:"published_at,notnull"`
	Thumbnails   track.Thumbnails `bun:"thumbnails,type:jsonb,notnull"`
	LikedAt      time.Time        `bun:"liked_at,notnull"`
}

// PlaylistRow is a row of playlists.
type PlaylistRow struct {
	bun.BaseModel `bun:"table:playlists"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id,notnull"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,notnull"`
	IsPublic    bool      `bun:"is_public,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`

	Tracks []*PlaylistTrack `bun:"rel:has-many,join:id=playlist_id"`
}

// PlaylistTrack is a row of playlist_tracks.
type PlaylistTrack struct {
	bun.BaseModel `bun:"table:playlist_tracks"`

	PlaylistID   string           `bun:"playlist_id,pk"`
	TrackID      string           `bun:"track_id,pk"`
	Position     int              `bun:"position,notnull"`
	Title        string           `bun:"title,notnull"`
	ChannelTitle string           `bun:"channel_title,notnull"`
	Duration     string           `bun:"duration,notnull"`
	PublishedAt  string           `bun:"published_at,notnull"`
	Thumbnails   track.Thumbnails `bun:"thumbnails,type:jsonb,notnull"`
}

func newLikedTrack(userID string, t track.Track, at time.Time) *LikedTrack {
	return &LikedTrack{
		UserID:       userID,
		TrackID:      t.ID,
		Title:        t.Title,
		ChannelTitle: t.ChannelTitle,
		Duration:     t.Duration,
		PublishedAt:  t.PublishedAt,
		Thumbnails:   t.Thumbnails,
		LikedAt:      at,
	}
}

func (l *LikedTrack) toDomain() track.Liked {
	return track.Liked{
		Track: track.Track{
			ID:           l.TrackID,
			Title:        l.Title,
			ChannelTitle: l.ChannelTitle,
			Duration:     l.Duration,
			PublishedAt:  l.PublishedAt,
			Thumbnails:   l.Thumbnails,
		},
		LikedAt: l.LikedAt,
	}
}

func newPlaylistTrack(playlistID string, position int, t track.Track) *PlaylistTrack {
	return &PlaylistTrack{
		PlaylistID:   playlistID,
		TrackID:      t.ID,
		Position:     position,
		Title:        t.Title,
		ChannelTitle: t.ChannelTitle,
		Duration:     t.Duration,
		PublishedAt:  t.PublishedAt,
		Thumbnails:   t.Thumbnails,
	}
}

func (r *PlaylistRow) toDomain() *playlist.Playlist {
	p := &playlist.Playlist{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		IsPublic:    r.IsPublic,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Tracks:      make([]track.Track, 0, len(r.Tracks)),
	}
	for _, t := range r.Tracks {
		p.Tracks = append(p.Tracks, track.Track{
			ID:           t.TrackID,
			Title:        t.Title,
			ChannelTitle: t.ChannelTitle,
			Duration:     t.Duration,
			PublishedAt:  t.PublishedAt,
			Thumbnails:   t.Thumbnails,
		})
	}
	return p
}
