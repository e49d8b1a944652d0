// Package store defines persistence for liked tracks and user playlists.
package store

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
)

// Errors
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not allowed")
	ErrAlreadyLiked = errors.New("track already liked")
	ErrNotLiked     = errors.New("track not liked")
	ErrInvalidTrack = errors.New("track ID is required")
)

// LikedStore persists each user's liked tracks.
type LikedStore interface {
	// Like records t as liked now. Liking twice returns ErrAlreadyLiked.
	Like(ctx context.Context, userID string, t track.Track) error
	// Unlike removes a liked track. Returns ErrNotLiked when absent.
	Unlike(ctx context.Context, userID, trackID string) error
	// IsLiked reports whether the user liked the track.
	IsLiked(ctx context.Context, userID, trackID string) (bool, error)
	// Liked returns the user's liked tracks, newest first.
	Liked(ctx context.Context, userID string) ([]track.Liked, error)
}

// PlaylistStore persists user playlists. Only the owner may modify a
// playlist; public playlists are readable by anyone.
type PlaylistStore interface {
	// Create validates p, assigns ID and timestamps, and stores it with its tracks.
	Create(ctx context.Context, p playlist.Playlist) (*playlist.Playlist, error)
	// Get returns a playlist owned by userID or public.
	Get(ctx context.Context, userID, id string) (*playlist.Playlist, error)
	// List returns the user's playlists, most recently updated first.
	List(ctx context.Context, userID string) ([]playlist.Playlist, error)
	// Update changes name and description.
	Update(ctx context.Context, userID, id, name, description string) (*playlist.Playlist, error)
	// Delete removes a playlist and its tracks.
	Delete(ctx context.Context, userID, id string) error
	// AddTrack appends a track. Duplicates return playlist.ErrDuplicateTrack.
	AddTrack(ctx context.Context, userID, id string, t track.Track) (*playlist.Playlist, error)
	// RemoveTrack removes a track. Missing tracks return playlist.ErrTrackNotFound.
	RemoveTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error)
}

// Store combines both stores with a lifecycle.
type Store interface {
	LikedStore
	PlaylistStore
	Close() error
}

// CanView reports whether userID may read p.
func CanView(p *playlist.Playlist, userID string) bool {
	return p.UserID == userID || p.IsPublic
}

// CheckOwner returns ErrForbidden unless userID owns p.
func CheckOwner(p *playlist.Playlist, userID string) error {
	if p.UserID != userID {
		return errors.Wrapf(ErrForbidden, "playlist %s", p.ID)
	}
	return nil
}

// ValidateTrack checks the fields a stored track must carry.
func ValidateTrack(t track.Track) error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrInvalidTrack
	}
	return nil
}

// NotFound wraps ErrNotFound for a playlist ID.
func NotFound(id string) error {
	return errors.Wrapf(ErrNotFound, "playlist %s", id)
}
