// Package playlist provides the Playlist domain entity.
package playlist

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Field limits.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
)

// Errors
var (
	ErrNameRequired       = errors.New("playlist name is required")
	ErrNameTooLong        = errors.New("playlist name is too long")
	ErrDescriptionTooLong = errors.New("playlist description is too long")
	ErrDuplicateTrack     = errors.New("track already in playlist")
	ErrTrackNotFound      = errors.New("track not in playlist")
)

// Playlist represents a user-curated ordered list of tracks.
type Playlist struct {
	ID          string        // Playlist ID (UUID)
	UserID      string        // Owner
	Name        string        // Playlist name
	Description string        // Playlist description
	IsPublic    bool          // Visible to other users
	Tracks      []track.Track // Tracks in insertion order
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the user-editable fields.
func (p *Playlist) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.Wrapf(ErrNameTooLong, "max %d characters", MaxNameLength)
	}
	if utf8.RuneCountInString(p.Description) > MaxDescriptionLength {
		return errors.Wrapf(ErrDescriptionTooLong, "max %d characters", MaxDescriptionLength)
	}
	return nil
}

// HasTrack reports whether the playlist contains the track.
func (p *Playlist) HasTrack(trackID string) bool {
	return p.indexOf(trackID) >= 0
}

// AddTrack appends a track. Duplicates are rejected.
func (p *Playlist) AddTrack(t track.Track) error {
	if p.HasTrack(t.ID) {
		return errors.Wrapf(ErrDuplicateTrack, "track %s", t.ID)
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

// RemoveTrack removes a track, keeping the order of the rest.
func (p *Playlist) RemoveTrack(trackID string) error {
	i := p.indexOf(trackID)
	if i < 0 {
		return errors.Wrapf(ErrTrackNotFound, "track %s", trackID)
	}
	p.Tracks = append(p.Tracks[:i:i], p.Tracks[i+1:]...)
	return nil
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks in seconds.
// Tracks with an unparseable duration count as zero.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, t := range p.Tracks {
		total += int64(t.Length().Seconds())
	}
	return total
}

func (p *Playlist) indexOf(trackID string) int {
	for i, t := range p.Tracks {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}
