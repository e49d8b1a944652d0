// Package memory provides an in-memory store for tests and ephemeral daemons.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/store"
)

// Store is a mutex-guarded in-memory store.Store.
type Store struct {
	mu        sync.RWMutex
	liked     map[string][]track.Liked // user ID -> oldest first
	playlists map[string]*playlist.Playlist
	now       func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		liked:     make(map[string][]track.Liked),
		playlists: make(map[string]*playlist.Playlist),
		now:       time.Now,
	}
}

// Like records t as liked.
func (s *Store) Like(ctx context.Context, userID string, t track.Track) error {
	if err := store.ValidateTrack(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.liked[userID] {
		if l.ID == t.ID {
			return errors.Wrapf(store.ErrAlreadyLiked, "track %s", t.ID)
		}
	}
	s.liked[userID] = append(s.liked[userID], track.Liked{Track: t, LikedAt: s.now()})
	return nil
}

// Unlike removes a liked track.
func (s *Store) Unlike(ctx context.Context, userID, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	liked := s.liked[userID]
	i := slices.IndexFunc(liked, func(l track.Liked) bool { return l.ID == trackID })
	if i < 0 {
		return errors.Wrapf(store.ErrNotLiked, "track %s", trackID)
	}
	s.liked[userID] = slices.Delete(liked, i, i+1)
	return nil
}

// IsLiked reports whether the user liked the track.
func (s *Store) IsLiked(ctx context.Context, userID, trackID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.ContainsFunc(s.liked[userID], func(l track.Liked) bool { return l.ID == trackID }), nil
}

// Liked returns the user's liked tracks, newest first.
func (s *Store) Liked(ctx context.Context, userID string) ([]track.Liked, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	liked := s.liked[userID]
	out := make([]track.Liked, len(liked))
	for i, l := range liked {
		out[len(liked)-1-i] = l
	}
	return out, nil
}

// Create stores a new playlist.
func (s *Store) Create(ctx context.Context, p playlist.Playlist) (*playlist.Playlist, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	created := playlist.Playlist{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		Name:        p.Name,
		Description: p.Description,
		IsPublic:    p.IsPublic,
	}
	for _, t := range p.Tracks {
		if err := store.ValidateTrack(t); err != nil {
			return nil, err
		}
		if err := created.AddTrack(t); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	created.CreatedAt = now
	created.UpdatedAt = now
	s.playlists[created.ID] = &created
	return clone(&created), nil
}

// Get returns a playlist visible to userID.
func (s *Store) Get(ctx context.Context, userID, id string) (*playlist.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.playlists[id]
	if !ok {
		return nil, store.NotFound(id)
	}
	if !store.CanView(p, userID) {
		return nil, errors.Wrapf(store.ErrForbidden, "playlist %s", id)
	}
	return clone(p), nil
}

// List returns the user's playlists, most recently updated first.
func (s *Store) List(ctx context.Context, userID string) ([]playlist.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]playlist.Playlist, 0)
	for _, p := range s.playlists {
		if p.UserID == userID {
			out = append(out, *clone(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Update changes name and description.
func (s *Store) Update(ctx context.Context, userID, id, name, description string) (*playlist.Playlist, error) {
	return s.modify(userID, id, func(p *playlist.Playlist) error {
		next := *p
		next.Name = name
		next.Description = description
		if err := next.Validate(); err != nil {
			return err
		}
		p.Name = name
		p.Description = description
		return nil
	})
}

// Delete removes a playlist.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playlists[id]
	if !ok {
		return store.NotFound(id)
	}
	if err := store.CheckOwner(p, userID); err != nil {
		return err
	}
	delete(s.playlists, id)
	return nil
}

// AddTrack appends a track.
func (s *Store) AddTrack(ctx context.Context, userID, id string, t track.Track) (*playlist.Playlist, error) {
	if err := store.ValidateTrack(t); err != nil {
		return nil, err
	}
	return s.modify(userID, id, func(p *playlist.Playlist) error {
		return p.AddTrack(t)
	})
}

// RemoveTrack removes a track.
func (s *Store) RemoveTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	return s.modify(userID, id, func(p *playlist.Playlist) error {
		return p.RemoveTrack(trackID)
	})
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) modify(userID, id string, fn func(p *playlist.Playlist) error) (*playlist.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playlists[id]
	if !ok {
		return nil, store.NotFound(id)
	}
	if err := store.CheckOwner(p, userID); err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	return clone(p), nil
}

func clone(p *playlist.Playlist) *playlist.Playlist {
	c := *p
	c.Tracks = slices.Clone(p.Tracks)
	if c.Tracks == nil {
		c.Tracks = []track.Track{}
	}
	return &c
}
