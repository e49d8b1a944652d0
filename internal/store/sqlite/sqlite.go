// Package sqlite provides a SQLite-backed store using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/store"
)

// Store is a store.Store backed by a single SQLite connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open opens (creating if needed) the database at dsn and applies the schema.
// dsn may be a file path or ":memory:".
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory for %s", dsn)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	// SQLite serializes writers; a single connection also keeps ":memory:" alive
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	zlog.Info().Msgf("sqlite store opened: %s", dsn)
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Like records t as liked.
func (s *Store) Like(ctx context.Context, userID string, t track.Track) error {
	if err := store.ValidateTrack(t); err != nil {
		return err
	}
	thumbs, err := encodeThumbnails(t.Thumbnails)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO liked_tracks (user_id, track_id, title, channel_title, duration, published_at, thumbnails, liked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, track_id) DO NOTHING
	`, userID, t.ID, t.Title, t.ChannelTitle, t.Duration, t.PublishedAt, thumbs, s.now().UnixNano())
	if err != nil {
		return errors.Wrap(err, "failed to insert liked track")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(store.ErrAlreadyLiked, "track %s", t.ID)
	}
	return nil
}

// Unlike removes a liked track.
func (s *Store) Unlike(ctx context.Context, userID, trackID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM liked_tracks WHERE user_id = ? AND track_id = ?
	`, userID, trackID)
	if err != nil {
		return errors.Wrap(err, "failed to delete liked track")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(store.ErrNotLiked, "track %s", trackID)
	}
	return nil
}

// IsLiked reports whether the user liked the track.
func (s *Store) IsLiked(ctx context.Context, userID, trackID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM liked_tracks WHERE user_id = ? AND track_id = ?
	`, userID, trackID).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "failed to query liked track")
	}
	return n > 0, nil
}

// Liked returns the user's liked tracks, newest first.
func (s *Store) Liked(ctx context.Context, userID string) ([]track.Liked, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, title, channel_title, duration, published_at, thumbnails, liked_at
		FROM liked_tracks
		WHERE user_id = ?
		ORDER BY liked_at DESC, seq DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query liked tracks")
	}
	defer rows.Close()

	liked := make([]track.Liked, 0)
	for rows.Next() {
		var l track.Liked
		var thumbs string
		var likedAt int64
		if err := rows.Scan(&l.ID, &l.Title, &l.ChannelTitle, &l.Duration, &l.PublishedAt, &thumbs, &likedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan liked track")
		}
		if l.Thumbnails, err = decodeThumbnails(thumbs); err != nil {
			return nil, err
		}
		l.LikedAt = time.Unix(0, likedAt)
		liked = append(liked, l)
	}
	return liked, errors.Wrap(rows.Err(), "failed to iterate liked tracks")
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
		Tracks:      []track.Track{},
	}
	for _, t := range p.Tracks {
		if err := store.ValidateTrack(t); err != nil {
			return nil, err
		}
		if err := created.AddTrack(t); err != nil {
			return nil, err
		}
	}
	now := s.now()
	created.CreatedAt = now
	created.UpdatedAt = now

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlists (id, user_id, name, description, is_public, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, created.ID, created.UserID, created.Name, created.Description, created.IsPublic, now.UnixNano(), now.UnixNano())
		if err != nil {
			return errors.Wrap(err, "failed to insert playlist")
		}
		for i, t := range created.Tracks {
			if err := insertTrack(ctx, tx, created.ID, i, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Get returns a playlist visible to userID.
func (s *Store) Get(ctx context.Context, userID, id string) (*playlist.Playlist, error) {
	p, err := loadPlaylist(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !store.CanView(p, userID) {
		return nil, errors.Wrapf(store.ErrForbidden, "playlist %s", id)
	}
	return p, nil
}

// List returns the user's playlists, most recently updated first.
func (s *Store) List(ctx context.Context, userID string) ([]playlist.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM playlists WHERE user_id = ? ORDER BY updated_at DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlists")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan playlist id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "failed to iterate playlists")
	}
	rows.Close()

	out := make([]playlist.Playlist, 0, len(ids))
	for _, id := range ids {
		p, err := loadPlaylist(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// Update changes name and description.
func (s *Store) Update(ctx context.Context, userID, id, name, description string) (*playlist.Playlist, error) {
	return s.modify(ctx, userID, id, func(tx *sql.Tx, p *playlist.Playlist) error {
		next := *p
		next.Name = name
		next.Description = description
		if err := next.Validate(); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE playlists SET name = ?, description = ? WHERE id = ?
		`, name, description, id)
		if err != nil {
			return errors.Wrap(err, "failed to update playlist")
		}
		p.Name = name
		p.Description = description
		return nil
	})
}

// Delete removes a playlist and its tracks.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := loadPlaylistHeader(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := store.CheckOwner(p, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
			return errors.Wrap(err, "failed to delete playlist tracks")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id); err != nil {
			return errors.Wrap(err, "failed to delete playlist")
		}
		return nil
	})
}

// AddTrack appends a track.
func (s *Store) AddTrack(ctx context.Context, userID, id string, t track.Track) (*playlist.Playlist, error) {
	if err := store.ValidateTrack(t); err != nil {
		return nil, err
	}
	return s.modify(ctx, userID, id, func(tx *sql.Tx, p *playlist.Playlist) error {
		if err := p.AddTrack(t); err != nil {
			return err
		}
		return insertTrack(ctx, tx, id, len(p.Tracks)-1, t)
	})
}

// RemoveTrack removes a track and closes the gap in positions.
func (s *Store) RemoveTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	return s.modify(ctx, userID, id, func(tx *sql.Tx, p *playlist.Playlist) error {
		var position int
		err := tx.QueryRowContext(ctx, `
			SELECT position FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?
		`, id, trackID).Scan(&position)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(playlist.ErrTrackNotFound, "track %s", trackID)
		}
		if err != nil {
			return errors.Wrap(err, "failed to query track position")
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?
		`, id, trackID); err != nil {
			return errors.Wrap(err, "failed to delete playlist track")
		}
		// Shift down positions after the deleted track
		if _, err := tx.ExecContext(ctx, `
			UPDATE playlist_tracks SET position = position - 1
			WHERE playlist_id = ? AND position > ?
		`, id, position); err != nil {
			return errors.Wrap(err, "failed to shift track positions")
		}
		return p.RemoveTrack(trackID)
	})
}

// modify loads the playlist inside a transaction, checks ownership, applies
// fn and bumps updated_at.
func (s *Store) modify(ctx context.Context, userID, id string, fn func(tx *sql.Tx, p *playlist.Playlist) error) (*playlist.Playlist, error) {
	var out *playlist.Playlist
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := loadPlaylist(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := store.CheckOwner(p, userID); err != nil {
			return err
		}
		if err := fn(tx, p); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE playlists SET updated_at = ? WHERE id = ?
		`, p.UpdatedAt.UnixNano(), id); err != nil {
			return errors.Wrap(err, "failed to touch playlist")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadPlaylistHeader(ctx context.Context, q querier, id string) (*playlist.Playlist, error) {
	p := &playlist.Playlist{ID: id}
	var createdAt, updatedAt int64
	err := q.QueryRowContext(ctx, `
		SELECT user_id, name, description, is_public, created_at, updated_at
		FROM playlists WHERE id = ?
	`, id).Scan(&p.UserID, &p.Name, &p.Description, &p.IsPublic, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query playlist %s", id)
	}
	p.CreatedAt = time.Unix(0, createdAt)
	p.UpdatedAt = time.Unix(0, updatedAt)
	return p, nil
}

func loadPlaylist(ctx context.Context, q querier, id string) (*playlist.Playlist, error) {
	p, err := loadPlaylistHeader(ctx, q, id)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT track_id, title, channel_title, duration, published_at, thumbnails
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlist tracks")
	}
	defer rows.Close()

	p.Tracks = make([]track.Track, 0)
	for rows.Next() {
		var t track.Track
		var thumbs string
		if err := rows.Scan(&t.ID, &t.Title, &t.ChannelTitle, &t.Duration, &t.PublishedAt, &thumbs); err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist track")
		}
		if t.Thumbnails, err = decodeThumbnails(thumbs); err != nil {
			return nil, err
		}
		p.Tracks = append(p.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate playlist tracks")
	}
	return p, nil
}

func insertTrack(ctx context.Context, tx *sql.Tx, playlistID string, position int, t track.Track) error {
	thumbs, err := encodeThumbnails(t.Thumbnails)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, position, track_id, title, channel_title, duration, published_at, thumbnails)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, playlistID, position, t.ID, t.Title, t.ChannelTitle, t.Duration, t.PublishedAt, thumbs)
	if err != nil {
		return errors.Wrapf(err, "failed to insert track %s", t.ID)
	}
	return nil
}

func encodeThumbnails(th track.Thumbnails) (string, error) {
	b, err := json.Marshal(th)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode thumbnails")
	}
	return string(b), nil
}

func decodeThumbnails(s string) (track.Thumbnails, error) {
	var th track.Thumbnails
	if s == "" {
		return th, nil
	}
	if err := json.Unmarshal([]byte(s), &th); err != nil {
		return th, errors.Wrap(err, "failed to decode thumbnails")
	}
	return th, nil
}
