// Package postgres provides a PostgreSQL-backed store built on bun.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/store"
)

// Connection retry policy.
const (
	maxConnectAttempts = 5
	connectRetryDelay  = 2 * time.Second
)

// Store is a store.Store backed by PostgreSQL.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to PostgreSQL, retrying while the server comes up, and
// creates the tables when missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		zlog.Info().Msgf("connecting to database (attempt %d/%d)", attempt, maxConnectAttempts)

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		sqldb.SetMaxOpenConns(10)
		sqldb.SetMaxIdleConns(5)
		sqldb.SetConnMaxLifetime(5 * time.Minute)

		db := bun.NewDB(sqldb, pgdialect.New())
		if zerolog.GlobalLevel() <= zerolog.DebugLevel {
			db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
			))
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			s := &Store{db: db, now: time.Now}
			if err := s.createSchema(ctx); err != nil {
				db.Close()
				return nil, err
			}
			zlog.Info().Msg("connected to PostgreSQL")
			return s, nil
		}

		zlog.Warn().Err(lastErr).Msgf("failed to connect to database (attempt %d)", attempt)
		db.Close()
		if attempt == maxConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "database connection cancelled")
		case <-time.After(connectRetryDelay):
		}
	}
	return nil, errors.Wrapf(lastErr, "failed to connect to database after %d attempts", maxConnectAttempts)
}

func (s *Store) createSchema(ctx context.Context) error {
	models := []any{
		(*LikedTrack)(nil),
		(*PlaylistRow)(nil),
		(*PlaylistTrack)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to create table")
		}
	}
	indexes := []*bun.CreateIndexQuery{
		s.db.NewCreateIndex().Model((*LikedTrack)(nil)).Index("idx_liked_tracks_user").Column("user_id", "liked_at"),
		s.db.NewCreateIndex().Model((*PlaylistRow)(nil)).Index("idx_playlists_user").Column("user_id", "updated_at"),
	}
	for _, q := range indexes {
		if _, err := q.IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to create index")
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Like records t as liked.
func (s *Store) Like(ctx context.Context, userID string, t track.Track) error {
	if err := store.ValidateTrack(t); err != nil {
		return err
	}

	res, err := s.db.NewInsert().
		Model(newLikedTrack(userID, t, s.now())).
		ExcludeColumn("seq").
		On("CONFLICT (user_id, track_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to insert liked track")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(store.ErrAlreadyLiked, "track %s", t.ID)
	}
	return nil
}

// Unlike removes a liked track.
func (s *Store) Unlike(ctx context.Context, userID, trackID string) error {
	res, err := s.db.NewDelete().
		Model((*LikedTrack)(nil)).
		Where("user_id = ?", userID).
		Where("track_id = ?", trackID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete liked track")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(store.ErrNotLiked, "track %s", trackID)
	}
	return nil
}

// IsLiked reports whether the user liked the track.
func (s *Store) IsLiked(ctx context.Context, userID, trackID string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*LikedTrack)(nil)).
		Where("user_id = ?", userID).
		Where("track_id = ?", trackID).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to query liked track")
	}
	return ok, nil
}

// Liked returns the user's liked tracks, newest first.
func (s *Store) Liked(ctx context.Context, userID string) ([]track.Liked, error) {
	var rows []LikedTrack
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("liked_at DESC", "seq DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query liked tracks")
	}

	out := make([]track.Liked, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
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
	// Postgres keeps microseconds
	now := s.now().Truncate(time.Microsecond)
	created.CreatedAt = now
	created.UpdatedAt = now

	row := &PlaylistRow{
		ID:          created.ID,
		UserID:      created.UserID,
		Name:        created.Name,
		Description: created.Description,
		IsPublic:    created.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to insert playlist")
		}
		if len(created.Tracks) == 0 {
			return nil
		}
		tracks := make([]*PlaylistTrack, len(created.Tracks))
		for i, t := range created.Tracks {
			tracks[i] = newPlaylistTrack(created.ID, i, t)
		}
		if _, err := tx.NewInsert().Model(&tracks).Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to insert playlist tracks")
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
	p, err := s.load(ctx, s.db, id, false)
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
	var rows []PlaylistRow
	err := s.db.NewSelect().
		Model(&rows).
		Relation("Tracks", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("playlist_row.user_id = ?", userID).
		Order("playlist_row.updated_at DESC", "playlist_row.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlists")
	}

	out := make([]playlist.Playlist, len(rows))
	for i := range rows {
		out[i] = *rows[i].toDomain()
	}
	return out, nil
}

// Update changes name and description.
func (s *Store) Update(ctx context.Context, userID, id, name, description string) (*playlist.Playlist, error) {
	return s.modify(ctx, userID, id, func(ctx context.Context, tx bun.Tx, p *playlist.Playlist) error {
		next := *p
		next.Name = name
		next.Description = description
		if err := next.Validate(); err != nil {
			return err
		}
		_, err := tx.NewUpdate().
			Model((*PlaylistRow)(nil)).
			Set("name = ?", name).
			Set("description = ?", description).
			Where("id = ?", id).
			Exec(ctx)
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
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		p, err := s.load(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := store.CheckOwner(p, userID); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*PlaylistTrack)(nil)).Where("playlist_id = ?", id).Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to delete playlist tracks")
		}
		if _, err := tx.NewDelete().Model((*PlaylistRow)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
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
	return s.modify(ctx, userID, id, func(ctx context.Context, tx bun.Tx, p *playlist.Playlist) error {
		if err := p.AddTrack(t); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(newPlaylistTrack(id, len(p.Tracks)-1, t)).Exec(ctx)
		return errors.Wrapf(err, "failed to insert track %s", t.ID)
	})
}

// RemoveTrack removes a track and closes the gap in positions.
func (s *Store) RemoveTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	return s.modify(ctx, userID, id, func(ctx context.Context, tx bun.Tx, p *playlist.Playlist) error {
		var position int
		err := tx.NewSelect().
			Model((*PlaylistTrack)(nil)).
			Column("position").
			Where("playlist_id = ?", id).
			Where("track_id = ?", trackID).
			Scan(ctx, &position)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(playlist.ErrTrackNotFound, "track %s", trackID)
		}
		if err != nil {
			return errors.Wrap(err, "failed to query track position")
		}

		if _, err := tx.NewDelete().
			Model((*PlaylistTrack)(nil)).
			Where("playlist_id = ?", id).
			Where("track_id = ?", trackID).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to delete playlist track")
		}
		if _, err := tx.NewUpdate().
			Model((*PlaylistTrack)(nil)).
			Set("position = position - 1").
			Where("playlist_id = ?", id).
			Where("position > ?", position).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to shift track positions")
		}
		return p.RemoveTrack(trackID)
	})
}

func (s *Store) modify(ctx context.Context, userID, id string, fn func(ctx context.Context, tx bun.Tx, p *playlist.Playlist) error) (*playlist.Playlist, error) {
	var out *playlist.Playlist
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		p, err := s.load(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := store.CheckOwner(p, userID); err != nil {
			return err
		}
		if err := fn(ctx, tx, p); err != nil {
			return err
		}
		p.UpdatedAt = s.now().Truncate(time.Microsecond)
		if _, err := tx.NewUpdate().
			Model((*PlaylistRow)(nil)).
			Set("updated_at = ?", p.UpdatedAt).
			Where("id = ?", id).
			Exec(ctx); err != nil {
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

// load reads a playlist with its tracks. forUpdate locks the row.
func (s *Store) load(ctx context.Context, db bun.IDB, id string, forUpdate bool) (*playlist.Playlist, error) {
	row := new(PlaylistRow)
	q := db.NewSelect().
		Model(row).
		Relation("Tracks", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("playlist_row.id = ?", id)
	if forUpdate {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query playlist %s", id)
	}
	return row.toDomain(), nil
}
