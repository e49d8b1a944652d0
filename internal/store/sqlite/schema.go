package sqlite

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS liked_tracks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	track_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	channel_title TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	published_at TEXT NOT NULL DEFAULT '',
	thumbnails TEXT NOT NULL DEFAULT '{}',
	liked_at INTEGER NOT NULL,
	UNIQUE(user_id, track_id)
);

CREATE INDEX IF NOT EXISTS idx_liked_tracks_user ON liked_tracks(user_id, liked_at DESC);

CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_public INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_playlists_user ON playlists(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS playlist_tracks (
	playlist_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	track_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	channel_title TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	published_at TEXT NOT NULL DEFAULT '',
	thumbnails TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (playlist_id, track_id)
);

CREATE INDEX IF NOT EXISTS idx_playlist_tracks_position ON playlist_tracks(playlist_id, position);
`

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// withTx executes fn within a transaction, rolling back on error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
