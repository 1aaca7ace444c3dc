package state

import (
	"database/sql"
)

const currentSchemaVersion = 2

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS songs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT,
			album TEXT,
			artwork_ref TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,
			last_played INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist);
		CREATE INDEX IF NOT EXISTS idx_songs_last_played ON songs(last_played);

		CREATE TABLE IF NOT EXISTS queue_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_song_id TEXT,
			position_ms INTEGER NOT NULL DEFAULT 0,
			algorithm TEXT NOT NULL DEFAULT 'no_repeat'
		);

		CREATE TABLE IF NOT EXISTS queue_entries (
			position INTEGER PRIMARY KEY,
			song_id TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
			played INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_queue_entries_song ON queue_entries(song_id);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: add artwork_ref column if missing
	_, _ = db.Exec(`ALTER TABLE songs ADD COLUMN artwork_ref TEXT`)

	// Migration: add position_ms column if missing
	_, _ = db.Exec(`ALTER TABLE queue_state ADD COLUMN position_ms INTEGER NOT NULL DEFAULT 0`)

	return nil
}
