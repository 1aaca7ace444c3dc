package state

import (
	"database/sql"
	"time"

	dbutil "github.com/quentel/shufflepod/internal/db"
	"github.com/quentel/shufflepod/internal/song"
)

// GetSongs loads the persisted song pool in insertion order.
func (m *Manager) GetSongs() ([]song.Song, error) {
	return getSongs(m.db)
}

// SaveSongs replaces the persisted pool with the given songs. Songs no
// longer in the pool are deleted, cascading to their queue entries.
func (m *Manager) SaveSongs(songs []song.Song) error {
	return saveSongs(m.db, songs)
}

func getSongs(db *sql.DB) ([]song.Song, error) {
	rows, err := db.Query(`
		SELECT id, title, artist, album, artwork_ref, duration_ms, play_count, last_played
		FROM songs
		ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []song.Song
	for rows.Next() {
		var sg song.Song
		var artist, album, artwork sql.NullString
		var durationMS int64
		var lastPlayed sql.NullInt64

		err := rows.Scan(&sg.ID, &sg.Title, &artist, &album, &artwork, &durationMS, &sg.PlayCount, &lastPlayed)
		if err != nil {
			return nil, err
		}

		sg.Artist = dbutil.NullStringValue(artist)
		sg.AlbumTitle = dbutil.NullStringValue(album)
		sg.ArtworkRef = dbutil.NullStringValue(artwork)
		sg.Duration = time.Duration(durationMS) * time.Millisecond
		if lastPlayed.Valid {
			sg.LastPlayed = time.Unix(lastPlayed.Int64, 0).UTC()
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func saveSongs(sqlDB *sql.DB, songs []song.Song) error {
	return dbutil.WithTx(sqlDB, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO songs (id, title, artist, album, artwork_ref, duration_ms, play_count, last_played)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				artist = excluded.artist,
				album = excluded.album,
				artwork_ref = excluded.artwork_ref,
				duration_ms = excluded.duration_ms,
				play_count = excluded.play_count,
				last_played = excluded.last_played
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		kept := make([]any, 0, len(songs))
		for _, sg := range songs {
			var lastPlayed any
			if !sg.NeverPlayed() {
				lastPlayed = sg.LastPlayed.Unix()
			}
			_, err := stmt.Exec(
				sg.ID, sg.Title, sg.Artist, sg.AlbumTitle, sg.ArtworkRef,
				sg.Duration.Milliseconds(), sg.PlayCount, lastPlayed,
			)
			if err != nil {
				return err
			}
			kept = append(kept, sg.ID)
		}

		// Drop songs that left the pool; their queue entries cascade.
		if len(kept) == 0 {
			_, err := tx.Exec(`DELETE FROM songs`)
			return err
		}
		query := `DELETE FROM songs WHERE id NOT IN (?` + repeatPlaceholder(len(kept)-1) + `)`
		_, err = tx.Exec(query, kept...)
		return err
	})
}

func repeatPlaceholder(n int) string {
	out := make([]byte, 0, n*3)
	for range n {
		out = append(out, ", ?"...)
	}
	return string(out)
}
