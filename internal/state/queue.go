package state

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/quentel/shufflepod/internal/db"
)

// PersistedQueue is the traversal snapshot written on shutdown and on
// debounced saves: the order as song IDs plus the current position.
type PersistedQueue struct {
	OrderIDs      []string
	PlayedIDs     []string
	CurrentSongID string
	Position      time.Duration
	Algorithm     string
}

// GetQueue loads the persisted traversal. Returns nil when nothing was
// ever saved.
func (m *Manager) GetQueue() (*PersistedQueue, error) {
	return getQueue(m.db)
}

// SaveQueue writes the traversal immediately, replacing any previous
// snapshot.
func (m *Manager) SaveQueue(q PersistedQueue) error {
	return saveQueue(m.db, q)
}

func getQueue(db *sql.DB) (*PersistedQueue, error) {
	var currentID sql.NullString
	var positionMS int64
	var algorithm string
	row := db.QueryRow(`SELECT current_song_id, position_ms, algorithm FROM queue_state WHERE id = 1`)
	err := row.Scan(&currentID, &positionMS, &algorithm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT song_id, played
		FROM queue_entries
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	q := &PersistedQueue{
		CurrentSongID: dbutil.NullStringValue(currentID),
		Position:      time.Duration(positionMS) * time.Millisecond,
		Algorithm:     algorithm,
	}
	for rows.Next() {
		var id string
		var played bool
		if err := rows.Scan(&id, &played); err != nil {
			return nil, err
		}
		q.OrderIDs = append(q.OrderIDs, id)
		if played {
			q.PlayedIDs = append(q.PlayedIDs, id)
		}
	}
	return q, rows.Err()
}

func saveQueue(sqlDB *sql.DB, q PersistedQueue) error {
	played := make(map[string]struct{}, len(q.PlayedIDs))
	for _, id := range q.PlayedIDs {
		played[id] = struct{}{}
	}

	return dbutil.WithTx(sqlDB, func(tx *sql.Tx) error {
		// Clear existing entries
		_, err := tx.Exec(`DELETE FROM queue_entries`)
		if err != nil {
			return err
		}

		var currentID any
		if q.CurrentSongID != "" {
			currentID = q.CurrentSongID
		}
		_, err = tx.Exec(`
			INSERT INTO queue_state (id, current_song_id, position_ms, algorithm)
			VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_song_id = excluded.current_song_id,
				position_ms = excluded.position_ms,
				algorithm = excluded.algorithm
		`, currentID, q.Position.Milliseconds(), q.Algorithm)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO queue_entries (position, song_id, played)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, id := range q.OrderIDs {
			_, wasPlayed := played[id]
			if _, err := stmt.Exec(i, id, wasPlayed); err != nil {
				return err
			}
		}
		return nil
	})
}
