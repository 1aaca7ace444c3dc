package state

import (
	"database/sql"

	"github.com/quentel/shufflepod/internal/song"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB
	GetSongs() ([]song.Song, error)
	SaveSongs(songs []song.Song) error
	GetQueue() (*PersistedQueue, error)
	SaveQueue(q PersistedQueue) error
	SaveQueueDebounced(q PersistedQueue)
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
