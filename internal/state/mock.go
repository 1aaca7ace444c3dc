package state

import (
	"database/sql"

	"github.com/quentel/shufflepod/internal/song"
)

// Mock is a test double for Manager.
type Mock struct {
	songs  []song.Song
	queue  *PersistedQueue
	closed bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) GetSongs() ([]song.Song, error) {
	return m.songs, nil
}

func (m *Mock) SaveSongs(songs []song.Song) error {
	m.songs = songs
	return nil
}

func (m *Mock) GetQueue() (*PersistedQueue, error) {
	return m.queue, nil
}

func (m *Mock) SaveQueue(q PersistedQueue) error {
	m.queue = &q
	return nil
}

func (m *Mock) SaveQueueDebounced(q PersistedQueue) {
	m.queue = &q
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// SetQueue seeds the queue returned by GetQueue.
func (m *Mock) SetQueue(q *PersistedQueue) { m.queue = q }

// SetSongs seeds the songs returned by GetSongs.
func (m *Mock) SetSongs(songs []song.Song) { m.songs = songs }

// Closed reports whether Close was called.
func (m *Mock) Closed() bool { return m.closed }

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
