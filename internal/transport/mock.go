package transport

import (
	"context"
	"sync"
	"time"

	"github.com/quentel/shufflepod/internal/song"
)

// Mock is a scriptable test double for Transport. Calls are recorded in
// order; per-method errors can be injected; status updates are pushed by
// the test through PushUpdate.
type Mock struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	queue   []song.Song
	pos     time.Duration
	dur     time.Duration
	updates chan StatusUpdate
	closed  bool
}

// NewMock creates a mock transport.
func NewMock() *Mock {
	return &Mock{
		errs:    make(map[string]error),
		updates: make(chan StatusUpdate, 16),
	}
}

// FailWith makes the named method (e.g. "replace_queue") return err.
func (m *Mock) FailWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

// Calls returns the recorded method names in call order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Queue returns the last queue the mock was given.
func (m *Mock) Queue() []song.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]song.Song, len(m.queue))
	copy(out, m.queue)
	return out
}

// PushUpdate feeds a status update to the subscriber.
func (m *Mock) PushUpdate(u StatusUpdate) {
	m.updates <- u
}

func (m *Mock) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
	return m.errs[method]
}

func (m *Mock) Play(_ context.Context) error  { return m.record("play") }
func (m *Mock) Pause(_ context.Context) error { return m.record("pause") }

func (m *Mock) SkipToNext(_ context.Context) error     { return m.record("skip_next") }
func (m *Mock) SkipToPrevious(_ context.Context) error { return m.record("skip_previous") }

func (m *Mock) Seek(_ context.Context, pos time.Duration) error {
	err := m.record("seek")
	if err == nil {
		m.mu.Lock()
		m.pos = pos
		m.mu.Unlock()
	}
	return err
}

func (m *Mock) SetQueue(_ context.Context, songs []song.Song) error {
	err := m.record("set_queue")
	if err == nil {
		m.setQueue(songs)
	}
	return err
}

func (m *Mock) InsertIntoQueue(_ context.Context, songs []song.Song) error {
	err := m.record("insert_into_queue")
	if err == nil {
		m.mu.Lock()
		m.queue = append(m.queue, songs...)
		m.mu.Unlock()
	}
	return err
}

func (m *Mock) ReplaceQueue(_ context.Context, songs []song.Song, _ string, _ ReplacePolicy) error {
	err := m.record("replace_queue")
	if err == nil {
		m.setQueue(songs)
	}
	return err
}

func (m *Mock) setQueue(songs []song.Song) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = make([]song.Song, len(songs))
	copy(m.queue, songs)
}

func (m *Mock) PlaybackTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *Mock) SongDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dur
}

// SetSongDuration sets the duration reported by SongDuration.
func (m *Mock) SetSongDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dur = d
}

func (m *Mock) Updates() <-chan StatusUpdate { return m.updates }

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.updates)
	}
	return nil
}

// Verify Mock implements Transport at compile time.
var _ Transport = (*Mock)(nil)
