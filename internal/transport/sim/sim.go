// Package sim provides an in-process playback backend. It keeps its own
// queue, advances a fake playhead on a ticker and reports state changes
// over the standard status stream. It exists so the application runs end
// to end without a platform music service.
package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/quentel/shufflepod/internal/song"
	"github.com/quentel/shufflepod/internal/transport"
)

const tickInterval = 250 * time.Millisecond

// ErrEmptyQueue is returned for playback calls before any queue is set.
var ErrEmptyQueue = errors.New("sim: queue is empty")

// Transport is the simulated backend.
type Transport struct {
	mu      sync.Mutex
	log     *slog.Logger
	queue   []song.Song
	index   int
	status  transport.Status
	pos     time.Duration
	songLen time.Duration
	updates chan transport.StatusUpdate
	done    chan struct{}
	closed  bool
}

// New creates a simulated transport whose songs all last songLen. When a
// queue entry carries its own duration that wins.
func New(log *slog.Logger, songLen time.Duration) *Transport {
	if songLen <= 0 {
		songLen = 30 * time.Second
	}
	t := &Transport{
		log:     log,
		status:  transport.StatusStopped,
		songLen: songLen,
		updates: make(chan transport.StatusUpdate, 16),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Transport) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick advances the playhead and auto-advances at song boundaries.
func (t *Transport) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != transport.StatusPlaying || len(t.queue) == 0 {
		return
	}
	t.pos += tickInterval
	if t.pos < t.currentLenLocked() {
		return
	}
	if t.index < len(t.queue)-1 {
		t.index++
		t.pos = 0
		t.log.Debug("sim advanced", slog.String("song", t.queue[t.index].ID))
		t.emitLocked()
		return
	}
	t.status = transport.StatusStopped
	t.pos = 0
	t.log.Debug("sim reached end of queue")
	t.emitLocked()
}

func (t *Transport) currentLenLocked() time.Duration {
	if d := t.queue[t.index].Duration; d > 0 {
		return d
	}
	return t.songLen
}

func (t *Transport) emitLocked() {
	if t.closed {
		return
	}
	u := transport.StatusUpdate{Status: t.status, Position: t.pos}
	if len(t.queue) > 0 && t.index < len(t.queue) {
		u.SongID = t.queue[t.index].ID
	}
	select {
	case t.updates <- u:
	default:
		// Subscriber is behind; drop rather than stall playback.
	}
}

func (t *Transport) Play(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return ErrEmptyQueue
	}
	t.status = transport.StatusLoading
	t.emitLocked()
	t.status = transport.StatusPlaying
	t.emitLocked()
	return nil
}

func (t *Transport) Pause(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != transport.StatusPlaying {
		return nil
	}
	t.status = transport.StatusPaused
	t.emitLocked()
	return nil
}

func (t *Transport) SkipToNext(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return ErrEmptyQueue
	}
	if t.index < len(t.queue)-1 {
		t.index++
	}
	t.pos = 0
	t.emitLocked()
	return nil
}

func (t *Transport) SkipToPrevious(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return ErrEmptyQueue
	}
	if t.index > 0 {
		t.index--
	}
	t.pos = 0
	t.emitLocked()
	return nil
}

func (t *Transport) Seek(_ context.Context, pos time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return ErrEmptyQueue
	}
	if pos < 0 {
		pos = 0
	}
	t.pos = pos
	t.emitLocked()
	return nil
}

func (t *Transport) SetQueue(_ context.Context, songs []song.Song) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append([]song.Song(nil), songs...)
	t.index = 0
	t.pos = 0
	if len(t.queue) == 0 {
		t.status = transport.StatusStopped
	}
	return nil
}

func (t *Transport) InsertIntoQueue(_ context.Context, songs []song.Song) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, songs...)
	return nil
}

func (t *Transport) ReplaceQueue(_ context.Context, songs []song.Song, startID string, policy transport.ReplacePolicy) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append([]song.Song(nil), songs...)
	t.index = 0
	for i, s := range t.queue {
		if s.ID == startID {
			t.index = i
			break
		}
	}
	if policy == transport.RestartEntry {
		t.pos = 0
	}
	return nil
}

func (t *Transport) PlaybackTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

func (t *Transport) SongDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return 0
	}
	return t.currentLenLocked()
}

func (t *Transport) Updates() <-chan transport.StatusUpdate { return t.updates }

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	close(t.updates)
	return nil
}

// Verify Transport implements the contract at compile time.
var _ transport.Transport = (*Transport)(nil)
