// Package transport defines the playback backend contract the queue
// engine drives. Implementations render audio elsewhere; the core only
// ever issues these calls and consumes the status stream. Every call is
// asynchronous from the backend's point of view and may fail
// independently of prior calls.
package transport

import (
	"context"
	"time"

	"github.com/quentel/shufflepod/internal/song"
)

// Status is the playback state a backend reports.
type Status int

const (
	StatusStopped Status = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusErrored
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ReplacePolicy selects how ReplaceQueue treats the preserved entry.
type ReplacePolicy int

const (
	// KeepPosition keeps the current playback position within the
	// preserved entry.
	KeepPosition ReplacePolicy = iota
	// RestartEntry restarts the preserved entry from the beginning.
	RestartEntry
)

// StatusUpdate is one snapshot from the backend's state stream.
type StatusUpdate struct {
	Status   Status
	SongID   string // backend's current entry, empty when unknown
	Position time.Duration
	Err      error // set when Status is StatusErrored
}

// Transport is the playback backend the orchestrator drives.
type Transport interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	Seek(ctx context.Context, pos time.Duration) error

	// SetQueue replaces the backend queue wholesale; playback starts
	// from the head on the next Play.
	SetQueue(ctx context.Context, songs []song.Song) error
	// InsertIntoQueue appends songs to the backend queue tail without
	// interrupting the current entry.
	InsertIntoQueue(ctx context.Context, songs []song.Song) error
	// ReplaceQueue replaces the backend queue while preserving the entry
	// with startID as current.
	ReplaceQueue(ctx context.Context, songs []song.Song, startID string, policy ReplacePolicy) error

	PlaybackTime() time.Duration
	SongDuration() time.Duration

	// Updates returns the backend's status stream. The channel closes
	// when the transport shuts down.
	Updates() <-chan StatusUpdate

	Close() error
}
