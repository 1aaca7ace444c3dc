package engine

import (
	"fmt"

	"github.com/quentel/shufflepod/internal/song"
)

// PlaybackKind enumerates the playback states reported by the transport.
type PlaybackKind int

const (
	PlaybackEmpty PlaybackKind = iota
	PlaybackStopped
	PlaybackLoading
	PlaybackPlaying
	PlaybackPaused
	PlaybackError
)

// String returns the kind name.
func (k PlaybackKind) String() string {
	switch k {
	case PlaybackEmpty:
		return "empty"
	case PlaybackStopped:
		return "stopped"
	case PlaybackLoading:
		return "loading"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackError:
		return "error"
	default:
		return "unknown"
	}
}

// PlaybackState is the external-facing playback state: a closed variant
// set over empty, stopped, loading(song), playing(song), paused(song) and
// error(err). Construct values through the Playback* helpers.
type PlaybackState struct {
	kind    PlaybackKind
	song    song.Song
	hasSong bool
	err     error
}

// EmptyPlayback is the zero playback state.
func EmptyPlayback() PlaybackState { return PlaybackState{kind: PlaybackEmpty} }

// StoppedPlayback reports a terminated playback session.
func StoppedPlayback() PlaybackState { return PlaybackState{kind: PlaybackStopped} }

// LoadingPlayback reports a song being established on the transport.
func LoadingPlayback(s song.Song) PlaybackState {
	return PlaybackState{kind: PlaybackLoading, song: s, hasSong: true}
}

// PlayingPlayback reports active playback of a song.
func PlayingPlayback(s song.Song) PlaybackState {
	return PlaybackState{kind: PlaybackPlaying, song: s, hasSong: true}
}

// PausedPlayback reports paused playback of a song.
func PausedPlayback(s song.Song) PlaybackState {
	return PlaybackState{kind: PlaybackPaused, song: s, hasSong: true}
}

// ErrorPlayback reports a transport failure.
func ErrorPlayback(err error) PlaybackState {
	return PlaybackState{kind: PlaybackError, err: err}
}

// Kind returns the variant tag.
func (p PlaybackState) Kind() PlaybackKind { return p.kind }

// Song returns the song the state refers to, when it carries one.
func (p PlaybackState) Song() (song.Song, bool) { return p.song, p.hasSong }

// Err returns the error for PlaybackError states, nil otherwise.
func (p PlaybackState) Err() error { return p.err }

// IsActive reports whether playback is loading, playing or paused.
func (p PlaybackState) IsActive() bool {
	return p.kind == PlaybackLoading || p.kind == PlaybackPlaying || p.kind == PlaybackPaused
}

// IsPlaying reports whether audio is audibly playing.
func (p PlaybackState) IsPlaying() bool { return p.kind == PlaybackPlaying }

// Equal reports whether two states carry the same variant and song.
func (p PlaybackState) Equal(o PlaybackState) bool {
	if p.kind != o.kind || p.hasSong != o.hasSong {
		return false
	}
	if p.hasSong && p.song.ID != o.song.ID {
		return false
	}
	if (p.err == nil) != (o.err == nil) {
		return false
	}
	return true
}

// String renders the state for logs and diagnostics.
func (p PlaybackState) String() string {
	if p.hasSong {
		return fmt.Sprintf("%s(%s)", p.kind, p.song.ID)
	}
	if p.err != nil {
		return fmt.Sprintf("%s(%v)", p.kind, p.err)
	}
	return p.kind.String()
}
