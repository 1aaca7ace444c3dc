package engine

import (
	"time"

	"github.com/quentel/shufflepod/internal/shuffle"
	"github.com/quentel/shufflepod/internal/song"
)

// Intent is a user or system request the reducer folds into the engine
// state. The variant set is closed; Reduce switches over every one.
type Intent interface {
	Name() string
	isIntent()
}

// AddSong adds one song to the pool. While playback is active the song
// also joins the tail of the upcoming order without reshuffling.
type AddSong struct {
	Song song.Song
}

func (AddSong) Name() string { return "add_song" }
func (AddSong) isIntent()    {}

// AddSongsWithRebuild adds a batch of songs and reshuffles the upcoming
// tail, optionally with a different algorithm.
type AddSongsWithRebuild struct {
	Songs        []song.Song
	Algorithm    shuffle.Algorithm
	HasAlgorithm bool
}

func (AddSongsWithRebuild) Name() string { return "add_songs_rebuild" }
func (AddSongsWithRebuild) isIntent()    {}

// RemoveSong removes a song from the pool and the order.
type RemoveSong struct {
	ID string
}

func (RemoveSong) Name() string { return "remove_song" }
func (RemoveSong) isIntent()    {}

// RemoveFromQueueOnly removes a song from the order but keeps it in the
// pool for future shuffles.
type RemoveFromQueueOnly struct {
	ID string
}

func (RemoveFromQueueOnly) Name() string { return "remove_from_queue" }
func (RemoveFromQueueOnly) isIntent()    {}

// RemoveAllSongs clears the pool, the order and the history.
type RemoveAllSongs struct{}

func (RemoveAllSongs) Name() string { return "remove_all" }
func (RemoveAllSongs) isIntent()    {}

// SyncDeferredTransport flushes a pending queue rebuild to the transport
// by mirroring the current order exactly. No implicit reshuffle.
type SyncDeferredTransport struct{}

func (SyncDeferredTransport) Name() string { return "sync_deferred" }
func (SyncDeferredTransport) isIntent()    {}

// Play starts playback, rebuilding the queue first when one is pending,
// absent or stale.
type Play struct {
	Algorithm    shuffle.Algorithm
	HasAlgorithm bool
	StartAt      time.Duration // restored playback position
	HasStartAt   bool
}

func (Play) Name() string { return "play" }
func (Play) isIntent()    {}

// Pause pauses active playback.
type Pause struct{}

func (Pause) Name() string { return "pause" }
func (Pause) isIntent()    {}

// SkipToNext advances the traversal and the transport.
type SkipToNext struct{}

func (SkipToNext) Name() string { return "skip_next" }
func (SkipToNext) isIntent()    {}

// SkipToPrevious moves the traversal and the transport back.
type SkipToPrevious struct{}

func (SkipToPrevious) Name() string { return "skip_previous" }
func (SkipToPrevious) isIntent()    {}

// Reshuffle rebuilds the upcoming tail with a new algorithm. When
// playback is inactive it only invalidates the current order.
type Reshuffle struct {
	Algorithm shuffle.Algorithm
}

func (Reshuffle) Name() string { return "reshuffle" }
func (Reshuffle) isIntent()    {}

// PlaybackResolution folds a transport-observed state change into the
// engine.
type PlaybackResolution struct {
	Resolution Resolution
}

func (PlaybackResolution) Name() string { return "playback_resolution" }
func (PlaybackResolution) isIntent()    {}

// Resolution describes a transport-observed state change and how the
// engine should fold it in.
type Resolution struct {
	// State is the playback state the transport reported.
	State PlaybackState
	// SongID is the transport's current entry, when known.
	SongID string
	// UpdateCurrentSong moves the domain traversal to SongID.
	UpdateCurrentSong bool
	// MarkPlayedID records a song as advanced past (natural advancement).
	MarkPlayedID string
	// PlayedAt stamps the play for MarkPlayedID; feeds the recency- and
	// count-weighted shuffles.
	PlayedAt time.Time
	// ClearHistory forgets the played set.
	ClearHistory bool
	// SeekConsumed reports that a pending restored position was applied.
	SeekConsumed bool
	// RebuildOnStop forces a fresh queue build when a terminal stop is
	// observed while playing. This is an explicit per-resolution policy:
	// a clean end-of-queue stop keeps the built queue valid by default,
	// so a follow-up play resumes without an audible rebuild.
	RebuildOnStop bool
}
