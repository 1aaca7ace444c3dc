// Package engine contains the queue engine: the reducer-facing state
// envelope, the intent and transport-command variants, and the pure
// state-transition reducer. The reducer never performs I/O and never
// talks to the transport; it only computes the next state and the
// commands the orchestrator should execute.
package engine

import (
	"math/rand/v2"
	"time"

	"github.com/quentel/shufflepod/internal/queue"
	"github.com/quentel/shufflepod/internal/song"
)

// State is the reducer-facing envelope around the queue domain.
type State struct {
	Queue    queue.State
	Playback PlaybackState
	// Revision increases by exactly one on every state-producing
	// transition and is embedded in transport commands to detect
	// staleness.
	Revision uint64
	// QueueNeedsBuild marks the transport queue as divergent from the
	// domain order; a fresh build or exact mirror happens before the
	// next play.
	QueueNeedsBuild bool
}

// NewState returns the empty engine state.
func NewState() State {
	return State{Queue: queue.Empty(), Playback: EmptyPlayback()}
}

// Reduction is the result of folding one intent into the state.
type Reduction struct {
	Next     State
	Commands []Command
	NoOp     bool
}

// Reducer turns intents into reductions. It is deterministic for a given
// random source; the source only feeds the shuffle algorithms.
type Reducer struct {
	rng *rand.Rand
}

// NewReducer creates a reducer drawing shuffles from r.
func NewReducer(r *rand.Rand) *Reducer {
	return &Reducer{rng: r}
}

// Reduce computes the next state and transport commands for the intent.
// Every non-no-op reduction bumps Revision by exactly one.
func (rd *Reducer) Reduce(s State, in Intent) Reduction {
	switch v := in.(type) {
	case AddSong:
		return rd.reduceAddSong(s, v)
	case AddSongsWithRebuild:
		return rd.reduceAddSongs(s, v)
	case RemoveSong:
		return rd.reduceRemoveSong(s, v)
	case RemoveFromQueueOnly:
		return rd.reduceRemoveFromQueueOnly(s, v)
	case RemoveAllSongs:
		return rd.reduceRemoveAll(s)
	case SyncDeferredTransport:
		return rd.reduceSync(s)
	case Play:
		return rd.reducePlay(s, v)
	case Pause:
		return rd.reducePause(s)
	case SkipToNext:
		return rd.reduceSkipNext(s)
	case SkipToPrevious:
		return rd.reduceSkipPrevious(s)
	case Reshuffle:
		return rd.reduceReshuffle(s, v)
	case PlaybackResolution:
		return rd.reduceResolution(s, v.Resolution)
	default:
		return noop(s)
	}
}

func noop(s State) Reduction {
	return Reduction{Next: s, NoOp: true}
}

func advance(s State) State {
	s.Revision++
	return s
}

func currentID(q queue.State) string {
	if cur, ok := q.CurrentSong(); ok {
		return cur.ID
	}
	return ""
}

// reduceAddSong grows the pool. While inactive this is a pool-only
// mutation with no transport command. While active the song joins the
// tail of the upcoming order without reshuffling, the current entry is
// preserved exactly, and a non-interrupting tail insert is issued; the
// full transport sync stays deferred (QueueNeedsBuild) so no audible
// full-queue replace happens on every single add.
func (rd *Reducer) reduceAddSong(s State, in AddSong) Reduction {
	if s.Queue.InPool(in.Song.ID) {
		return noop(s)
	}
	q, err := s.Queue.AddingSong(in.Song)
	if err != nil {
		// Capacity is validated by the orchestrator before reducing.
		return noop(s)
	}

	next := advance(s)
	if !s.Playback.IsActive() || !s.Queue.HasQueue() {
		next.Queue = q
		return Reduction{Next: next}
	}

	next.Queue = q.AppendingToQueue([]song.Song{in.Song})
	next.QueueNeedsBuild = true
	cmd := InsertTailCommand{command: command{rev: next.Revision}, Songs: []song.Song{in.Song}}
	return Reduction{Next: next, Commands: []Command{cmd}}
}

// reduceAddSongs batch-adds to the pool. While active the upcoming tail
// is reshuffled, already-played entries excluded, and a single queue
// replace mirrors the result to the transport. While inactive the pool
// grows and the existing order is left for the next play to rebuild.
func (rd *Reducer) reduceAddSongs(s State, in AddSongsWithRebuild) Reduction {
	q, err := s.Queue.AddingSongs(in.Songs)
	if err != nil {
		return noop(s)
	}
	alg := s.Queue.Algorithm()
	if in.HasAlgorithm {
		alg = in.Algorithm
	}
	if q.PoolSize() == s.Queue.PoolSize() && !in.HasAlgorithm {
		return noop(s)
	}

	next := advance(s)
	if !s.Playback.IsActive() || !s.Queue.HasQueue() {
		next.Queue = q.WithAlgorithm(alg)
		if s.Queue.HasQueue() {
			next.QueueNeedsBuild = true
		}
		return Reduction{Next: next}
	}

	next.Queue = q.ReshuffledUpcoming(rd.rng, alg)
	next.QueueNeedsBuild = false
	cmd := ReplaceQueueCommand{
		command: command{rev: next.Revision},
		Songs:   next.Queue.Order(),
		StartID: currentID(next.Queue),
	}
	return Reduction{Next: next, Commands: []Command{cmd}}
}

// reduceRemoveSong drops a song from both pool and order. Removing the
// current song never issues a skip: the transport is left to advance
// naturally while the deferred sync flag covers the divergence.
func (rd *Reducer) reduceRemoveSong(s State, in RemoveSong) Reduction {
	if !s.Queue.InPool(in.ID) {
		return noop(s)
	}
	removedCurrent := currentID(s.Queue) == in.ID

	next := advance(s)
	next.Queue = s.Queue.RemovingSong(in.ID)

	if !s.Playback.IsActive() || !s.Queue.HasQueue() {
		return Reduction{Next: next}
	}
	if removedCurrent || !next.Queue.HasQueue() {
		next.QueueNeedsBuild = true
		return Reduction{Next: next}
	}
	cmd := ReplaceQueueCommand{
		command: command{rev: next.Revision},
		Songs:   next.Queue.Order(),
		StartID: currentID(next.Queue),
	}
	return Reduction{Next: next, Commands: []Command{cmd}}
}

// reduceRemoveFromQueueOnly drops a song from the order but not the
// pool. The order is knowingly left divergent from pool membership until
// the next reconciliation.
func (rd *Reducer) reduceRemoveFromQueueOnly(s State, in RemoveFromQueueOnly) Reduction {
	inOrder := false
	for _, e := range s.Queue.Order() {
		if e.ID == in.ID {
			inOrder = true
			break
		}
	}
	if !inOrder {
		return noop(s)
	}
	removedCurrent := currentID(s.Queue) == in.ID

	next := advance(s)
	next.Queue = s.Queue.RemovingFromQueueOnly(in.ID)

	if !s.Playback.IsActive() {
		return Reduction{Next: next}
	}
	if removedCurrent || !next.Queue.HasQueue() {
		next.QueueNeedsBuild = true
		return Reduction{Next: next}
	}
	cmd := ReplaceQueueCommand{
		command: command{rev: next.Revision},
		Songs:   next.Queue.Order(),
		StartID: currentID(next.Queue),
	}
	return Reduction{Next: next, Commands: []Command{cmd}}
}

// reduceRemoveAll resets the engine to empty. The empty state needs no
// pending build.
func (rd *Reducer) reduceRemoveAll(s State) Reduction {
	if s.Queue.PoolSize() == 0 && !s.Queue.HasQueue() {
		return noop(s)
	}
	next := advance(s)
	next.Queue = queue.Empty()
	next.QueueNeedsBuild = false
	var cmds []Command
	if s.Playback.IsActive() {
		cmds = append(cmds, SetQueueCommand{command: command{rev: next.Revision}})
	}
	next.Playback = EmptyPlayback()
	return Reduction{Next: next, Commands: cmds}
}

// reduceSync flushes a deferred rebuild: the transport queue is made to
// mirror the current domain order exactly, with no implicit reshuffle.
// No-op when playback is inactive, no queue exists or nothing is pending.
func (rd *Reducer) reduceSync(s State) Reduction {
	if !s.Playback.IsActive() || !s.Queue.HasQueue() || !s.QueueNeedsBuild {
		return noop(s)
	}
	next := advance(s)
	next.QueueNeedsBuild = false
	cmd := ReplaceQueueCommand{
		command: command{rev: next.Revision},
		Songs:   next.Queue.Order(),
		StartID: currentID(next.Queue),
	}
	return Reduction{Next: next, Commands: []Command{cmd}}
}

// reducePlay starts playback. A pending build, a missing order or a
// stale order triggers a rebuild first: a continuity-preserving
// reconciliation while playback is active, a fresh shuffle otherwise.
func (rd *Reducer) reducePlay(s State, in Play) Reduction {
	if s.Queue.PoolSize() == 0 {
		return noop(s)
	}
	alg := s.Queue.Algorithm()
	if in.HasAlgorithm {
		alg = in.Algorithm
	}

	next := advance(s)
	var cmds []Command

	needsBuild := s.QueueNeedsBuild || !s.Queue.HasQueue() || s.Queue.IsStale()
	switch {
	case needsBuild && s.Playback.IsActive() && s.Queue.HasQueue():
		q := s.Queue.Reconciled(currentID(s.Queue))
		if in.HasAlgorithm && in.Algorithm != s.Queue.Algorithm() {
			q = q.ReshuffledUpcoming(rd.rng, alg)
		}
		next.Queue = q
		next.QueueNeedsBuild = false
		cmds = append(cmds, ReplaceQueueCommand{
			command: command{rev: next.Revision},
			Songs:   q.Order(),
			StartID: currentID(q),
		})
	case needsBuild:
		q := s.Queue.Shuffled(rd.rng, alg)
		next.Queue = q
		next.QueueNeedsBuild = false
		cmds = append(cmds, SetQueueCommand{
			command: command{rev: next.Revision},
			Songs:   q.Order(),
		})
	}

	play := PlayCommand{command: command{rev: next.Revision}}
	if in.HasStartAt {
		play.StartAt = in.StartAt
		play.HasStartAt = true
	}
	cmds = append(cmds, play)
	if in.HasStartAt {
		cmds = append(cmds, SeekCommand{command: command{rev: next.Revision}, Position: in.StartAt})
	}

	if cur, ok := next.Queue.CurrentSong(); ok {
		next.Playback = LoadingPlayback(cur)
	}
	return Reduction{Next: next, Commands: cmds}
}

// reducePause pauses audible playback.
func (rd *Reducer) reducePause(s State) Reduction {
	if !s.Playback.IsPlaying() {
		return noop(s)
	}
	next := advance(s)
	if cur, ok := s.Playback.Song(); ok {
		next.Playback = PausedPlayback(cur)
	} else {
		next.Playback = StoppedPlayback()
	}
	cmd := PauseCommand{command: command{rev: next.Revision}}
	return Reduction{Next: next, Commands: []Command{cmd}}
}

// reduceSkipNext advances the traversal. A pending deferred build is
// flushed as part of the same transition so the transport skips within
// the queue the domain actually holds.
func (rd *Reducer) reduceSkipNext(s State) Reduction {
	q, ok := s.Queue.AdvancedToNext()
	if !ok {
		return noop(s)
	}
	next := advance(s)
	next.Queue = q

	if !s.Playback.IsActive() {
		return Reduction{Next: next}
	}

	var cmds []Command
	if s.QueueNeedsBuild {
		next.QueueNeedsBuild = false
		cmds = append(cmds,
			ReplaceQueueCommand{
				command: command{rev: next.Revision},
				Songs:   q.Order(),
				StartID: currentID(q),
			},
			PlayCommand{command: command{rev: next.Revision}},
		)
	} else {
		cmds = append(cmds, SkipNextCommand{command: command{rev: next.Revision}})
	}
	if cur, ok := q.CurrentSong(); ok {
		next.Playback = LoadingPlayback(cur)
	}
	return Reduction{Next: next, Commands: cmds}
}

// reduceSkipPrevious moves the traversal back.
func (rd *Reducer) reduceSkipPrevious(s State) Reduction {
	q, ok := s.Queue.RevertedToPrevious()
	if !ok {
		return noop(s)
	}
	next := advance(s)
	next.Queue = q

	if !s.Playback.IsActive() {
		return Reduction{Next: next}
	}

	var cmds []Command
	if s.QueueNeedsBuild {
		next.QueueNeedsBuild = false
		cmds = append(cmds,
			ReplaceQueueCommand{
				command: command{rev: next.Revision},
				Songs:   q.Order(),
				StartID: currentID(q),
			},
			PlayCommand{command: command{rev: next.Revision}},
		)
	} else {
		cmds = append(cmds, SkipPreviousCommand{command: command{rev: next.Revision}})
	}
	if cur, ok := q.CurrentSong(); ok {
		next.Playback = LoadingPlayback(cur)
	}
	return Reduction{Next: next, Commands: cmds}
}

// reduceReshuffle rebuilds the upcoming tail with a new algorithm. While
// inactive it only invalidates the order; nothing touches the transport
// and playback does not start.
func (rd *Reducer) reduceReshuffle(s State, in Reshuffle) Reduction {
	if s.Queue.PoolSize() == 0 {
		return noop(s)
	}
	next := advance(s)

	if !s.Playback.IsActive() || !s.Queue.HasQueue() {
		next.Queue = s.Queue.WithAlgorithm(in.Algorithm)
		next.QueueNeedsBuild = true
		return Reduction{Next: next}
	}

	next.Queue = s.Queue.ReshuffledUpcoming(rd.rng, in.Algorithm)
	next.QueueNeedsBuild = false
	cmd := ReplaceQueueCommand{
		command: command{rev: next.Revision},
		Songs:   next.Queue.Order(),
		StartID: currentID(next.Queue),
	}
	return Reduction{Next: next, Commands: []Command{cmd}}
}

// reduceResolution folds a transport-observed state change into the
// engine. Resolutions never produce transport commands.
func (rd *Reducer) reduceResolution(s State, res Resolution) Reduction {
	next := s
	changed := false

	q := s.Queue
	if res.UpdateCurrentSong && res.SongID != "" {
		if moved, ok := q.WithCurrentID(res.SongID); ok {
			q = moved
			changed = changed || moved.CurrentIndex() != s.Queue.CurrentIndex()
		}
	}
	if res.MarkPlayedID != "" {
		marked := q.MarkingPlayed(res.MarkPlayedID)
		if marked.PlayedCount() != q.PlayedCount() {
			changed = true
			playedAt := res.PlayedAt
			if playedAt.IsZero() {
				playedAt = time.Now()
			}
			marked = marked.BumpingPlayCount(res.MarkPlayedID, playedAt)
		}
		q = marked
	}
	if res.ClearHistory && q.PlayedCount() > 0 {
		q = q.ClearingHistory()
		changed = true
	}
	next.Queue = q

	if !next.Playback.Equal(res.State) {
		// A transient stop observed while the queue is still being
		// established is not a real transition; keep loading.
		transientStop := res.State.Kind() == PlaybackStopped && s.Playback.Kind() == PlaybackLoading
		if !transientStop {
			next.Playback = res.State
			changed = true
		}
	}

	switch res.State.Kind() {
	case PlaybackError:
		// An explicit transport error always forces a fresh build.
		if !next.QueueNeedsBuild {
			next.QueueNeedsBuild = true
			changed = true
		}
	case PlaybackStopped:
		if s.Playback.Kind() == PlaybackPlaying && res.RebuildOnStop && !next.QueueNeedsBuild {
			next.QueueNeedsBuild = true
			changed = true
		}
	}

	if !changed {
		return noop(s)
	}
	return Reduction{Next: advance(next)}
}
