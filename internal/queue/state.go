// Package queue holds the immutable queue data model: the song pool, the
// current play order, and the traversal history. Every mutator returns a
// new value; a State is never modified in place, so snapshots taken for
// rollback stay valid.
package queue

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/quentel/shufflepod/internal/shuffle"
	"github.com/quentel/shufflepod/internal/song"
)

// MaxPoolSize is the hard cap on the song pool. Operations that would
// exceed it fail outright rather than truncating.
const MaxPoolSize = 120

// ErrPoolFull is returned when an add would push the pool past MaxPoolSize.
var ErrPoolFull = errors.New("song pool is full")

// State is an immutable snapshot of the queue domain.
// The zero value is the empty state.
type State struct {
	pool      []song.Song // unique by ID, insertion order
	order     []song.Song // current play order, no duplicate IDs when synced
	played    map[string]struct{}
	current   int
	algorithm shuffle.Algorithm
}

// Empty returns the empty queue state.
func Empty() State {
	return State{}
}

// PoolSize returns the number of songs in the pool.
func (s State) PoolSize() int { return len(s.pool) }

// PoolSongs returns a copy of the pool in insertion order.
func (s State) PoolSongs() []song.Song {
	out := make([]song.Song, len(s.pool))
	copy(out, s.pool)
	return out
}

// InPool reports whether a song with the given ID is in the pool.
func (s State) InPool(id string) bool {
	return s.poolIndex(id) >= 0
}

// PoolSong returns the pool entry with the given ID.
func (s State) PoolSong(id string) (song.Song, bool) {
	if i := s.poolIndex(id); i >= 0 {
		return s.pool[i], true
	}
	return song.Song{}, false
}

// Order returns a copy of the current play order.
func (s State) Order() []song.Song {
	out := make([]song.Song, len(s.order))
	copy(out, s.order)
	return out
}

// QueueLen returns the number of entries in the play order.
func (s State) QueueLen() int { return len(s.order) }

// HasQueue reports whether a play order has been built.
func (s State) HasQueue() bool { return len(s.order) > 0 }

// PlayedIDs returns a copy of the set of IDs already advanced past.
func (s State) PlayedIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(s.played))
	for id := range s.played {
		out[id] = struct{}{}
	}
	return out
}

// PlayedCount returns the number of songs advanced past.
func (s State) PlayedCount() int { return len(s.played) }

// WasPlayed reports whether the song was advanced past in this traversal.
func (s State) WasPlayed(id string) bool {
	_, ok := s.played[id]
	return ok
}

// CurrentIndex returns the index of the current song in the play order.
// Meaningless when the queue is empty.
func (s State) CurrentIndex() int { return s.current }

// CurrentSong returns the song at the current index.
func (s State) CurrentSong() (song.Song, bool) {
	if len(s.order) == 0 || s.current < 0 || s.current >= len(s.order) {
		return song.Song{}, false
	}
	return s.order[s.current], true
}

// HasNext reports whether the traversal can advance.
func (s State) HasNext() bool {
	return len(s.order) > 0 && s.current < len(s.order)-1
}

// HasPrevious reports whether the traversal can move back.
func (s State) HasPrevious() bool {
	return len(s.order) > 0 && s.current > 0
}

// Algorithm returns the shuffle algorithm last used to build the order.
func (s State) Algorithm() shuffle.Algorithm { return s.algorithm }

// IsStale reports whether the play order has diverged from the pool:
// duplicate IDs in the order, or order membership no longer matching pool
// membership while a queue exists. Staleness is always recomputed, never
// stored.
func (s State) IsStale() bool {
	if len(s.order) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(s.order))
	for _, e := range s.order {
		if _, dup := seen[e.ID]; dup {
			return true
		}
		seen[e.ID] = struct{}{}
	}
	if len(seen) != len(s.pool) {
		return true
	}
	for _, p := range s.pool {
		if _, ok := seen[p.ID]; !ok {
			return true
		}
	}
	return false
}

// AddingSong returns a state with the song added to the pool. Adding an
// ID already in the pool is a no-op that returns the receiver unchanged.
// Fails with ErrPoolFull at capacity. The play order is not touched.
func (s State) AddingSong(sg song.Song) (State, error) {
	if s.InPool(sg.ID) {
		return s, nil
	}
	if len(s.pool) >= MaxPoolSize {
		return s, ErrPoolFull
	}
	next := s.clone()
	next.pool = append(next.pool, sg)
	return next, nil
}

// AddingSongs adds all songs to the pool, skipping IDs already present.
// Fails with ErrPoolFull, without partial application, if the result
// would exceed capacity.
func (s State) AddingSongs(songs []song.Song) (State, error) {
	fresh := make([]song.Song, 0, len(songs))
	seen := make(map[string]struct{}, len(songs))
	for _, sg := range songs {
		if s.InPool(sg.ID) {
			continue
		}
		if _, dup := seen[sg.ID]; dup {
			continue
		}
		seen[sg.ID] = struct{}{}
		fresh = append(fresh, sg)
	}
	if len(s.pool)+len(fresh) > MaxPoolSize {
		return s, ErrPoolFull
	}
	if len(fresh) == 0 {
		return s, nil
	}
	next := s.clone()
	next.pool = append(next.pool, fresh...)
	return next, nil
}

// AppendingToQueue appends pool songs to the tail of the play order
// without reshuffling anything already queued. The current index is
// preserved exactly. IDs already in the order are skipped.
func (s State) AppendingToQueue(songs []song.Song) State {
	next := s.clone()
	inOrder := make(map[string]struct{}, len(next.order))
	for _, e := range next.order {
		inOrder[e.ID] = struct{}{}
	}
	for _, sg := range songs {
		if _, ok := inOrder[sg.ID]; ok {
			continue
		}
		inOrder[sg.ID] = struct{}{}
		next.order = append(next.order, sg)
	}
	return next
}

// Shuffled rebuilds the play order from the full pool with the given
// algorithm, resets the current index to 0 and clears the history.
func (s State) Shuffled(r *rand.Rand, alg shuffle.Algorithm) State {
	next := s.clone()
	next.order = shuffle.Shuffle(r, next.pool, 0, alg)
	next.current = 0
	next.played = nil
	next.algorithm = alg
	return next
}

// ReshuffledUpcoming rebuilds only the not-yet-played tail of the order
// with the given algorithm. The current song keeps its position and every
// played entry stays ordered before it. Pool songs missing from the order
// are folded into the new tail.
func (s State) ReshuffledUpcoming(r *rand.Rand, alg shuffle.Algorithm) State {
	if len(s.order) == 0 {
		return s.Shuffled(r, alg)
	}
	next := s.clone()
	if next.current >= len(next.order) {
		next.current = len(next.order) - 1
	}
	currentID := ""
	if cur, ok := next.CurrentSong(); ok {
		currentID = cur.ID
	}

	head := make([]song.Song, 0, next.current+1)
	for _, e := range next.order[:next.current] {
		head = append(head, e)
	}
	if cur, ok := next.CurrentSong(); ok {
		head = append(head, cur)
	}

	inHead := make(map[string]struct{}, len(head))
	for _, e := range head {
		inHead[e.ID] = struct{}{}
	}
	upcoming := make([]song.Song, 0, len(next.pool))
	for _, p := range next.pool {
		if _, ok := inHead[p.ID]; ok {
			continue
		}
		if _, wasPlayed := next.played[p.ID]; wasPlayed && p.ID != currentID {
			// Played songs that fell out of the head keep their history
			// but are not re-queued ahead.
			continue
		}
		upcoming = append(upcoming, p)
	}

	next.order = append(head, shuffle.Shuffle(r, upcoming, 0, alg)...)
	next.algorithm = alg
	return next
}

// AdvancedToNext moves the traversal forward, marking the song advanced
// past as played. Returns false when there is no next song.
func (s State) AdvancedToNext() (State, bool) {
	if !s.HasNext() {
		return s, false
	}
	next := s.clone()
	if next.played == nil {
		next.played = make(map[string]struct{})
	}
	next.played[next.order[next.current].ID] = struct{}{}
	next.current++
	return next, true
}

// RevertedToPrevious moves the traversal back, removing the new current
// song from the played set. Returns false at the head of the order.
func (s State) RevertedToPrevious() (State, bool) {
	if !s.HasPrevious() {
		return s, false
	}
	next := s.clone()
	next.current--
	delete(next.played, next.order[next.current].ID)
	return next, true
}

// RemovingSong removes the song from the pool, the play order and the
// history. When the removed entry precedes the current song the index
// shifts with it; removing the current song leaves the index pointing at
// the next entry (clamped at the tail).
func (s State) RemovingSong(id string) State {
	next := s.clone()
	if i := next.poolIndex(id); i >= 0 {
		next.pool = append(next.pool[:i], next.pool[i+1:]...)
	}
	next.removeFromOrder(id)
	delete(next.played, id)
	return next
}

// RemovingFromQueueOnly removes the song from the play order while
// keeping it in the pool for future shuffles.
func (s State) RemovingFromQueueOnly(id string) State {
	next := s.clone()
	next.removeFromOrder(id)
	delete(next.played, id)
	return next
}

// WithCurrentID moves the traversal to the order entry with the given
// ID without touching the history. Returns false when the ID is not in
// the order.
func (s State) WithCurrentID(id string) (State, bool) {
	for i, e := range s.order {
		if e.ID == id {
			next := s.clone()
			next.current = i
			delete(next.played, id)
			return next, true
		}
	}
	return s, false
}

// MarkingPlayed records the song as advanced past. No-op when the ID is
// not in the order or is the current song.
func (s State) MarkingPlayed(id string) State {
	if cur, ok := s.CurrentSong(); ok && cur.ID == id {
		return s
	}
	found := false
	for _, e := range s.order {
		if e.ID == id {
			found = true
			break
		}
	}
	if !found {
		return s
	}
	next := s.clone()
	if next.played == nil {
		next.played = make(map[string]struct{})
	}
	next.played[id] = struct{}{}
	return next
}

// BumpingPlayCount increments the song's play count and records the play
// time in both the pool and the order, so recency- and count-weighted
// shuffles see it. No-op when the ID is unknown.
func (s State) BumpingPlayCount(id string, at time.Time) State {
	if !s.InPool(id) {
		return s
	}
	next := s.clone()
	if i := next.poolIndex(id); i >= 0 {
		next.pool[i].PlayCount++
		next.pool[i].LastPlayed = at
	}
	for i := range next.order {
		if next.order[i].ID == id {
			next.order[i].PlayCount++
			next.order[i].LastPlayed = at
			break
		}
	}
	return next
}

// ClearingHistory forgets which songs were advanced past.
func (s State) ClearingHistory() State {
	next := s.clone()
	next.played = nil
	return next
}

// WithAlgorithm records a new algorithm without rebuilding the order.
func (s State) WithAlgorithm(alg shuffle.Algorithm) State {
	next := s.clone()
	next.algorithm = alg
	return next
}

// Restored rebuilds the order from persisted IDs. IDs absent from the
// pool are filtered out, order preserved. Returns false when the pool is
// empty or no persisted ID resolves.
func (s State) Restored(orderIDs []string, currentID string, playedIDs []string) (State, bool) {
	if len(s.pool) == 0 {
		return s, false
	}
	next := s.clone()
	next.order = next.order[:0]
	seen := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		sg, ok := next.PoolSong(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		next.order = append(next.order, sg)
	}
	if len(next.order) == 0 {
		return s, false
	}

	next.current = 0
	for i, e := range next.order {
		if e.ID == currentID {
			next.current = i
			break
		}
	}

	next.played = make(map[string]struct{}, len(playedIDs))
	currentInOrder := next.order[next.current].ID
	for _, id := range playedIDs {
		if _, inOrder := seen[id]; !inOrder || id == currentInOrder {
			continue
		}
		next.played[id] = struct{}{}
	}
	return next, true
}

// Reconciled repairs a stale order so that it exactly matches pool
// membership: duplicates dropped, missing pool songs restored. Played
// songs stay ordered before the current song; the current song is
// preserved where possible, preferring preferredCurrentID when it is in
// the pool. Applying Reconciled twice yields the same result as once, and
// the result is never stale.
func (s State) Reconciled(preferredCurrentID string) State {
	next := s.clone()
	if len(next.pool) == 0 {
		next.order = nil
		next.played = nil
		next.current = 0
		return next
	}

	// Deduplicated order entries still in the pool, then pool songs the
	// order was missing, preserving relative positions throughout.
	merged := make([]song.Song, 0, len(next.pool))
	seen := make(map[string]struct{}, len(next.pool))
	for _, e := range next.order {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		if sg, ok := next.PoolSong(e.ID); ok {
			seen[e.ID] = struct{}{}
			merged = append(merged, sg)
		}
	}
	for _, p := range next.pool {
		if _, ok := seen[p.ID]; !ok {
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}

	currentID := preferredCurrentID
	if _, ok := next.PoolSong(currentID); !ok {
		currentID = ""
	}
	if currentID == "" {
		if cur, ok := next.CurrentSong(); ok && next.InPool(cur.ID) {
			currentID = cur.ID
		} else {
			currentID = merged[0].ID
		}
	}

	playedHead := make([]song.Song, 0, len(next.played))
	rest := make([]song.Song, 0, len(merged))
	var currentSong song.Song
	for _, e := range merged {
		switch {
		case e.ID == currentID:
			currentSong = e
		case next.WasPlayed(e.ID):
			playedHead = append(playedHead, e)
		default:
			rest = append(rest, e)
		}
	}

	next.order = make([]song.Song, 0, len(merged))
	next.order = append(next.order, playedHead...)
	next.order = append(next.order, currentSong)
	next.order = append(next.order, rest...)
	next.current = len(playedHead)

	next.played = make(map[string]struct{}, len(playedHead))
	for _, e := range playedHead {
		next.played[e.ID] = struct{}{}
	}
	return next
}

func (s State) poolIndex(id string) int {
	for i, p := range s.pool {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// removeFromOrder mutates the (already cloned) receiver fields.
func (s *State) removeFromOrder(id string) {
	for i, e := range s.order {
		if e.ID != id {
			continue
		}
		s.order = append(s.order[:i], s.order[i+1:]...)
		if s.current > i {
			s.current--
		} else if s.current >= len(s.order) && s.current > 0 {
			s.current = len(s.order) - 1
		}
		return
	}
}

// clone copies the state so mutators never alias the receiver's slices.
func (s State) clone() State {
	next := State{
		current:   s.current,
		algorithm: s.algorithm,
	}
	if len(s.pool) > 0 {
		next.pool = make([]song.Song, len(s.pool))
		copy(next.pool, s.pool)
	}
	if len(s.order) > 0 {
		next.order = make([]song.Song, len(s.order))
		copy(next.order, s.order)
	}
	if len(s.played) > 0 {
		next.played = make(map[string]struct{}, len(s.played))
		for id := range s.played {
			next.played[id] = struct{}{}
		}
	}
	return next
}
