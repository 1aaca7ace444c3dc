package queue

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentel/shufflepod/internal/shuffle"
	"github.com/quentel/shufflepod/internal/song"
)

func testSong(id string) song.Song {
	return song.Song{ID: id, Title: "title " + id, Artist: "artist " + id}
}

func testSongs(n int) []song.Song {
	out := make([]song.Song, n)
	for i := range n {
		out[i] = testSong(fmt.Sprintf("s%03d", i))
	}
	return out
}

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func orderIDs(s State) []string {
	return song.IDs(s.Order())
}

func TestAddingSong(t *testing.T) {
	st, err := Empty().AddingSong(testSong("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, st.PoolSize())
	assert.True(t, st.InPool("a"))

	// Adding the same ID again is a no-op, not an error.
	again, err := st.AddingSong(testSong("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, again.PoolSize())
}

func TestAddingSongDoesNotMutateReceiver(t *testing.T) {
	base, err := Empty().AddingSong(testSong("a"))
	require.NoError(t, err)

	_, err = base.AddingSong(testSong("b"))
	require.NoError(t, err)
	assert.Equal(t, 1, base.PoolSize())
	assert.False(t, base.InPool("b"))
}

func TestAddingSongCapacity(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(MaxPoolSize))
	require.NoError(t, err)
	assert.Equal(t, MaxPoolSize, st.PoolSize())

	_, err = st.AddingSong(testSong("overflow"))
	assert.ErrorIs(t, err, ErrPoolFull)

	// Re-adding a member at capacity still succeeds as a no-op.
	same, err := st.AddingSong(testSong("s000"))
	require.NoError(t, err)
	assert.Equal(t, MaxPoolSize, same.PoolSize())
}

func TestAddingSongsAllOrNothing(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(MaxPoolSize - 1))
	require.NoError(t, err)

	batch := []song.Song{testSong("x"), testSong("y")}
	after, err := st.AddingSongs(batch)
	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, MaxPoolSize-1, after.PoolSize())
	assert.False(t, after.InPool("x"))
	assert.False(t, after.InPool("y"))
}

func TestAddingSongsSkipsDuplicates(t *testing.T) {
	st, err := Empty().AddingSongs([]song.Song{testSong("a"), testSong("a"), testSong("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, st.PoolSize())
}

func TestShuffledCoversPoolExactlyOnce(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(20))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)

	assert.Equal(t, 20, st.QueueLen())
	assert.Equal(t, 0, st.CurrentIndex())
	assert.Equal(t, 0, st.PlayedCount())
	assert.False(t, st.IsStale())
	seen := map[string]struct{}{}
	for _, id := range orderIDs(st) {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestAdvanceAndRevert(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(3))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	first, _ := st.CurrentSong()

	st, ok := st.AdvancedToNext()
	require.True(t, ok)
	assert.Equal(t, 1, st.CurrentIndex())
	assert.True(t, st.WasPlayed(first.ID))

	st, ok = st.RevertedToPrevious()
	require.True(t, ok)
	assert.Equal(t, 0, st.CurrentIndex())
	assert.False(t, st.WasPlayed(first.ID))

	_, ok = st.RevertedToPrevious()
	assert.False(t, ok)
}

func TestAdvanceAtTail(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(2))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)

	st, ok := st.AdvancedToNext()
	require.True(t, ok)
	_, ok = st.AdvancedToNext()
	assert.False(t, ok)
	assert.Equal(t, 1, st.CurrentIndex())
}

func TestRemovingSongShiftsIndex(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(5))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	st, _ = st.AdvancedToNext()
	st, _ = st.AdvancedToNext() // current = 2
	order := st.Order()

	// Removing an entry before the current one shifts the index back.
	removed := st.RemovingSong(order[0].ID)
	assert.Equal(t, 1, removed.CurrentIndex())
	cur, ok := removed.CurrentSong()
	require.True(t, ok)
	assert.Equal(t, order[2].ID, cur.ID)
	assert.False(t, removed.InPool(order[0].ID))
	assert.False(t, removed.WasPlayed(order[0].ID))

	// Removing the current entry points the index at the next song.
	removed = st.RemovingSong(order[2].ID)
	assert.Equal(t, 2, removed.CurrentIndex())
	cur, ok = removed.CurrentSong()
	require.True(t, ok)
	assert.Equal(t, order[3].ID, cur.ID)
}

func TestRemovingLastEntryClampsIndex(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(2))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	st, _ = st.AdvancedToNext()
	order := st.Order()

	removed := st.RemovingSong(order[1].ID)
	assert.Equal(t, 0, removed.CurrentIndex())
	cur, ok := removed.CurrentSong()
	require.True(t, ok)
	assert.Equal(t, order[0].ID, cur.ID)
}

func TestRemovingFromQueueOnlyKeepsPool(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(3))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	victim := st.Order()[2]

	removed := st.RemovingFromQueueOnly(victim.ID)
	assert.Equal(t, 2, removed.QueueLen())
	assert.True(t, removed.InPool(victim.ID))
	assert.True(t, removed.IsStale())
}

func TestReshuffledUpcomingPreservesHead(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(10))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	st, _ = st.AdvancedToNext()
	st, _ = st.AdvancedToNext()
	before := st.Order()
	cur, _ := st.CurrentSong()

	re := st.ReshuffledUpcoming(testRand(), shuffle.NoRepeat)
	after := re.Order()
	require.Equal(t, len(before), len(after))
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[1].ID, after[1].ID)
	assert.Equal(t, cur.ID, after[2].ID)
	assert.Equal(t, 2, re.CurrentIndex())
	assert.False(t, re.IsStale())
}

func TestReshuffledUpcomingFoldsInMissingPoolSongs(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(5))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)

	st, err = st.AddingSong(testSong("late"))
	require.NoError(t, err)
	assert.True(t, st.IsStale())

	re := st.ReshuffledUpcoming(testRand(), shuffle.NoRepeat)
	assert.Equal(t, 6, re.QueueLen())
	assert.False(t, re.IsStale())
}

func TestAppendingToQueue(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(3))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	st, _ = st.AdvancedToNext()

	st, err = st.AddingSong(testSong("tail"))
	require.NoError(t, err)
	appended := st.AppendingToQueue([]song.Song{testSong("tail")})
	assert.Equal(t, 4, appended.QueueLen())
	assert.Equal(t, 1, appended.CurrentIndex())
	assert.Equal(t, "tail", appended.Order()[3].ID)

	// Appending an entry already in the order is skipped.
	same := appended.AppendingToQueue([]song.Song{testSong("tail")})
	assert.Equal(t, 4, same.QueueLen())
}

func TestIsStale(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(4))
	require.NoError(t, err)
	assert.False(t, st.IsStale(), "no order built yet")

	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	assert.False(t, st.IsStale())

	grown, err := st.AddingSong(testSong("extra"))
	require.NoError(t, err)
	assert.True(t, grown.IsStale(), "pool outgrew order")
}

func TestBumpingPlayCount(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(3))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	id := st.Order()[0].ID
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	bumped := st.BumpingPlayCount(id, at)
	sg, ok := bumped.PoolSong(id)
	require.True(t, ok)
	assert.Equal(t, 1, sg.PlayCount)
	assert.Equal(t, at, sg.LastPlayed)
	assert.Equal(t, 1, bumped.Order()[0].PlayCount)

	// Unknown IDs leave the state untouched.
	same := st.BumpingPlayCount("nope", at)
	sg, _ = same.PoolSong(id)
	assert.Equal(t, 0, sg.PlayCount)
}

func TestRestored(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(5))
	require.NoError(t, err)

	restored, ok := st.Restored(
		[]string{"s003", "gone", "s001", "s004", "s001"},
		"s001",
		[]string{"s003", "gone", "s001"},
	)
	require.True(t, ok)
	assert.Equal(t, []string{"s003", "s001", "s004"}, orderIDs(restored))
	assert.Equal(t, 1, restored.CurrentIndex())
	assert.True(t, restored.WasPlayed("s003"))
	// Persisted IDs missing from the pool or equal to current are dropped.
	assert.False(t, restored.WasPlayed("gone"))
	assert.False(t, restored.WasPlayed("s001"))
}

func TestRestoredFailures(t *testing.T) {
	_, ok := Empty().Restored([]string{"a"}, "a", nil)
	assert.False(t, ok, "empty pool")

	st, err := Empty().AddingSongs(testSongs(2))
	require.NoError(t, err)
	_, ok = st.Restored([]string{"gone", "also-gone"}, "gone", nil)
	assert.False(t, ok, "no persisted id resolves")
}

func TestRestoredUnknownCurrentFallsBackToHead(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(3))
	require.NoError(t, err)

	restored, ok := st.Restored([]string{"s002", "s000"}, "missing", nil)
	require.True(t, ok)
	assert.Equal(t, 0, restored.CurrentIndex())
	cur, _ := restored.CurrentSong()
	assert.Equal(t, "s002", cur.ID)
}

func TestReconciledRepairsStaleOrder(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(6))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	st, _ = st.AdvancedToNext()
	st, _ = st.AdvancedToNext()
	cur, _ := st.CurrentSong()

	// Grow the pool and drop an upcoming entry so the order is stale
	// both ways.
	st, err = st.AddingSong(testSong("new"))
	require.NoError(t, err)
	st = st.RemovingFromQueueOnly(st.Order()[4].ID)
	require.True(t, st.IsStale())

	fixed := st.Reconciled("")
	assert.False(t, fixed.IsStale())
	assert.Equal(t, 7, fixed.QueueLen())
	got, ok := fixed.CurrentSong()
	require.True(t, ok)
	assert.Equal(t, cur.ID, got.ID)
	// Played entries sit before the current index.
	for i := range fixed.CurrentIndex() {
		assert.True(t, fixed.WasPlayed(fixed.Order()[i].ID))
	}
}

func TestReconciledIsIdempotent(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(6))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	st, _ = st.AdvancedToNext()
	st, err = st.AddingSong(testSong("new"))
	require.NoError(t, err)

	once := st.Reconciled("")
	twice := once.Reconciled("")
	assert.Equal(t, orderIDs(once), orderIDs(twice))
	assert.Equal(t, once.CurrentIndex(), twice.CurrentIndex())
}

func TestReconciledPrefersRequestedCurrent(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(4))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)

	fixed := st.Reconciled("s002")
	cur, ok := fixed.CurrentSong()
	require.True(t, ok)
	assert.Equal(t, "s002", cur.ID)
}

func TestWithCurrentID(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(4))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	target := st.Order()[2]

	moved, ok := st.WithCurrentID(target.ID)
	require.True(t, ok)
	assert.Equal(t, 2, moved.CurrentIndex())

	_, ok = st.WithCurrentID("missing")
	assert.False(t, ok)
}

func TestMarkingPlayed(t *testing.T) {
	st, err := Empty().AddingSongs(testSongs(3))
	require.NoError(t, err)
	st = st.Shuffled(testRand(), shuffle.NoRepeat)
	st, _ = st.AdvancedToNext()
	cur, _ := st.CurrentSong()
	prev := st.Order()[0]

	// The current song is never self-marked.
	same := st.MarkingPlayed(cur.ID)
	assert.False(t, same.WasPlayed(cur.ID))

	marked := st.MarkingPlayed(prev.ID)
	assert.True(t, marked.WasPlayed(prev.ID))
}
