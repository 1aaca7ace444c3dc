package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentel/shufflepod/internal/shuffle"
	"github.com/quentel/shufflepod/internal/song"
)

func testReducer() *Reducer {
	return NewReducer(rand.New(rand.NewPCG(1, 2)))
}

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

// playingState builds an engine state with n pooled songs, a built order
// and playback active on the first entry.
func playingState(t *testing.T, rd *Reducer, n int) State {
	t.Helper()
	st := NewState()
	q, err := st.Queue.AddingSongs(testSongs(n))
	require.NoError(t, err)
	st.Queue = q
	red := rd.Reduce(st, Play{})
	require.False(t, red.NoOp)
	st = red.Next
	cur, ok := st.Queue.CurrentSong()
	require.True(t, ok)
	st.Playback = PlayingPlayback(cur)
	return st
}

func commandNames(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Name()
	}
	return out
}

func TestReduceUnknownIntentIsNoOp(t *testing.T) {
	st := NewState()
	red := testReducer().Reduce(st, nil)
	assert.True(t, red.NoOp)
	assert.Equal(t, st, red.Next)
}

func TestAddSongInactive(t *testing.T) {
	rd := testReducer()
	st := NewState()

	red := rd.Reduce(st, AddSong{Song: testSong("a")})
	require.False(t, red.NoOp)
	assert.Empty(t, red.Commands)
	assert.Equal(t, uint64(1), red.Next.Revision)
	assert.True(t, red.Next.Queue.InPool("a"))
	assert.False(t, red.Next.Queue.HasQueue())
	assert.False(t, red.Next.QueueNeedsBuild)
}

func TestAddSongDuplicateIsNoOp(t *testing.T) {
	rd := testReducer()
	st := NewState()
	st = rd.Reduce(st, AddSong{Song: testSong("a")}).Next

	red := rd.Reduce(st, AddSong{Song: testSong("a")})
	assert.True(t, red.NoOp)
	assert.Equal(t, st.Revision, red.Next.Revision)
}

func TestAddSongWhilePlayingDefersFullSync(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 5)

	red := rd.Reduce(st, AddSong{Song: testSong("late")})
	require.False(t, red.NoOp)

	// Non-interrupting tail insert only: no full queue replace, and the
	// deferred build flag covers the divergence.
	require.Equal(t, []string{"insert_tail"}, commandNames(red.Commands))
	assert.True(t, red.Next.QueueNeedsBuild)

	next := red.Next
	assert.Equal(t, 6, next.Queue.QueueLen())
	assert.Equal(t, "late", next.Queue.Order()[5].ID)
	before, _ := st.Queue.CurrentSong()
	after, _ := next.Queue.CurrentSong()
	assert.Equal(t, before.ID, after.ID, "current entry untouched")
}

func TestAddSongsWithRebuildActive(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 5)
	st.Queue, _ = st.Queue.AdvancedToNext()
	cur, _ := st.Queue.CurrentSong()

	red := rd.Reduce(st, AddSongsWithRebuild{Songs: testSongs(8)[5:]})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"replace_queue"}, commandNames(red.Commands))

	replace := red.Commands[0].(ReplaceQueueCommand)
	assert.Equal(t, cur.ID, replace.StartID)
	assert.Len(t, replace.Songs, 8)
	assert.False(t, red.Next.QueueNeedsBuild)
	assert.False(t, red.Next.Queue.IsStale())

	// The played entry stays in front of the current song, not re-queued.
	played := st.Queue.Order()[0]
	assert.Equal(t, played.ID, red.Next.Queue.Order()[0].ID)
}

func TestAddSongsWithRebuildInactive(t *testing.T) {
	rd := testReducer()
	st := NewState()
	st.Queue, _ = st.Queue.AddingSongs(testSongs(3))
	st.Queue = st.Queue.Shuffled(rand.New(rand.NewPCG(3, 4)), shuffle.NoRepeat)

	red := rd.Reduce(st, AddSongsWithRebuild{Songs: []song.Song{testSong("x")}})
	require.False(t, red.NoOp)
	assert.Empty(t, red.Commands)
	assert.True(t, red.Next.QueueNeedsBuild, "existing order left for next play")
	assert.Equal(t, 4, red.Next.Queue.PoolSize())
}

func TestAddSongsAlgorithmSwitch(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 4)

	red := rd.Reduce(st, AddSongsWithRebuild{
		Songs:        nil,
		Algorithm:    shuffle.WeightedByPlayCount,
		HasAlgorithm: true,
	})
	require.False(t, red.NoOp, "algorithm change alone is a real transition")
	assert.Equal(t, shuffle.WeightedByPlayCount, red.Next.Queue.Algorithm())
}

func TestRemoveCurrentSongNeverSkips(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 4)
	cur, _ := st.Queue.CurrentSong()

	red := rd.Reduce(st, RemoveSong{ID: cur.ID})
	require.False(t, red.NoOp)
	assert.Empty(t, red.Commands, "transport advances naturally, no skip issued")
	assert.True(t, red.Next.QueueNeedsBuild)
	assert.False(t, red.Next.Queue.InPool(cur.ID))
}

func TestRemoveUpcomingSongReplacesQueue(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 4)
	cur, _ := st.Queue.CurrentSong()
	victim := st.Queue.Order()[2]

	red := rd.Reduce(st, RemoveSong{ID: victim.ID})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"replace_queue"}, commandNames(red.Commands))
	replace := red.Commands[0].(ReplaceQueueCommand)
	assert.Equal(t, cur.ID, replace.StartID)
	assert.Len(t, replace.Songs, 3)
	assert.False(t, red.Next.QueueNeedsBuild)
}

func TestRemoveSongInactive(t *testing.T) {
	rd := testReducer()
	st := NewState()
	st = rd.Reduce(st, AddSong{Song: testSong("a")}).Next

	red := rd.Reduce(st, RemoveSong{ID: "a"})
	require.False(t, red.NoOp)
	assert.Empty(t, red.Commands)
	assert.Equal(t, 0, red.Next.Queue.PoolSize())

	red = rd.Reduce(red.Next, RemoveSong{ID: "a"})
	assert.True(t, red.NoOp, "unknown id")
}

func TestRemoveFromQueueOnly(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 4)
	victim := st.Queue.Order()[3]

	red := rd.Reduce(st, RemoveFromQueueOnly{ID: victim.ID})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"replace_queue"}, commandNames(red.Commands))
	assert.True(t, red.Next.Queue.InPool(victim.ID), "pool membership kept")
	assert.Equal(t, 3, red.Next.Queue.QueueLen())
}

func TestRemoveAllSongs(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 4)

	red := rd.Reduce(st, RemoveAllSongs{})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"set_queue"}, commandNames(red.Commands))
	assert.Empty(t, red.Commands[0].(SetQueueCommand).Songs)
	assert.Equal(t, 0, red.Next.Queue.PoolSize())
	assert.Equal(t, PlaybackEmpty, red.Next.Playback.Kind())
	assert.False(t, red.Next.QueueNeedsBuild)

	again := rd.Reduce(red.Next, RemoveAllSongs{})
	assert.True(t, again.NoOp)
}

func TestPlayFromEmptyPoolIsNoOp(t *testing.T) {
	red := testReducer().Reduce(NewState(), Play{})
	assert.True(t, red.NoOp)
}

func TestPlayBuildsFreshQueueWhenInactive(t *testing.T) {
	rd := testReducer()
	st := NewState()
	st.Queue, _ = st.Queue.AddingSongs(testSongs(5))

	red := rd.Reduce(st, Play{})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"set_queue", "play"}, commandNames(red.Commands))
	assert.Len(t, red.Commands[0].(SetQueueCommand).Songs, 5)
	assert.Equal(t, PlaybackLoading, red.Next.Playback.Kind())
	assert.False(t, red.Next.QueueNeedsBuild)
	for _, cmd := range red.Commands {
		assert.Equal(t, red.Next.Revision, cmd.Revision())
	}
}

func TestPlayWithExistingQueueSkipsBuild(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 5)
	st.Playback = PausedPlayback(st.Queue.Order()[0])

	red := rd.Reduce(st, Play{})
	require.False(t, red.NoOp)
	assert.Equal(t, []string{"play"}, commandNames(red.Commands))
}

func TestPlayReconcilesStaleQueueWhileActive(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 5)
	st.Queue, _ = st.Queue.AdvancedToNext()
	cur, _ := st.Queue.CurrentSong()

	grown, err := st.Queue.AddingSong(testSong("new"))
	require.NoError(t, err)
	st.Queue = grown
	require.True(t, st.Queue.IsStale())

	red := rd.Reduce(st, Play{})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"replace_queue", "play"}, commandNames(red.Commands))
	replace := red.Commands[0].(ReplaceQueueCommand)
	assert.Equal(t, cur.ID, replace.StartID, "continuity preserved")
	assert.Len(t, replace.Songs, 6)
	assert.False(t, red.Next.Queue.IsStale())
}

func TestPlayWithStartPosition(t *testing.T) {
	rd := testReducer()
	st := NewState()
	st.Queue, _ = st.Queue.AddingSongs(testSongs(3))

	red := rd.Reduce(st, Play{StartAt: 42 * time.Second, HasStartAt: true})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"set_queue", "play", "seek"}, commandNames(red.Commands))
	assert.Equal(t, 42*time.Second, red.Commands[2].(SeekCommand).Position)
}

func TestPause(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)
	cur, _ := st.Queue.CurrentSong()

	red := rd.Reduce(st, Pause{})
	require.False(t, red.NoOp)
	assert.Equal(t, []string{"pause"}, commandNames(red.Commands))
	assert.Equal(t, PlaybackPaused, red.Next.Playback.Kind())
	got, _ := red.Next.Playback.Song()
	assert.Equal(t, cur.ID, got.ID)

	again := rd.Reduce(red.Next, Pause{})
	assert.True(t, again.NoOp, "pause while not playing")
}

func TestSkipToNext(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)
	second := st.Queue.Order()[1]

	red := rd.Reduce(st, SkipToNext{})
	require.False(t, red.NoOp)
	assert.Equal(t, []string{"skip_next"}, commandNames(red.Commands))
	assert.Equal(t, 1, red.Next.Queue.CurrentIndex())
	got, _ := red.Next.Playback.Song()
	assert.Equal(t, second.ID, got.ID)
	first := st.Queue.Order()[0]
	assert.True(t, red.Next.Queue.WasPlayed(first.ID))
}

func TestSkipAtTailIsNoOp(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 2)
	st.Queue, _ = st.Queue.AdvancedToNext()

	red := rd.Reduce(st, SkipToNext{})
	assert.True(t, red.NoOp)
}

func TestSkipWithPendingBuildFlushesQueueFirst(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)
	st = rd.Reduce(st, AddSong{Song: testSong("late")}).Next
	require.True(t, st.QueueNeedsBuild)

	red := rd.Reduce(st, SkipToNext{})
	require.False(t, red.NoOp)
	assert.Equal(t, []string{"replace_queue", "play"}, commandNames(red.Commands))
	assert.False(t, red.Next.QueueNeedsBuild)
}

func TestSkipToPrevious(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)

	red := rd.Reduce(st, SkipToPrevious{})
	assert.True(t, red.NoOp, "at the head")

	st.Queue, _ = st.Queue.AdvancedToNext()
	first := st.Queue.Order()[0]
	red = rd.Reduce(st, SkipToPrevious{})
	require.False(t, red.NoOp)
	assert.Equal(t, []string{"skip_previous"}, commandNames(red.Commands))
	assert.Equal(t, 0, red.Next.Queue.CurrentIndex())
	assert.False(t, red.Next.Queue.WasPlayed(first.ID))
}

func TestReshuffleInactiveOnlyInvalidates(t *testing.T) {
	rd := testReducer()
	st := NewState()
	st.Queue, _ = st.Queue.AddingSongs(testSongs(4))
	st.Queue = st.Queue.Shuffled(rand.New(rand.NewPCG(5, 6)), shuffle.NoRepeat)

	red := rd.Reduce(st, Reshuffle{Algorithm: shuffle.ArtistSpacing})
	require.False(t, red.NoOp)
	assert.Empty(t, red.Commands, "nothing plays, transport untouched")
	assert.True(t, red.Next.QueueNeedsBuild)
	assert.Equal(t, shuffle.ArtistSpacing, red.Next.Queue.Algorithm())
	assert.Equal(t, PlaybackEmpty, red.Next.Playback.Kind())
}

func TestReshuffleActivePreservesHistory(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 6)
	st.Queue, _ = st.Queue.AdvancedToNext()
	st.Queue, _ = st.Queue.AdvancedToNext()
	before := st.Queue.Order()

	red := rd.Reduce(st, Reshuffle{Algorithm: shuffle.NoRepeat})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"replace_queue"}, commandNames(red.Commands))
	after := red.Next.Queue.Order()
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[1].ID, after[1].ID)
	assert.Equal(t, before[2].ID, after[2].ID, "current keeps its slot")
	assert.Equal(t, 2, red.Next.Queue.CurrentIndex())
}

func TestSyncDeferredTransport(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)

	red := rd.Reduce(st, SyncDeferredTransport{})
	assert.True(t, red.NoOp, "nothing pending")

	st = rd.Reduce(st, AddSong{Song: testSong("late")}).Next
	require.True(t, st.QueueNeedsBuild)

	red = rd.Reduce(st, SyncDeferredTransport{})
	require.False(t, red.NoOp)
	require.Equal(t, []string{"replace_queue"}, commandNames(red.Commands))
	replace := red.Commands[0].(ReplaceQueueCommand)
	assert.Equal(t, song.IDs(st.Queue.Order()), song.IDs(replace.Songs),
		"mirror the order exactly, no implicit reshuffle")
	assert.False(t, red.Next.QueueNeedsBuild)

	inactive := st
	inactive.Playback = StoppedPlayback()
	red = rd.Reduce(inactive, SyncDeferredTransport{})
	assert.True(t, red.NoOp, "inactive playback")
}

func TestResolutionTransientStopKeepsLoading(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)
	cur, _ := st.Queue.CurrentSong()
	st.Playback = LoadingPlayback(cur)

	red := rd.Reduce(st, PlaybackResolution{Resolution: Resolution{State: StoppedPlayback()}})
	assert.True(t, red.NoOp, "loading to stopped is not a real transition")
	assert.Equal(t, PlaybackLoading, red.Next.Playback.Kind())
	assert.False(t, red.Next.QueueNeedsBuild)
}

func TestResolutionErrorForcesRebuild(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)

	red := rd.Reduce(st, PlaybackResolution{Resolution: Resolution{
		State: ErrorPlayback(errors.New("decode failed")),
	}})
	require.False(t, red.NoOp)
	assert.Equal(t, PlaybackError, red.Next.Playback.Kind())
	assert.True(t, red.Next.QueueNeedsBuild)
}

func TestResolutionCleanStopKeepsQueueByDefault(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)

	red := rd.Reduce(st, PlaybackResolution{Resolution: Resolution{State: StoppedPlayback()}})
	require.False(t, red.NoOp)
	assert.Equal(t, PlaybackStopped, red.Next.Playback.Kind())
	assert.False(t, red.Next.QueueNeedsBuild)
}

func TestResolutionRebuildOnStopPolicy(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)

	red := rd.Reduce(st, PlaybackResolution{Resolution: Resolution{
		State:         StoppedPlayback(),
		RebuildOnStop: true,
	}})
	require.False(t, red.NoOp)
	assert.True(t, red.Next.QueueNeedsBuild)
}

func TestResolutionNaturalAdvancement(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)
	order := st.Queue.Order()
	playedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	red := rd.Reduce(st, PlaybackResolution{Resolution: Resolution{
		State:             PlayingPlayback(order[1]),
		SongID:            order[1].ID,
		UpdateCurrentSong: true,
		MarkPlayedID:      order[0].ID,
		PlayedAt:          playedAt,
	}})
	require.False(t, red.NoOp)
	assert.Empty(t, red.Commands, "resolutions never issue transport commands")

	next := red.Next
	assert.Equal(t, 1, next.Queue.CurrentIndex())
	assert.True(t, next.Queue.WasPlayed(order[0].ID))
	bumped, _ := next.Queue.PoolSong(order[0].ID)
	assert.Equal(t, 1, bumped.PlayCount)
	assert.Equal(t, playedAt, bumped.LastPlayed)
}

func TestResolutionIdenticalStateIsNoOp(t *testing.T) {
	rd := testReducer()
	st := playingState(t, rd, 3)
	cur, _ := st.Queue.CurrentSong()

	red := rd.Reduce(st, PlaybackResolution{Resolution: Resolution{
		State:  PlayingPlayback(cur),
		SongID: cur.ID,
	}})
	assert.True(t, red.NoOp)
}

func TestEveryTransitionBumpsRevisionByOne(t *testing.T) {
	rd := testReducer()
	st := NewState()

	intents := []Intent{
		AddSong{Song: testSong("a")},
		AddSong{Song: testSong("b")},
		Play{},
		Pause{},
		SkipToNext{},
		Reshuffle{Algorithm: shuffle.NoRepeat},
		RemoveAllSongs{},
	}
	for _, in := range intents {
		before := st.Revision
		red := rd.Reduce(st, in)
		if red.NoOp {
			assert.Equal(t, before, red.Next.Revision, "%s", in.Name())
			continue
		}
		assert.Equal(t, before+1, red.Next.Revision, "%s", in.Name())
		for _, cmd := range red.Commands {
			assert.Equal(t, red.Next.Revision, cmd.Revision(), "%s/%s", in.Name(), cmd.Name())
		}
		st = red.Next
	}
}
