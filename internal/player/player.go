// Package player hosts the ShufflePlayer: the single authoritative owner
// of the queue engine state. Every public operation acquires the same
// lock for its full duration, transport awaits included, so concurrent
// callers queue rather than race and each operation is atomic from the
// caller's point of view: fully applied including transport sync, or
// rolled back.
package player

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/quentel/shufflepod/internal/engine"
	"github.com/quentel/shufflepod/internal/queue"
	"github.com/quentel/shufflepod/internal/shuffle"
	"github.com/quentel/shufflepod/internal/song"
	"github.com/quentel/shufflepod/internal/transport"
)

const defaultJournalSize = 50

// Options configures a ShufflePlayer.
type Options struct {
	Logger      *slog.Logger
	JournalSize int
	// RebuildOnStop forces a fresh queue build when the transport stops
	// at end of queue. Default false: a clean stop keeps the built queue
	// valid so a follow-up play resumes without an audible rebuild.
	RebuildOnStop bool
	// Rand seeds the shuffle draws; nil uses a time-seeded source.
	Rand *rand.Rand
	// NoticeHandler receives operation notices as they are recorded.
	// Called outside the player lock.
	NoticeHandler func(OperationNotice)
}

// ShufflePlayer orchestrates the queue engine against a transport.
type ShufflePlayer struct {
	mu        sync.Mutex
	log       *slog.Logger
	transport transport.Transport
	reducer   *engine.Reducer
	state     engine.State

	pendingSeek    time.Duration
	hasPendingSeek bool
	rebuildOnStop  bool

	journal            *journal
	tel                Telemetry
	lastNotice         *OperationNotice
	noticeHandler      func(OperationNotice)
	lastTransportCount int
	startedAt          time.Time

	subsMu        sync.Mutex
	subs          []*Subscription
	lastPublished engine.PlaybackState

	pumpDone chan struct{}
	closed   bool
}

// New creates a ShufflePlayer driving t and starts consuming its status
// stream.
func New(t transport.Transport, opts Options) *ShufflePlayer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	p := &ShufflePlayer{
		log:           log,
		transport:     t,
		reducer:       engine.NewReducer(rng),
		state:         engine.NewState(),
		rebuildOnStop: opts.RebuildOnStop,
		journal:       newJournal(opts.JournalSize),
		noticeHandler: opts.NoticeHandler,
		startedAt:     time.Now(),
		lastPublished: engine.EmptyPlayback(),
		pumpDone:      make(chan struct{}),
	}
	go p.pump()
	return p
}

// pump funnels transport status updates into playback resolutions
// through the same lock as caller-issued mutations.
func (p *ShufflePlayer) pump() {
	defer close(p.pumpDone)
	for u := range p.transport.Updates() {
		p.handleUpdate(u)
	}
}

// Close shuts the player down and waits for the status pump to exit.
// The transport itself is closed by its owner.
func (p *ShufflePlayer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.subsMu.Lock()
	for _, sub := range p.subs {
		sub.close()
	}
	p.subs = nil
	p.subsMu.Unlock()
	return nil
}

// WaitForPump blocks until the status pump goroutine has exited, which
// happens when the transport's update stream closes.
func (p *ShufflePlayer) WaitForPump() {
	<-p.pumpDone
}

// AddSong adds a song to the pool. While playback is active the song is
// also appended to the upcoming order and inserted into the transport
// queue tail, awaiting completion; the transport insert failing rolls
// the local mutation back. Fails with ErrCapacityReached when the pool
// is full.
func (p *ShufflePlayer) AddSong(ctx context.Context, sg song.Song) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Queue.InPool(sg.ID) && p.state.Queue.PoolSize() >= queue.MaxPoolSize {
		p.journal.add(OperationRecord{
			Time: time.Now(), Op: "add_song", Detail: sg.ID,
			Revision: p.state.Revision, Err: ErrCapacityReached.Error(),
		})
		return ErrCapacityReached
	}
	_, err := p.dispatch(ctx, engine.AddSong{Song: sg}, sg.ID)
	return err
}

// AddSongsWithQueueRebuild batch-adds songs and reshuffles the upcoming
// tail, optionally with a different algorithm. A transport failure
// during the queue replace rolls the entire batch back and leaves the
// deferred build pending so the next play retries with a fresh build.
func (p *ShufflePlayer) AddSongsWithQueueRebuild(ctx context.Context, songs []song.Song, alg ...shuffle.Algorithm) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := 0
	seen := make(map[string]struct{}, len(songs))
	for _, sg := range songs {
		if p.state.Queue.InPool(sg.ID) {
			continue
		}
		if _, dup := seen[sg.ID]; dup {
			continue
		}
		seen[sg.ID] = struct{}{}
		fresh++
	}
	if p.state.Queue.PoolSize()+fresh > queue.MaxPoolSize {
		p.journal.add(OperationRecord{
			Time: time.Now(), Op: "add_songs_rebuild",
			Revision: p.state.Revision, Err: ErrCapacityReached.Error(),
		})
		return ErrCapacityReached
	}

	in := engine.AddSongsWithRebuild{Songs: songs}
	if len(alg) > 0 {
		in.Algorithm = alg[0]
		in.HasAlgorithm = true
	}
	_, err := p.dispatch(ctx, in, "")
	return err
}

// RemoveSong removes a song from the pool and the order. Removing the
// currently playing song lets the transport advance naturally instead of
// issuing a skip.
func (p *ShufflePlayer) RemoveSong(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.RemoveSong{ID: id}, id)
	return err
}

// RemoveFromQueueOnly removes a song from the order while keeping it in
// the pool.
func (p *ShufflePlayer) RemoveFromQueueOnly(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.RemoveFromQueueOnly{ID: id}, id)
	return err
}

// RemoveAllSongs clears the pool, the order and the history.
func (p *ShufflePlayer) RemoveAllSongs(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.RemoveAllSongs{}, "")
	return err
}

// Play starts playback, rebuilding the queue first when a build is
// pending or the order is absent or stale. A restored playback position
// is applied on the first explicit play.
func (p *ShufflePlayer) Play(ctx context.Context, alg ...shuffle.Algorithm) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playLocked(ctx, alg...)
}

func (p *ShufflePlayer) playLocked(ctx context.Context, alg ...shuffle.Algorithm) error {
	if p.state.Queue.IsStale() || (p.state.QueueNeedsBuild && p.state.Playback.IsActive() && p.state.Queue.HasQueue()) {
		p.tel.Reconciliations++
	}
	in := engine.Play{}
	if len(alg) > 0 {
		in.Algorithm = alg[0]
		in.HasAlgorithm = true
	}
	if p.hasPendingSeek {
		in.StartAt = p.pendingSeek
		in.HasStartAt = true
	}
	_, err := p.dispatch(ctx, in, "")
	if err == nil {
		p.hasPendingSeek = false
	}
	return err
}

// Pause pauses audible playback.
func (p *ShufflePlayer) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.Pause{}, "")
	return err
}

// TogglePlayback pauses when playing, plays otherwise. A deferred
// rebuild pending at toggle time happens before playback starts.
func (p *ShufflePlayer) TogglePlayback(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Playback.IsPlaying() {
		_, err := p.dispatch(ctx, engine.Pause{}, "")
		return err
	}
	return p.playLocked(ctx)
}

// SkipToNext advances the traversal and the transport.
func (p *ShufflePlayer) SkipToNext(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.SkipToNext{}, "")
	return err
}

// Seek moves the transport playhead within the current entry. It never
// touches queue state; a failure surfaces as a notice but needs no
// rollback.
func (p *ShufflePlayer) Seek(ctx context.Context, pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Playback.IsActive() {
		return nil
	}
	if err := p.transport.Seek(ctx, pos); err != nil {
		p.recordNotice("seek", err)
		return &PlaybackError{Op: "seek", Msg: "seek failed", Err: err}
	}
	p.hasPendingSeek = false
	p.journal.add(OperationRecord{
		Time: time.Now(), Op: "seek", Detail: pos.String(),
		Revision: p.state.Revision,
	})
	return nil
}

// SkipToPrevious moves the traversal and the transport back.
func (p *ShufflePlayer) SkipToPrevious(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.SkipToPrevious{}, "")
	return err
}

// Reshuffle rebuilds the upcoming tail with the new algorithm. While
// inactive the current order is only invalidated; nothing plays.
func (p *ShufflePlayer) Reshuffle(ctx context.Context, alg shuffle.Algorithm) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.Reshuffle{Algorithm: alg}, alg.String())
	return err
}

// SyncDeferredTransport flushes a pending build by mirroring the current
// order to the transport exactly.
func (p *ShufflePlayer) SyncDeferredTransport(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.dispatch(ctx, engine.SyncDeferredTransport{}, "")
	return err
}

// RestoreQueue rebuilds the queue from persisted IDs without starting
// playback: the state lands on paused(current) and the persisted
// position is re-applied on the first explicit play or toggle. Returns
// false when the pool is empty or no persisted ID resolves.
func (p *ShufflePlayer) RestoreQueue(order []string, currentID string, played []string, position time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.state.Queue.Restored(order, currentID, played)
	if !ok {
		p.journal.add(OperationRecord{
			Time: time.Now(), Op: "restore_queue",
			Revision: p.state.Revision, Err: "no persisted id resolved",
		})
		return false
	}
	cur, _ := q.CurrentSong()
	p.state.Queue = q
	p.state.Playback = engine.PausedPlayback(cur)
	p.state.Revision++
	p.state.QueueNeedsBuild = true
	p.pendingSeek = position
	p.hasPendingSeek = position > 0

	p.journal.add(OperationRecord{
		Time: time.Now(), Op: "restore_queue", Detail: cur.ID,
		Revision: p.state.Revision,
	})
	p.log.Debug("queue restored",
		slog.Int("entries", q.QueueLen()),
		slog.String("current", cur.ID))
	p.publishLocked()
	return true
}

// PlaybackState returns the current external-facing playback state.
func (p *ShufflePlayer) PlaybackState() engine.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Playback
}

// CurrentSong returns the current order entry.
func (p *ShufflePlayer) CurrentSong() (song.Song, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Queue.CurrentSong()
}

// Snapshot returns the engine state. The contained queue state is
// immutable, so the snapshot stays consistent after release.
func (p *ShufflePlayer) Snapshot() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PlaybackPosition reports the transport playhead. While a restored seek
// is still armed the restored position is reported instead, so a save
// before the first play does not zero it out.
func (p *ShufflePlayer) PlaybackPosition() time.Duration {
	p.mu.Lock()
	armed, pos := p.hasPendingSeek, p.pendingSeek
	p.mu.Unlock()
	if armed {
		return pos
	}
	return p.transport.PlaybackTime()
}

// Subscribe registers for playback state snapshots. The current state is
// replayed first, then live updates follow.
func (p *ShufflePlayer) Subscribe() *Subscription {
	p.mu.Lock()
	current := p.state.Playback
	p.mu.Unlock()

	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	sub := newSubscription()
	sub.send(current)
	p.subs = append(p.subs, sub)
	return sub
}

// InvariantCheck recomputes queue health on demand.
func (p *ShufflePlayer) InvariantCheck() InvariantCheck {
	p.mu.Lock()
	defer p.mu.Unlock()
	return checkInvariants(p.state, p.lastTransportCount)
}

// RecentOperations returns the operation journal, newest first.
func (p *ShufflePlayer) RecentOperations() []OperationRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.journal.recent()
}

// LastNotice returns the most recent operation notice, if any.
func (p *ShufflePlayer) LastNotice() (OperationNotice, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastNotice == nil {
		return OperationNotice{}, false
	}
	return *p.lastNotice, true
}

// ExportDiagnostics serializes pool, queue, invariant check, telemetry
// and journal for support tooling.
func (p *ShufflePlayer) ExportDiagnostics(trigger, detail string) DiagnosticsSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(trigger, detail)
}

// HardReset clears all engine state and diagnostics atomically. Debug
// tooling only.
func (p *ShufflePlayer) HardReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = engine.NewState()
	p.pendingSeek = 0
	p.hasPendingSeek = false
	p.lastTransportCount = 0
	p.lastNotice = nil
	p.journal.reset()
	p.tel = Telemetry{}
	p.log.Warn("queue engine hard reset")
	p.publishLocked()
}

// dispatch reduces the intent, applies the next state locally and then
// executes the transport commands in order, awaiting each. Any failure
// restores the pre-operation snapshot exactly and marks the transport
// queue as needing a build. Callers must hold p.mu.
func (p *ShufflePlayer) dispatch(ctx context.Context, in engine.Intent, detail string) (engine.Reduction, error) {
	snapshot := p.state
	red := p.reducer.Reduce(p.state, in)
	if red.NoOp {
		p.journal.add(OperationRecord{
			Time: time.Now(), Op: in.Name(), Detail: detail,
			Revision: p.state.Revision, NoOp: true,
		})
		return red, nil
	}
	p.state = red.Next

	if err := p.runCommands(ctx, in.Name(), detail, snapshot, red.Commands); err != nil {
		return red, err
	}

	p.journal.add(OperationRecord{
		Time: time.Now(), Op: in.Name(), Detail: detail,
		Revision: p.state.Revision,
	})
	p.publishLocked()
	return red, nil
}

// runCommands executes transport commands in order, rejecting any whose
// revision no longer matches the state and rolling back to snapshot on
// transport failure. Callers must hold p.mu.
func (p *ShufflePlayer) runCommands(ctx context.Context, op, detail string, snapshot engine.State, cmds []engine.Command) error {
	for _, cmd := range cmds {
		if cmd.Revision() != p.state.Revision {
			// Another mutation advanced the state past this command:
			// applying it now would clobber newer state, so it is
			// dropped and a fresh build is forced instead.
			p.tel.StaleCommandsSkipped++
			p.state.QueueNeedsBuild = true
			p.journal.add(OperationRecord{
				Time: time.Now(), Op: op, Detail: detail,
				Revision: p.state.Revision,
				Err:      "stale transport command skipped",
			})
			p.log.Warn("stale transport command skipped",
				slog.String("command", cmd.Name()),
				slog.Uint64("command_revision", cmd.Revision()),
				slog.Uint64("state_revision", p.state.Revision))
			return &PlaybackError{Op: op, Msg: "transport command superseded"}
		}
		if err := p.execute(ctx, cmd); err != nil {
			p.state = snapshot
			p.state.QueueNeedsBuild = true
			p.tel.Rollbacks++
			p.recordNotice(op, err)
			p.journal.add(OperationRecord{
				Time: time.Now(), Op: op, Detail: detail,
				Revision: p.state.Revision, Err: err.Error(),
			})
			p.log.Warn("transport command failed, state rolled back",
				slog.String("command", cmd.Name()),
				slog.Any("error", err))
			p.publishLocked()
			return &PlaybackError{Op: op, Msg: cmd.Name() + " failed", Err: err}
		}
	}
	return nil
}

// execute issues one transport command and tracks the transport's entry
// count for parity diagnostics.
func (p *ShufflePlayer) execute(ctx context.Context, cmd engine.Command) error {
	switch c := cmd.(type) {
	case engine.PlayCommand:
		return p.transport.Play(ctx)
	case engine.PauseCommand:
		return p.transport.Pause(ctx)
	case engine.SkipNextCommand:
		return p.transport.SkipToNext(ctx)
	case engine.SkipPreviousCommand:
		return p.transport.SkipToPrevious(ctx)
	case engine.SeekCommand:
		if err := p.transport.Seek(ctx, c.Position); err != nil {
			return err
		}
		p.hasPendingSeek = false
		return nil
	case engine.SetQueueCommand:
		if err := p.transport.SetQueue(ctx, c.Songs); err != nil {
			return err
		}
		p.lastTransportCount = len(c.Songs)
		return nil
	case engine.InsertTailCommand:
		if err := p.transport.InsertIntoQueue(ctx, c.Songs); err != nil {
			return err
		}
		p.lastTransportCount += len(c.Songs)
		return nil
	case engine.ReplaceQueueCommand:
		if err := p.transport.ReplaceQueue(ctx, c.Songs, c.StartID, transport.KeepPosition); err != nil {
			return err
		}
		p.lastTransportCount = len(c.Songs)
		return nil
	default:
		return errors.New("unknown transport command")
	}
}

// handleUpdate folds one transport status update into the engine as a
// playback resolution.
func (p *ShufflePlayer) handleUpdate(u transport.StatusUpdate) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	res := p.resolutionFor(u)
	red := p.reducer.Reduce(p.state, engine.PlaybackResolution{Resolution: res})
	if !red.NoOp {
		p.state = red.Next
		p.tel.ResolutionsApplied++
		p.journal.add(OperationRecord{
			Time: time.Now(), Op: "playback_resolution",
			Detail:   res.State.String(),
			Revision: p.state.Revision,
		})
		p.publishLocked()
	}
	p.mu.Unlock()
}

// resolutionFor maps a raw status update onto a resolution, resolving
// song IDs against the domain order and detecting natural advancement.
func (p *ShufflePlayer) resolutionFor(u transport.StatusUpdate) engine.Resolution {
	res := engine.Resolution{
		SongID:        u.SongID,
		RebuildOnStop: p.rebuildOnStop,
		PlayedAt:      time.Now(),
	}

	resolved, ok := p.state.Queue.PoolSong(u.SongID)
	if !ok {
		resolved, ok = p.state.Playback.Song()
	}

	switch u.Status {
	case transport.StatusPlaying:
		if ok {
			res.State = engine.PlayingPlayback(resolved)
		} else {
			res.State = engine.StoppedPlayback()
		}
	case transport.StatusPaused:
		if ok {
			res.State = engine.PausedPlayback(resolved)
		} else {
			res.State = engine.StoppedPlayback()
		}
	case transport.StatusLoading:
		if ok {
			res.State = engine.LoadingPlayback(resolved)
		} else {
			res.State = engine.StoppedPlayback()
		}
	case transport.StatusErrored:
		res.State = engine.ErrorPlayback(u.Err)
	default:
		res.State = engine.StoppedPlayback()
	}

	// The transport moved to a different entry: follow it, and mark the
	// song it advanced past as played when it moved forward.
	cur, hasCur := p.state.Queue.CurrentSong()
	if u.SongID != "" && hasCur && u.SongID != cur.ID {
		res.UpdateCurrentSong = true
		if p.orderIndex(u.SongID) > p.state.Queue.CurrentIndex() {
			res.MarkPlayedID = cur.ID
		}
	}
	return res
}

func (p *ShufflePlayer) orderIndex(id string) int {
	for i, e := range p.state.Queue.Order() {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// recordNotice stores a non-blocking operation notice and hands it to
// the configured handler.
func (p *ShufflePlayer) recordNotice(op string, err error) {
	n := OperationNotice{Time: time.Now(), Op: op, Message: err.Error()}
	p.lastNotice = &n
	p.tel.NoticesRecorded++
	if p.noticeHandler != nil {
		go p.noticeHandler(n)
	}
}

// publishLocked fans the playback state out to subscribers when it
// changed. Callers must hold p.mu.
func (p *ShufflePlayer) publishLocked() {
	st := p.state.Playback
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	if st.Equal(p.lastPublished) {
		return
	}
	p.lastPublished = st
	for _, sub := range p.subs {
		sub.send(st)
	}
}
