package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/quentel/shufflepod/internal/errmsg"
	"github.com/quentel/shufflepod/internal/mpris"
	"github.com/quentel/shufflepod/internal/notify"
	"github.com/quentel/shufflepod/internal/player"
	"github.com/quentel/shufflepod/internal/shuffle"
	"github.com/quentel/shufflepod/internal/song"
	"github.com/quentel/shufflepod/internal/state"
	"github.com/quentel/shufflepod/internal/transport/sim"
)

var runPlayNow bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the player and keep it running",
	Long: `Run restores the persisted pool and queue, starts the playback
engine against the simulated transport and exposes it over MPRIS.
Playback state is saved continuously and on shutdown.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runPlayNow, "play", false, "start playback immediately")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := openState()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}
	defer mgr.Close()

	notifier, err := notify.New()
	if err != nil {
		log.Warn("desktop notifications unavailable", "error", err)
	}

	tr := sim.New(log, cfg.SimSongLength())
	defer tr.Close()

	p := player.New(tr, player.Options{
		Logger:        log,
		JournalSize:   cfg.JournalSize(),
		RebuildOnStop: cfg.RebuildOnStop,
		NoticeHandler: func(n player.OperationNotice) {
			if cfg.NotificationsEnabled() && notifier != nil {
				_, _ = notifier.Notify(notify.OperationFailed(n.Op, n.Message))
			}
		},
	})
	defer p.Close()

	if err := restore(ctx, p, mgr); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpQueueLoad, err))
	}

	if cfg.MPRISEnabled() {
		adapter, err := mpris.New(p)
		if err != nil {
			log.Warn("mpris unavailable", "error", err)
		} else {
			defer adapter.Close()
		}
	}

	sub := p.Subscribe()
	go watchPlayback(p, mgr, notifier, sub)

	if runPlayNow {
		if err := p.Play(ctx); err != nil {
			log.Error(errmsg.Format(errmsg.OpPlaybackStart, err))
		}
	}

	log.Info("shufflepod running",
		"pool", p.Snapshot().Queue.PoolSize(),
		"state", p.PlaybackState().String())

	<-ctx.Done()
	log.Info("shutting down")

	return persist(p, mgr)
}

// restore loads the persisted pool into the player and rebuilds the saved
// queue around it. A missing or unrecoverable queue is not an error; the
// pool alone is enough to start fresh.
func restore(ctx context.Context, p *player.ShufflePlayer, mgr state.Interface) error {
	songs, err := mgr.GetSongs()
	if err != nil {
		return err
	}

	pq, err := mgr.GetQueue()
	if err != nil {
		return err
	}

	alg := cfg.Algorithm()
	if pq != nil && pq.Algorithm != "" {
		if saved, err := shuffle.Parse(pq.Algorithm); err == nil {
			alg = saved
		}
	}

	if len(songs) > 0 {
		if err := p.AddSongsWithQueueRebuild(ctx, songs, alg); err != nil {
			return err
		}
	}

	if pq != nil && len(pq.OrderIDs) > 0 {
		if !p.RestoreQueue(pq.OrderIDs, pq.CurrentSongID, pq.PlayedIDs, pq.Position) {
			log.Warn("saved queue no longer matches the pool, starting fresh")
		}
	}
	return nil
}

// watchPlayback mirrors playback state changes into persistence and the
// desktop now-playing notification. Runs until the subscription closes.
func watchPlayback(p *player.ShufflePlayer, mgr state.Interface, notifier notify.Notifier, sub *player.Subscription) {
	var lastSongID string
	var noteID uint32
	for {
		select {
		case st := <-sub.States:
			mgr.SaveQueueDebounced(queueSnapshot(p))
			sg, ok := st.Song()
			if !ok || !st.IsPlaying() || sg.ID == lastSongID {
				continue
			}
			lastSongID = sg.ID
			// A song change carries the previous song's play-count
			// bump; persist it so the weighted shufflers see it after
			// a crash.
			if err := mgr.SaveSongs(p.Snapshot().Queue.PoolSongs()); err != nil {
				log.Warn("saving play counts failed", "error", err)
			}
			if cfg.NotificationsEnabled() && notifier != nil {
				if id, err := notifier.Notify(notify.NowPlaying(sg, noteID)); err == nil {
					noteID = id
				}
			}
		case <-sub.Done:
			return
		}
	}
}

// persist writes the final pool and queue snapshot synchronously.
func persist(p *player.ShufflePlayer, mgr state.Interface) error {
	st := p.Snapshot()
	if err := mgr.SaveSongs(st.Queue.PoolSongs()); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpQueueSave, err))
	}
	if err := mgr.SaveQueue(queueSnapshot(p)); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpQueueSave, err))
	}
	return nil
}

func queueSnapshot(p *player.ShufflePlayer) state.PersistedQueue {
	st := p.Snapshot()
	q := state.PersistedQueue{
		OrderIDs:  song.IDs(st.Queue.Order()),
		PlayedIDs: lo.Keys(st.Queue.PlayedIDs()),
		Position:  p.PlaybackPosition(),
		Algorithm: st.Queue.Algorithm().String(),
	}
	if cur, ok := st.Queue.CurrentSong(); ok {
		q.CurrentSongID = cur.ID
	}
	return q
}

func openState() (*state.Manager, error) {
	if cfg.StatePath != "" {
		return state.OpenAt(cfg.StatePath)
	}
	return state.Open()
}
