//go:build linux

// Package mpris exposes the player over the MPRIS D-Bus interface so
// desktop media keys and applets control it.
package mpris

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/quentel/shufflepod/internal/engine"
	"github.com/quentel/shufflepod/internal/player"
)

// Adapter connects a ShufflePlayer to MPRIS over D-Bus.
type Adapter struct {
	player *player.ShufflePlayer
	server *server.Server
	done   chan struct{}
}

// New creates and starts a new MPRIS adapter.
func New(p *player.ShufflePlayer) (*Adapter, error) {
	a := &Adapter{
		player: p,
		done:   make(chan struct{}),
	}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{player: p}

	a.server = server.NewServer("shufflepod", rootAdapter, playerAdapter)

	// Start the server in background
	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "ShufflePod", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/mp3"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	player *player.ShufflePlayer
}

func (p *playerAdapter) Next() error {
	return p.player.SkipToNext(context.Background())
}

func (p *playerAdapter) Previous() error {
	return p.player.SkipToPrevious(context.Background())
}

func (p *playerAdapter) Pause() error {
	return p.player.Pause(context.Background())
}

func (p *playerAdapter) PlayPause() error {
	return p.player.TogglePlayback(context.Background())
}

func (p *playerAdapter) Stop() error {
	return p.player.Pause(context.Background())
}

func (p *playerAdapter) Play() error {
	return p.player.Play(context.Background())
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	pos := p.player.PlaybackPosition() + time.Duration(offset)*time.Microsecond
	return p.player.Seek(context.Background(), pos)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.player.Seek(context.Background(), time.Duration(position)*time.Microsecond)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.player.PlaybackState().Kind() {
	case engine.PlaybackPlaying, engine.PlaybackLoading:
		return types.PlaybackStatusPlaying, nil
	case engine.PlaybackPaused:
		return types.PlaybackStatusPaused, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	sg, ok := p.player.CurrentSong()
	if !ok {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(sg.ID)),
		Length:  types.Microseconds(sg.Duration.Microseconds()),
		Title:   sg.Title,
		Artist:  []string{sg.Artist},
		Album:   sg.AlbumTitle,
	}

	if strings.HasPrefix(sg.ArtworkRef, "/") {
		meta.ArtUrl = "file://" + sg.ArtworkRef
	} else if sg.ArtworkRef != "" {
		meta.ArtUrl = sg.ArtworkRef
	}

	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil // Volume control not exposed
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return p.player.PlaybackPosition().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.player.Snapshot().Queue.HasNext(), nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.player.Snapshot().Queue.HasPrevious(), nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.player.Snapshot().Queue.PoolSize() > 0, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle. The
// queue is always a shuffle; turning it "on" again reshuffles upcoming.
func (p *playerAdapter) Shuffle() (bool, error) {
	return true, nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(on bool) error {
	if !on {
		return nil // Sequential playback is not a mode this player has
	}
	alg := p.player.Snapshot().Queue.Algorithm()
	return p.player.Reshuffle(context.Background(), alg)
}

func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
