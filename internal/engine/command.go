package engine

import (
	"time"

	"github.com/quentel/shufflepod/internal/song"
)

// Command is a transport instruction produced by the reducer. Every
// command carries the revision of the state that produced it; the
// orchestrator drops commands whose revision no longer matches the
// latest state instead of applying them out of order.
type Command interface {
	Revision() uint64
	Name() string
	isCommand()
}

type command struct {
	rev uint64
}

func (c command) Revision() uint64 { return c.rev }
func (command) isCommand()         {}

// PlayCommand starts or resumes playback.
type PlayCommand struct {
	command
	StartAt    time.Duration
	HasStartAt bool
}

func (PlayCommand) Name() string { return "play" }

// PauseCommand pauses playback.
type PauseCommand struct{ command }

func (PauseCommand) Name() string { return "pause" }

// SkipNextCommand advances the transport to the next queue entry.
type SkipNextCommand struct{ command }

func (SkipNextCommand) Name() string { return "skip_next" }

// SkipPreviousCommand moves the transport to the previous queue entry.
type SkipPreviousCommand struct{ command }

func (SkipPreviousCommand) Name() string { return "skip_previous" }

// SeekCommand repositions playback within the current song.
type SeekCommand struct {
	command
	Position time.Duration
}

func (SeekCommand) Name() string { return "seek" }

// SetQueueCommand replaces the transport queue wholesale; playback
// starts from the head. Used for fresh builds.
type SetQueueCommand struct {
	command
	Songs []song.Song
}

func (SetQueueCommand) Name() string { return "set_queue" }

// InsertTailCommand appends songs to the transport queue tail without
// interrupting the current song. Used for single-song active adds.
type InsertTailCommand struct {
	command
	Songs []song.Song
}

func (InsertTailCommand) Name() string { return "insert_tail" }

// ReplaceQueueCommand replaces the transport queue while preserving the
// chosen current entry. Used for rebuilds, reshuffles and removals.
type ReplaceQueueCommand struct {
	command
	Songs   []song.Song
	StartID string
}

func (ReplaceQueueCommand) Name() string { return "replace_queue" }
