package player

import "github.com/quentel/shufflepod/internal/engine"

const stateBufferSize = 16

// Subscription delivers playback state snapshots. A new subscriber first
// receives the current state, then live updates: late joiners never miss
// the value everyone else already has.
type Subscription struct {
	States <-chan engine.PlaybackState
	Done   <-chan struct{}

	ch   chan engine.PlaybackState
	done chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		ch:   make(chan engine.PlaybackState, stateBufferSize),
		done: make(chan struct{}),
	}
	s.States = s.ch
	s.Done = s.done
	return s
}

// send delivers a snapshot without blocking; a full buffer drops the
// oldest observable value in favor of liveness.
func (s *Subscription) send(st engine.PlaybackState) {
	select {
	case s.ch <- st:
	default:
	}
}

func (s *Subscription) close() {
	close(s.done)
}
