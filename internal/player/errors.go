package player

import (
	"errors"
	"fmt"
	"time"
)

// ErrCapacityReached is returned when an add would push the song pool
// past its hard cap. It is validated before any transport call.
var ErrCapacityReached = errors.New("song pool capacity reached")

// PlaybackError reports a failed or skipped transport command. Local
// state has already been rolled back when one is returned.
type PlaybackError struct {
	Op  string
	Msg string
	Err error
}

func (e *PlaybackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("playback failed: %s: %v", e.Msg, e.Err)
	}
	return "playback failed: " + e.Msg
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// OperationNotice is a non-blocking record of a failure surfaced for
// observability alongside the error returned to the immediate caller.
// The surrounding application shows these as transient dismissible
// notices.
type OperationNotice struct {
	Time    time.Time
	Op      string
	Message string
}
