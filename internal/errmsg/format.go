// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Pool operations
	OpSongAdd    Op = "add song"
	OpSongRemove Op = "remove song"
	OpPoolClear  Op = "clear songs"

	// Queue operations
	OpQueueLoad      Op = "load saved queue"
	OpQueueSave      Op = "save queue"
	OpQueueReshuffle Op = "reshuffle queue"
	OpQueueSync      Op = "sync queue to player"

	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpPlaybackPause Op = "pause playback"
	OpPlaybackSkip  Op = "skip"
	OpPlaybackSeek  Op = "seek"

	// Diagnostics
	OpDiagnosticsExport Op = "export diagnostics"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
