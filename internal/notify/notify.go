// Package notify provides desktop notifications via D-Bus.
package notify

import "github.com/quentel/shufflepod/internal/song"

// Urgency represents notification priority levels per freedesktop spec.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	// Returns 0 and nil error if notifications are disabled or unavailable.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
}

// NowPlaying builds a notification for the song that just started.
// Replacing the previous now-playing notification keeps a single slot.
func NowPlaying(sg song.Song, replaces uint32) Notification {
	return Notification{
		Title:      sg.Title,
		Body:       sg.Artist,
		Icon:       sg.ArtworkRef,
		Timeout:    3000,
		ReplacesID: replaces,
		Urgency:    UrgencyLow,
	}
}

// OperationFailed builds a notification for a failed queue operation.
func OperationFailed(op, message string) Notification {
	return Notification{
		Title:   "Operation failed: " + op,
		Body:    message,
		Timeout: 5000,
		Urgency: UrgencyNormal,
	}
}
