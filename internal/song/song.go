// Package song defines the immutable track value the rest of the
// application passes around. Identity is the ID string, which is stable
// across transport namespaces.
package song

import "time"

// Song identifies a playable track.
type Song struct {
	ID         string
	Title      string
	Artist     string
	AlbumTitle string
	ArtworkRef string        // optional artwork reference
	PlayCount  int           // lifetime play count, never negative
	LastPlayed time.Time     // zero value means never played
	Duration   time.Duration // optional, 0 if unknown
}

// Same reports whether two songs are the same track.
// Songs are compared by ID only.
func (s Song) Same(other Song) bool {
	return s.ID == other.ID
}

// NeverPlayed reports whether the song has no recorded play.
func (s Song) NeverPlayed() bool {
	return s.LastPlayed.IsZero()
}

// IDs returns the IDs of the given songs, in order.
func IDs(songs []Song) []string {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}
