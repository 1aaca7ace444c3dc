// Package shuffle builds play orders from a pool of songs.
// All functions are pure: they never mutate their input and are
// deterministic for a given random source.
package shuffle

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/quentel/shufflepod/internal/song"
)

// Algorithm selects how a play order is built from the pool.
type Algorithm int

const (
	// PureRandom samples with replacement; duplicates are expected.
	// Used for arbitrarily long generated playlists, never for the
	// transport queue.
	PureRandom Algorithm = iota
	// NoRepeat is a uniform random permutation of the pool.
	NoRepeat
	// WeightedByRecency permutes the pool, biased toward songs played
	// least recently. Never-played songs sort toward the front.
	WeightedByRecency
	// WeightedByPlayCount permutes the pool, biased toward songs with
	// the lowest play count.
	WeightedByPlayCount
	// ArtistSpacing permutes the pool while avoiding two consecutive
	// songs by the same artist whenever the distribution allows it.
	ArtistSpacing
)

// String returns the algorithm name as used in config and persistence.
func (a Algorithm) String() string {
	switch a {
	case PureRandom:
		return "pure_random"
	case NoRepeat:
		return "no_repeat"
	case WeightedByRecency:
		return "weighted_recency"
	case WeightedByPlayCount:
		return "weighted_playcount"
	case ArtistSpacing:
		return "artist_spacing"
	default:
		return "unknown"
	}
}

// Parse converts a config/persistence name back to an Algorithm.
func Parse(name string) (Algorithm, error) {
	switch name {
	case "pure_random":
		return PureRandom, nil
	case "no_repeat":
		return NoRepeat, nil
	case "weighted_recency":
		return WeightedByRecency, nil
	case "weighted_playcount":
		return WeightedByPlayCount, nil
	case "artist_spacing":
		return ArtistSpacing, nil
	default:
		return NoRepeat, fmt.Errorf("unknown shuffle algorithm %q", name)
	}
}

// Shuffle builds a play order from songs using the given algorithm.
//
// count only applies to PureRandom and may exceed len(songs); when it is
// zero or negative, len(songs) is used. Every other algorithm returns a
// permutation of songs: same IDs, no duplicates, no omissions.
func Shuffle(r *rand.Rand, songs []song.Song, count int, alg Algorithm) []song.Song {
	if len(songs) == 0 {
		return nil
	}
	switch alg {
	case PureRandom:
		return pureRandom(r, songs, count)
	case NoRepeat:
		return noRepeat(r, songs)
	case WeightedByRecency:
		return drawWeighted(r, songs, recencyWeights(songs, time.Now()))
	case WeightedByPlayCount:
		return drawWeighted(r, songs, playCountWeights(songs))
	case ArtistSpacing:
		return artistSpacing(r, songs)
	default:
		return noRepeat(r, songs)
	}
}

// pureRandom samples with replacement. Duplicates are expected.
func pureRandom(r *rand.Rand, songs []song.Song, count int) []song.Song {
	if count <= 0 {
		count = len(songs)
	}
	out := make([]song.Song, count)
	for i := range out {
		out[i] = songs[r.IntN(len(songs))]
	}
	return out
}

// noRepeat is a Fisher-Yates permutation of the input.
func noRepeat(r *rand.Rand, songs []song.Song) []song.Song {
	out := make([]song.Song, len(songs))
	copy(out, songs)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// recencyWeights assigns each song a weight proportional to how long ago
// it was last played. Never-played songs get the maximal weight.
func recencyWeights(songs []song.Song, now time.Time) []float64 {
	weights := make([]float64, len(songs))
	maxAge := 0.0
	for i, s := range songs {
		if s.NeverPlayed() {
			continue
		}
		age := now.Sub(s.LastPlayed).Seconds()
		if age < 1 {
			age = 1
		}
		weights[i] = age
		if age > maxAge {
			maxAge = age
		}
	}
	if maxAge == 0 {
		maxAge = 1
	}
	for i, s := range songs {
		if s.NeverPlayed() {
			weights[i] = maxAge * 2
		}
	}
	return weights
}

// playCountWeights assigns weights inversely related to play count.
func playCountWeights(songs []song.Song) []float64 {
	weights := make([]float64, len(songs))
	for i, s := range songs {
		weights[i] = 1.0 / float64(s.PlayCount+1)
	}
	return weights
}

// drawWeighted draws all songs without replacement, each draw proportional
// to the remaining weights. Produces a full permutation biased toward
// higher-weighted songs first.
func drawWeighted(r *rand.Rand, songs []song.Song, weights []float64) []song.Song {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		// Degenerate weights, fall back to a uniform permutation.
		return noRepeat(r, songs)
	}

	out := make([]song.Song, 0, len(songs))
	used := make([]bool, len(songs))

	for len(out) < len(songs) {
		x := r.Float64() * total
		cumulative := 0.0
		picked := -1
		for i := range songs {
			if used[i] {
				continue
			}
			cumulative += weights[i]
			if x <= cumulative {
				picked = i
				break
			}
		}
		if picked < 0 {
			// Float rounding can leave x just past the last bucket.
			for i := len(songs) - 1; i >= 0; i-- {
				if !used[i] {
					picked = i
					break
				}
			}
		}
		used[picked] = true
		total -= weights[picked]
		out = append(out, songs[picked])
	}
	return out
}

// artistSpacing permutes the pool, avoiding two consecutive songs by the
// same artist where the artist distribution makes that possible. When one
// artist dominates, spacing degrades to best effort; the function always
// terminates and always returns every input song exactly once.
func artistSpacing(r *rand.Rand, songs []song.Song) []song.Song {
	// Group by artist; artists keeps a stable iteration order so the
	// result depends only on the random source.
	buckets := make(map[string][]song.Song, len(songs))
	var artists []string
	for _, s := range songs {
		if _, seen := buckets[s.Artist]; !seen {
			artists = append(artists, s.Artist)
		}
		buckets[s.Artist] = append(buckets[s.Artist], s)
	}
	// Shuffle each bucket so song order within an artist is random.
	for _, artist := range artists {
		bucket := buckets[artist]
		for i := len(bucket) - 1; i > 0; i-- {
			j := r.IntN(i + 1)
			bucket[i], bucket[j] = bucket[j], bucket[i]
		}
	}

	out := make([]song.Song, 0, len(songs))
	lastArtist := ""
	for len(out) < len(songs) {
		// Prefer artists with the most songs left; draining the largest
		// bucket first keeps the tail spaceable. Random tie-break.
		var ties []string
		bestCount := 0
		for _, artist := range artists {
			bucket := buckets[artist]
			if len(bucket) == 0 || artist == lastArtist {
				continue
			}
			switch {
			case len(bucket) > bestCount:
				bestCount = len(bucket)
				ties = ties[:0]
				ties = append(ties, artist)
			case len(bucket) == bestCount:
				ties = append(ties, artist)
			}
		}
		if len(ties) == 0 {
			// Only the previous artist remains: append the rest.
			out = append(out, buckets[lastArtist]...)
			buckets[lastArtist] = nil
			continue
		}
		pick := ties[r.IntN(len(ties))]
		bucket := buckets[pick]
		out = append(out, bucket[len(bucket)-1])
		buckets[pick] = bucket[:len(bucket)-1]
		lastArtist = pick
	}
	return out
}
