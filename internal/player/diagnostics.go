package player

import (
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/quentel/shufflepod/internal/engine"
	"github.com/quentel/shufflepod/internal/song"
)

// InvariantCheck is an on-demand recomputation of queue health.
type InvariantCheck struct {
	QueueHasDuplicates  bool     `json:"queue_has_duplicates"`
	MembershipMismatch  bool     `json:"membership_mismatch"`
	Stale               bool     `json:"stale"`
	CurrentIndexValid   bool     `json:"current_index_valid"`
	PoolCount           int      `json:"pool_count"`
	QueueCount          int      `json:"queue_count"`
	PlayedCount         int      `json:"played_count"`
	TransportEntryCount int      `json:"transport_entry_count"`
	TransportParity     bool     `json:"transport_parity"`
	Reasons             []string `json:"reasons,omitempty"`
}

func checkInvariants(st engine.State, transportCount int) InvariantCheck {
	q := st.Queue
	order := q.Order()

	check := InvariantCheck{
		PoolCount:           q.PoolSize(),
		QueueCount:          len(order),
		PlayedCount:         q.PlayedCount(),
		TransportEntryCount: transportCount,
	}

	seen := make(map[string]struct{}, len(order))
	for _, e := range order {
		if _, dup := seen[e.ID]; dup {
			check.QueueHasDuplicates = true
		}
		seen[e.ID] = struct{}{}
	}
	if len(order) > 0 {
		if len(seen) != q.PoolSize() {
			check.MembershipMismatch = true
		} else {
			for _, p := range q.PoolSongs() {
				if _, ok := seen[p.ID]; !ok {
					check.MembershipMismatch = true
					break
				}
			}
		}
	}
	check.Stale = q.IsStale()
	check.CurrentIndexValid = len(order) == 0 ||
		(q.CurrentIndex() >= 0 && q.CurrentIndex() < len(order))
	check.TransportParity = transportCount == len(order)

	if check.QueueHasDuplicates {
		check.Reasons = append(check.Reasons, "queue order contains duplicate ids")
	}
	if check.MembershipMismatch {
		check.Reasons = append(check.Reasons, "queue order membership does not match pool")
	}
	if !check.CurrentIndexValid {
		check.Reasons = append(check.Reasons, "current index out of range")
	}
	if !check.TransportParity {
		check.Reasons = append(check.Reasons, "transport entry count differs from queue order")
	}
	return check
}

// DiagnosticsSnapshot is the structured export consumed by support
// tooling.
type DiagnosticsSnapshot struct {
	ID              string            `json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	Trigger         string            `json:"trigger"`
	Detail          string            `json:"detail,omitempty"`
	Uptime          string            `json:"uptime"`
	Revision        uint64            `json:"revision"`
	QueueNeedsBuild bool              `json:"queue_needs_build"`
	Playback        string            `json:"playback"`
	Algorithm       string            `json:"algorithm"`
	PoolSongIDs     []string          `json:"pool_song_ids"`
	QueueSongIDs    []string          `json:"queue_song_ids"`
	CurrentSongID   string            `json:"current_song_id,omitempty"`
	CurrentIndex    int               `json:"current_index"`
	PlayedSongIDs   []string          `json:"played_song_ids"`
	Invariants      InvariantCheck    `json:"invariants"`
	Telemetry       Telemetry         `json:"telemetry"`
	Journal         []OperationRecord `json:"journal"`
}

func (p *ShufflePlayer) snapshotLocked(trigger, detail string) DiagnosticsSnapshot {
	st := p.state
	played := lo.Keys(st.Queue.PlayedIDs())
	sort.Strings(played)

	snap := DiagnosticsSnapshot{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		Trigger:         trigger,
		Detail:          detail,
		Uptime:          humanize.Time(p.startedAt),
		Revision:        st.Revision,
		QueueNeedsBuild: st.QueueNeedsBuild,
		Playback:        st.Playback.String(),
		Algorithm:       st.Queue.Algorithm().String(),
		PoolSongIDs:     song.IDs(st.Queue.PoolSongs()),
		QueueSongIDs:    song.IDs(st.Queue.Order()),
		CurrentIndex:    st.Queue.CurrentIndex(),
		PlayedSongIDs:   played,
		Invariants:      checkInvariants(st, p.lastTransportCount),
		Telemetry:       p.tel,
		Journal:         p.journal.recent(),
	}
	if cur, ok := st.Queue.CurrentSong(); ok {
		snap.CurrentSongID = cur.ID
	}
	return snap
}
