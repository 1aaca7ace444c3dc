package player

import "time"

// OperationRecord is one entry in the bounded operation journal.
type OperationRecord struct {
	Time     time.Time `json:"time"`
	Op       string    `json:"op"`
	Detail   string    `json:"detail,omitempty"`
	Revision uint64    `json:"revision"`
	NoOp     bool      `json:"no_op,omitempty"`
	Err      string    `json:"err,omitempty"`
}

// journal is a fixed-size ring of operation records, oldest evicted
// first. It is owned by the orchestrator and only touched under its
// lock.
type journal struct {
	max     int
	records []OperationRecord
}

func newJournal(max int) *journal {
	if max <= 0 {
		max = defaultJournalSize
	}
	return &journal{max: max}
}

func (j *journal) add(r OperationRecord) {
	j.records = append(j.records, r)
	if len(j.records) > j.max {
		j.records = j.records[len(j.records)-j.max:]
	}
}

// recent returns the journal newest-first.
func (j *journal) recent() []OperationRecord {
	out := make([]OperationRecord, len(j.records))
	for i, r := range j.records {
		out[len(j.records)-1-i] = r
	}
	return out
}

func (j *journal) reset() {
	j.records = nil
}

// Telemetry holds drift counters for diagnostics. Counters only grow;
// HardReset zeroes them.
type Telemetry struct {
	StaleCommandsSkipped uint64 `json:"stale_commands_skipped"`
	Rollbacks            uint64 `json:"rollbacks"`
	Reconciliations      uint64 `json:"reconciliations"`
	ResolutionsApplied   uint64 `json:"resolutions_applied"`
	NoticesRecorded      uint64 `json:"notices_recorded"`
}
