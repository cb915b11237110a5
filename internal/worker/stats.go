package worker

import "sync"

// Stats counts handoffs. It is an exchange.Observer[int]: registered on the
// exchange it is updated in handoff order, and one mutex keeps every
// Snapshot consistent (Consumed <= Produced <= Consumed+1).
// The zero value is ready to use.
type Stats struct {
	mu   sync.Mutex
	snap Snapshot
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Produced     uint64 `json:"produced"`
	Consumed     uint64 `json:"consumed"`
	LastProduced int64  `json:"lastProduced"`
	LastConsumed int64  `json:"lastConsumed"`
}

// Produced counts a value placed in the slot.
func (s *Stats) Produced(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Produced++
	s.snap.LastProduced = int64(v)
}

// Consumed counts a value taken from the slot.
func (s *Stats) Consumed(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Consumed++
	s.snap.LastConsumed = int64(v)
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
