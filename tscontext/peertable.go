package tscontext

import (
	"github.com/google/uuid"

	"github.com/ThingSet/thingset-device-library-sub000/internal/mono"
)

// PeerEntry records one peer's routing state: which port a request came in
// on and which port its response must go back out, plus the recency stamp
// eviction picks on (spec §4.11.4, §4.12).
type PeerEntry struct {
	UID        uuid.UUID
	Valid      bool
	LastSeenMs int64
	SourcePort int
	DestPort   int
	InFlight   bool
}

// PeerTable is a fixed-size, LRU-by-last_seen_ms peer table (spec §4.12).
// Grounded on ais/keepalive.go's HBTracker (map[string]int64 heard-from
// tracking + TimedOut), adapted to the spec's fixed capacity and
// phantom-reinitialization-on-eviction requirement that HBTracker's
// unbounded map doesn't need: callers hold the owning context's mutex
// while calling these methods (spec §5: "Peer table — guarded by the
// owning context's mutex"), so PeerTable itself does no locking of its
// own.
type PeerTable struct {
	entries []PeerEntry
}

// NewPeerTable builds a table with size entries, all initially empty.
func NewPeerTable(size int) *PeerTable {
	return &PeerTable{entries: make([]PeerEntry, size)}
}

// Len is the table's fixed capacity.
func (pt *PeerTable) Len() int { return len(pt.entries) }

// Lookup returns the slot index holding uid's entry, if any.
func (pt *PeerTable) Lookup(uid uuid.UUID) (int, bool) {
	for i := range pt.entries {
		if pt.entries[i].Valid && pt.entries[i].UID == uid {
			return i, true
		}
	}
	return -1, false
}

// GetOrEvict returns uid's existing slot, or claims a free slot, or evicts
// the entry with the smallest LastSeenMs — ties broken by the lowest index
// (spec §4.12, §8's LRU-eviction testable property) — reinitializing the
// chosen slot as a phantom entry for uid.
func (pt *PeerTable) GetOrEvict(uid uuid.UUID) int {
	if idx, ok := pt.Lookup(uid); ok {
		return idx
	}
	for i := range pt.entries {
		if !pt.entries[i].Valid {
			pt.entries[i] = PeerEntry{UID: uid, Valid: true, LastSeenMs: mono.MillisNow()}
			return i
		}
	}
	evictIdx := 0
	for i := 1; i < len(pt.entries); i++ {
		if pt.entries[i].LastSeenMs < pt.entries[evictIdx].LastSeenMs {
			evictIdx = i
		}
	}
	PeerEvictionsTotal.Inc()
	pt.entries[evictIdx] = PeerEntry{UID: uid, Valid: true, LastSeenMs: mono.MillisNow()}
	return evictIdx
}

// Entry returns a pointer to the entry at idx for in-place updates
// (last_seen, in-flight flag, routing ports).
func (pt *PeerTable) Entry(idx int) *PeerEntry { return &pt.entries[idx] }

// Touch stamps idx's entry with the current time, the common "heard from
// this peer" update after routing a request or response (spec §4.11.6).
func (pt *PeerTable) Touch(idx int) {
	pt.entries[idx].LastSeenMs = mono.MillisNow()
}
