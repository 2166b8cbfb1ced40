package tscontext

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPeerTableGetOrEvictReusesExisting(t *testing.T) {
	pt := NewPeerTable(4)
	uid := uuid.New()
	idx := pt.GetOrEvict(uid)
	pt.Touch(idx)
	again := pt.GetOrEvict(uid)
	require.Equal(t, idx, again)
}

// TestPeerTableLRUEviction proves spec §8's LRU-eviction property:
// inserting N+1 distinct peer UIDs into an N-entry table evicts the entry
// with the smallest last_seen_ms.
func TestPeerTableLRUEviction(t *testing.T) {
	pt := NewPeerTable(3)
	uids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	idxs := make([]int, 3)
	for i, u := range uids {
		idxs[i] = pt.GetOrEvict(u)
	}
	// stamp distinct ages: uids[0] oldest, uids[2] newest.
	pt.Entry(idxs[0]).LastSeenMs = 100
	pt.Entry(idxs[1]).LastSeenMs = 200
	pt.Entry(idxs[2]).LastSeenMs = 300

	fresh := uuid.New()
	newIdx := pt.GetOrEvict(fresh)
	require.Equal(t, idxs[0], newIdx, "the smallest last_seen_ms entry should have been evicted")

	_, stillThere := pt.Lookup(uids[0])
	require.False(t, stillThere)
	_, stillThere = pt.Lookup(uids[1])
	require.True(t, stillThere)
}

func TestPeerTableLookupMissing(t *testing.T) {
	pt := NewPeerTable(2)
	_, ok := pt.Lookup(uuid.New())
	require.False(t, ok)
}
