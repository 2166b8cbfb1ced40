// Remote-object pool: the dynamic half of the object database (spec §3,
// §5, §9). Unlike a Database's descriptor table — built once, immutable
// for the life of the process — a com context discovers remote objects
// lazily from peer traffic and must be able to let them go again.
//
// Grounded on the same split the teacher draws between LOM's static
// bucket-properties table and its lifecycle-managed (refcounted, evicted)
// runtime state (cluster/lom.go), here applied to remote rather than
// local objects.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package obj

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ThingSet/thingset-device-library-sub000/status"
)

// RemoteID identifies one of up to REMOTE_COUNT tracked remote databases a
// com context proxies into its own oref space (spec §6 "REMOTE_COUNT ≤ 8"),
// distinct from a local Database's own id.
type RemoteID = uint8

// remoteSlot is one arena entry: a descriptor discovered from a remote
// peer, refcounted so more than one local oref can reference the same
// remote object without re-fetching it.
type remoteSlot struct {
	valid    bool
	peer     uuid.UUID
	remote   RemoteID
	desc     Descriptor
	refcount int32
}

// RemotePool is the shared, arena-backed pool for remote-peer objects
// (spec §3: "a shared pool for remote-peer objects indexed by peer UUID...
// refcounted, allocated via an arena-backed dynamic pool, freed when the
// last reference drops"). Capacity is fixed at construction
// (REMOTE_OBJECT_COUNT, spec §6); entries come and go as peers are
// discovered and dropped, so — unlike a Database's immutable table — the
// pool carries its own lock (spec §5: "Remote-object arena — shared,
// internally synchronized").
type RemotePool struct {
	mu      sync.Mutex
	entries []remoteSlot
}

// NewRemotePool allocates an arena with room for capacity entries.
func NewRemotePool(capacity int) *RemotePool {
	return &RemotePool{entries: make([]remoteSlot, capacity)}
}

// Connect finds the existing entry for (peer, desc.ID) under remote,
// bumping its refcount, or claims a free arena slot for it. Returns
// status.ErrOOM if the arena is full.
func (p *RemotePool) Connect(remote RemoteID, peer uuid.UUID, desc Descriptor) (Oref, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := -1
	for i := range p.entries {
		e := &p.entries[i]
		if !e.valid {
			if free < 0 {
				free = i
			}
			continue
		}
		if e.peer == peer && e.remote == remote && e.desc.ID == desc.ID {
			e.refcount++
			return Oref{DB: remote, Slot: int32(i)}, nil
		}
	}
	if free < 0 {
		return Oref{}, status.ErrOOM("obj: remote-object pool exhausted")
	}
	p.entries[free] = remoteSlot{valid: true, peer: peer, remote: remote, desc: desc, refcount: 1}
	return Oref{DB: remote, Slot: int32(free)}, nil
}

// Ref increments the refcount of an already-connected remote object.
func (p *RemotePool) Ref(oref Oref) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.at(oref)
	if err != nil {
		return err
	}
	e.refcount++
	return nil
}

// Disconnect drops one reference to oref.
//
// Per the open question carried from spec §9 ("the remote-object
// disconnect path returns 0 without updating the refcount; whether this is
// an unfinished feature or deliberate is unstated"), this reproduces that
// behavior rather than silently resolving it: the refcount is left
// untouched and Disconnect always reports 0, so a caller cannot currently
// distinguish "this freed the last reference" from "this entry is still
// referenced elsewhere" by the return value alone. Not fixed here — see
// DESIGN.md.
func (p *RemotePool) Disconnect(oref Oref) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = p.at(oref)
	return 0
}

// Descriptor returns the descriptor discovered for oref, if still present.
func (p *RemotePool) Descriptor(oref Oref) (Descriptor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.at(oref)
	if err != nil {
		return Descriptor{}, false
	}
	return e.desc, true
}

func (p *RemotePool) at(oref Oref) (*remoteSlot, error) {
	if oref.Slot < 0 || int(oref.Slot) >= len(p.entries) {
		return nil, status.ErrNotFound("obj: remote oref %v out of range", oref)
	}
	e := &p.entries[oref.Slot]
	if !e.valid {
		return nil, status.ErrNotFound("obj: remote oref %v not connected", oref)
	}
	return e, nil
}
