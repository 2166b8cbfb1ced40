// Package tscontext implements the ThingSet context (spec §4.12, component
// C12): the serialization domain a message is processed under, in its two
// variants — Core (single embedded response buffer, no ports) and Com
// (port table + peer table, for store-and-forward routing).
//
// Grounded on REDESIGN FLAGS' "per-variant context accessed as a base
// pointer + offset" → a Go sum type: a Header carrying the fields common to
// both variants, and a Context interface implemented by *Core and *Com.
// The recursive mutex the source uses is replaced per REDESIGN FLAGS with a
// plain sync.Mutex: package dispatch's Process acquires it exactly once per
// call and every tscontext/ dispatch helper below the lock is non-locking.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package tscontext

import (
	"sync"

	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/tscfg"
)

// MaxPorts is the static port-slot bound a Com context's table never
// exceeds (spec §6: "PORT_COUNT ≤ 5").
const MaxPorts = 5

// Header holds the fields common to every context variant (spec §4.12:
// "{auth, mutex, protocol_use_bin}").
type Header struct {
	mu             sync.Mutex
	auth           obj.Role
	protocolUseBin bool
	db             *obj.Database
}

// Context is the sum type spec §4.12 describes: Core or Com, accessed
// through the fields and locking discipline they share.
type Context interface {
	Lock()
	Unlock()
	Auth() obj.Role
	SetAuth(obj.Role)
	ProtocolUseBin() bool
	Database() *obj.Database
}

func (h *Header) Lock()   { h.mu.Lock() }
func (h *Header) Unlock() { h.mu.Unlock() }

func (h *Header) Auth() obj.Role      { return h.auth }
func (h *Header) SetAuth(a obj.Role)  { h.auth = a }
func (h *Header) ProtocolUseBin() bool { return h.protocolUseBin }
func (h *Header) Database() *obj.Database { return h.db }

// Core is the library-as-embedded-codec variant: a single response buffer
// pointer, no ports (spec §4.12). The buffer itself is owned by whichever
// caller invokes dispatch.ProcessBuf; Core only carries the context state
// dispatch needs to process a message against db.
type Core struct {
	Header
}

var _ Context = (*Core)(nil)

// NewCore builds a Core context bound to db, with the initial
// authorization mask and wire encoding preference the caller supplies.
func NewCore(db *obj.Database, auth obj.Role, protocolUseBin bool) *Core {
	return &Core{Header{auth: auth, protocolUseBin: protocolUseBin, db: db}}
}

// Com is the port-table/peer-table variant used for store-and-forward
// routing between up to MaxPorts ports (spec §4.12).
type Com struct {
	Header

	ports     [MaxPorts]Port
	portLocID [MaxPorts]uint8
	portBound [MaxPorts]bool

	Peers   *PeerTable
	Remotes *obj.RemotePool
}

var _ Context = (*Com)(nil)

// NewCom builds a Com context bound to db, with a peer table sized
// peerTableSize (spec §6: "REMOTE_COUNT"-adjacent peer table size config).
// The shared remote-object arena (spec §3, §6 "REMOTE_OBJECT_COUNT") is
// sized from the current global config (tscfg.GCO) rather than a
// constructor parameter, unlike the peer table size above.
func NewCom(db *obj.Database, auth obj.Role, protocolUseBin bool, peerTableSize int) *Com {
	return &Com{
		Header:  Header{auth: auth, protocolUseBin: protocolUseBin, db: db},
		Peers:   NewPeerTable(peerTableSize),
		Remotes: obj.NewRemotePool(tscfg.GCO.Get().RemoteObjectCount),
	}
}

// BindPort assigns port to slot, bound to locid (spec §4.12:
// "Initialization binds each port to a single locid").
func (c *Com) BindPort(slot int, locid uint8, port Port) {
	c.ports[slot] = port
	c.portLocID[slot] = locid
	c.portBound[slot] = true
}

// PortAt returns the port bound to slot and whether a port is bound there.
func (c *Com) PortAt(slot int) (Port, bool) {
	if slot < 0 || slot >= MaxPorts || !c.portBound[slot] {
		return nil, false
	}
	return c.ports[slot], true
}

// PortSlots returns the slot indices currently bound to locid, in slot
// order, for Run and for dispatch's routing step (spec §4.11.4).
func (c *Com) PortSlots(locid uint8) []int {
	var slots []int
	for i := 0; i < MaxPorts; i++ {
		if c.portBound[i] && c.portLocID[i] == locid {
			slots = append(slots, i)
		}
	}
	return slots
}
