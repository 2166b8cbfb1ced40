package tscontext

import "github.com/google/uuid"

// NoPort marks the absence of a port slot in routing metadata — the
// spec's INVALID destination-port sentinel (spec §4.11.4).
const NoPort = -1

// RouteInfo is the per-call routing context package dispatch needs for
// step 4.11.4's forwarding decision: which port a message arrived on,
// which port (if any) it is explicitly addressed to, and which peer it
// belongs to for the in-flight/peer-table bookkeeping. A Core context (no
// ports) always passes both ports set to NoPort and a zero Peer.
type RouteInfo struct {
	SourcePort int
	DestPort   int
	Peer       uuid.UUID
}
