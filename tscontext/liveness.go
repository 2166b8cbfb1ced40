// Peer liveness: a table-wide sweep for stale entries, grounded on
// ais/keepalive.go's HBTracker.TimedOut (a single id's last-heard-from
// timestamp compared against an interval), adapted from "is this one peer
// overdue" to "which currently-valid peers are overdue", since a
// PeerTable tracks every peer in one fixed table rather than HBTracker's
// per-server map.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package tscontext

import (
	"time"

	"github.com/google/uuid"

	"github.com/ThingSet/thingset-device-library-sub000/internal/mono"
)

// TimedOut reports whether idx's entry hasn't been heard from within
// interval, mirroring HBTracker.TimedOut's "!ok || mono.Since(t) >
// interval" check; an empty (never-valid) slot counts as timed out.
func (pt *PeerTable) TimedOut(idx int, interval time.Duration) bool {
	e := &pt.entries[idx]
	if !e.Valid {
		return true
	}
	age := time.Duration(mono.MillisNow()-e.LastSeenMs) * time.Millisecond
	return age > interval
}

// Sweep invalidates every currently-valid entry that has timed out against
// interval and returns their peer UIDs. An entry with a request in flight
// is left alone — spec §4.11.4's at-most-one-in-flight guarantee must not
// be broken out from under a pending response by a liveness sweep.
func (pt *PeerTable) Sweep(interval time.Duration) []uuid.UUID {
	var expired []uuid.UUID
	for i := range pt.entries {
		e := &pt.entries[i]
		if !e.Valid || e.InFlight {
			continue
		}
		if pt.TimedOut(i, interval) {
			expired = append(expired, e.UID)
			*e = PeerEntry{}
		}
	}
	return expired
}
