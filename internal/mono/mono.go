// Package mono provides a monotonic millisecond clock for peer last-seen
// tracking and RTT-style timeout estimation, so that a wall-clock step
// (NTP sync, DST, operator clock change) never corrupts the com context's
// peer table or keepalive timing. Grounded on ais/keepalive.go's own mono
// package (mono.NanoTime/mono.Since).
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import (
	"time"

	"golang.org/x/sys/unix"
)

// NanoTime returns a monotonic clock reading in nanoseconds. It has no
// relation to wall-clock time and is only meaningful relative to another
// NanoTime() reading.
func NanoTime() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now().UnixNano()
	}
	return ts.Nano()
}

func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }

// MillisNow is the monotonic millisecond stamp used for last_seen_ms in
// the peer table (spec §3, §4.12).
func MillisNow() int64 { return NanoTime() / int64(time.Millisecond) }
