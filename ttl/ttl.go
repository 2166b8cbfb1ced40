// Package ttl defines the two reserved timeout sentinels shared by every
// blocking operation in the engine (buffer allocate, mutex acquire, port
// transmit — spec §5): IMMEDIATE, which never blocks, and FOREVER, which
// blocks without a deadline.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package ttl

import "time"

const (
	IMMEDIATE time.Duration = 0
	FOREVER   time.Duration = -1
)

// Deadline returns the wall-clock deadline for d computed from now, and ok
// reporting whether d is a genuine deadline (false for FOREVER).
func Deadline(d time.Duration) (deadline time.Time, ok bool) {
	if d == FOREVER {
		return time.Time{}, false
	}
	return time.Now().Add(d), true
}
