// Package debug provides cheap, compile-in-but-toggle-at-runtime assertions
// used throughout the engine to catch programming errors (a scratchpad read
// under the wrong tag, an unbalanced buffer refcount, a database with a
// duplicate id) as early and as loudly as possible.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"
)

// Enabled toggles assertion checking. Off by default so that a production
// build pays nothing for them; set THINGSET_DEBUG=1 to turn them on, the
// same on/off-by-env convention the teacher's cmn/debug uses.
var Enabled = os.Getenv("THINGSET_DEBUG") != ""

func Assert(cond bool) {
	if Enabled && !cond {
		panic("assertion failed")
	}
}

func Assertf(cond bool, format string, args ...interface{}) {
	if Enabled && !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

func AssertMsg(cond bool, msg string) {
	if Enabled && !cond {
		panic(msg)
	}
}

func AssertNoErr(err error) {
	if Enabled && err != nil {
		panic(err)
	}
}

func AssertFunc(f func() bool) {
	if Enabled && !f() {
		panic("assertion failed")
	}
}
