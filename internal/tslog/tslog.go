// Package tslog centralizes logging so the rest of the engine never imports
// glog directly (mirrors the teacher importing its in-repo glog fork from a
// single well-known path).
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package tslog

import "github.com/golang/glog"

func Infof(format string, args ...interface{})    { glog.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }

// V reports whether verbosity level l is enabled, for hot-path trace logging
// that should not format its arguments unless someone is actually watching.
func V(l glog.Level) bool { return bool(glog.V(l)) }
