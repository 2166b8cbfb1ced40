// Command tsnode is a minimal ThingSet node: it loads a config, builds a
// small demo object database, and processes request lines either from
// -request (a single one-shot message) or from stdin (a REPL-style run
// loop), printing each response on stdout.
//
// Grounded on the teacher's daemon-main idiom: stdlib flag registers both
// tsnode's own flags and glog's (glog.init wires itself into the flag
// package), flag.Parse runs once at the top of main, and config is loaded
// into the GCO before anything else touches it.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/ThingSet/thingset-device-library-sub000/dispatch"
	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/tscfg"
	"github.com/ThingSet/thingset-device-library-sub000/tscontext"
)

var (
	configPath = flag.String("config", "", "path to a tsnode config file (.yaml or .json); defaults built in if empty")
	request    = flag.String("request", "", "process a single request line and exit instead of reading stdin")
	auth       = flag.String("role", "expert", "authorization role to run as: user, expert, or maker")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		glog.Errorf("tsnode: %v", err)
		os.Exit(1)
	}
	tscfg.GCO.Put(cfg)

	role, err := parseRole(*auth)
	if err != nil {
		glog.Errorf("tsnode: %v", err)
		os.Exit(1)
	}

	db, err := demoDatabase()
	if err != nil {
		glog.Errorf("tsnode: building demo database: %v", err)
		os.Exit(1)
	}
	core := tscontext.NewCore(db, role, false)

	if *request != "" {
		out, err := dispatch.ProcessBuf(context.Background(), core, []byte(*request))
		if err != nil {
			glog.Errorf("tsnode: %v", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	runLoop(core)
}

func loadConfig(path string) (*tscfg.Config, error) {
	if path == "" {
		return tscfg.Default(), nil
	}
	return tscfg.Load(path)
}

func parseRole(s string) (obj.Role, error) {
	switch s {
	case "user":
		return obj.RoleUser, nil
	case "expert":
		return obj.RoleExpert, nil
	case "maker":
		return obj.RoleMaker, nil
	}
	return 0, fmt.Errorf("unknown role %q (want user, expert, or maker)", s)
}

// runLoop reads one request line at a time from stdin until EOF, mirroring
// the teacher's goroutine-per-connection run loops without any network
// transport: this is the Core context's single-process, single-caller
// case (spec §4.12's process_buf, called directly rather than through a
// tscontext.Com port).
func runLoop(core *tscontext.Core) {
	glog.Infof("tsnode: reading requests from stdin, one per line")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out, err := dispatch.ProcessBuf(context.Background(), core, []byte(line))
		if err != nil {
			glog.Warningf("tsnode: %v", err)
			continue
		}
		fmt.Println(string(out))
	}
	if err := scanner.Err(); err != nil {
		glog.Errorf("tsnode: reading stdin: %v", err)
	}
}

// demoDatabase builds the small object tree spec.md's worked examples use:
// a writable f32 measurement, a read-only i32, and a zero-argument reset
// function, all under a couple of groups.
func demoDatabase() (*obj.Database, error) {
	var f32 float32 = 1.0
	var i32 int32 = 2

	return obj.NewDatabase(0, []obj.Descriptor{
		{ID: 1, Name: "conf", ParentID: 0, Type: obj.TGroup},
		{ID: 2, Name: "f32", ParentID: 1, Type: obj.TF32,
			AccessDefault: obj.ReadAccess(obj.RoleUser, obj.RoleExpert, obj.RoleMaker) | obj.WriteAccess(obj.RoleExpert, obj.RoleMaker),
			Scalar: &obj.Value{
				Get: func() interface{} { return f32 },
				Set: func(v interface{}) error { f32 = v.(float32); return nil },
			}},
		{ID: 3, Name: "i32_readonly", ParentID: 1, Type: obj.TI32,
			AccessDefault: obj.ReadAccess(obj.RoleUser, obj.RoleExpert, obj.RoleMaker),
			Scalar: &obj.Value{
				Get: func() interface{} { return i32 },
				Set: func(v interface{}) error { i32 = v.(int32); return nil },
			}},
		{ID: 4, Name: "rpc", ParentID: 0, Type: obj.TGroup},
		{ID: 5, Name: "x-reset", ParentID: 4, Type: obj.TFunction,
			AccessDefault: obj.WriteAccess(obj.RoleExpert, obj.RoleMaker),
			Function: &obj.FunctionValue{Call: func() error {
				f32 = 1.0
				i32 = 2
				return nil
			}}},
	})
}
