package tscontext

import (
	"context"
	"sync"
	"time"

	"github.com/ThingSet/thingset-device-library-sub000/internal/tslog"
	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
)

// Run invokes the polling routine of every port bound to locid, handing
// each message it receives to handle — typically a closure over
// dispatch.Process bound to this context and that port's slot (spec
// §4.12: "run(locid) invokes each bound port's polling routine"). Each
// port polls on its own goroutine (spec §5: "ports may run on distinct
// threads"); Run blocks until goCtx is cancelled.
func (c *Com) Run(goCtx context.Context, locid uint8, handle func(slot int, msg *tsmsg.Message)) {
	var wg sync.WaitGroup
	for _, slot := range c.PortSlots(locid) {
		port, ok := c.PortAt(slot)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(slot int, port Port) {
			defer wg.Done()
			for {
				msg, err := port.Poll(goCtx)
				if err != nil {
					if goCtx.Err() != nil {
						return
					}
					tslog.Warningf("tscontext: port %d poll error: %v", slot, err)
					continue
				}
				handle(slot, msg)
			}
		}(slot, port)
	}
	wg.Wait()
}

// RunLivenessSweep periodically evicts peers that haven't been heard from
// within timeout, ticking every timeout/2 (grounded on ais/keepalive.go's
// own ticker-driven Run loop). Callers hold no lock across Sweep since the
// caller is expected to run this under the same discipline as Run: it
// acquires the context's own lock around each sweep, matching spec §5's
// "Peer table — guarded by the owning context's mutex". Blocks until
// goCtx is cancelled.
func (c *Com) RunLivenessSweep(goCtx context.Context, timeout time.Duration) {
	ticker := time.NewTicker(timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-goCtx.Done():
			return
		case <-ticker.C:
			c.Lock()
			expired := c.Peers.Sweep(timeout)
			c.Unlock()
			for _, uid := range expired {
				tslog.Infof("tscontext: peer %s timed out, evicted", uid)
			}
		}
	}
}
