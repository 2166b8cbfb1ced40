package tscontext

import (
	"context"

	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
)

// Port is the driver contract a Com context polls and forwards to (spec
// §4.12, modeled from the required collaborator ts_port.h): a concrete
// transport — serial line, socket, CAN frame relay — sits behind it. Port
// drivers themselves are out of scope (spec Non-goals); this interface
// exists so Com.Run has something concrete to call.
type Port interface {
	// Transmit sends data out this port, blocking up to the context the
	// caller supplies (spec §5: port transmit is a suspension point).
	Transmit(ctx context.Context, data []byte) error

	// Poll blocks until a message arrives on this port or ctx is done,
	// returning the decoded message (package reqdecode has already run,
	// or the caller runs it before dispatching).
	Poll(ctx context.Context) (*tsmsg.Message, error)
}
