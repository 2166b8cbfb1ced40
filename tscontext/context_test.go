package tscontext

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/tscfg"
)

// TestNewComSizesRemotePoolFromConfig proves Com.Remotes is sized from the
// current global config (spec §6 REMOTE_OBJECT_COUNT), not left nil.
func TestNewComSizesRemotePoolFromConfig(t *testing.T) {
	orig := tscfg.GCO.Get()
	defer tscfg.GCO.Put(orig)

	cfg := *tscfg.Default()
	cfg.RemoteObjectCount = 2
	tscfg.GCO.Put(&cfg)

	db := obj.MustNewDatabase(0, nil)
	com := NewCom(db, obj.RoleExpert, false, 4)
	require.NotNil(t, com.Remotes)

	desc := obj.Descriptor{ID: 1, Name: "Bat_V", Type: obj.TF32}
	first, err := com.Remotes.Connect(1, uuid.New(), desc)
	require.NoError(t, err)
	second, err := com.Remotes.Connect(1, uuid.New(), desc)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = com.Remotes.Connect(1, uuid.New(), desc)
	require.Error(t, err, "the two-slot arena configured above should now be exhausted")
}
