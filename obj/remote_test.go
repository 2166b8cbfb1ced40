package obj

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRemotePoolConnectReusesExistingEntry(t *testing.T) {
	pool := NewRemotePool(4)
	peer := uuid.New()
	desc := Descriptor{ID: 1, Name: "Bat_V", Type: TF32}

	first, err := pool.Connect(0, peer, desc)
	require.NoError(t, err)
	second, err := pool.Connect(0, peer, desc)
	require.NoError(t, err)
	require.Equal(t, first, second, "connecting the same (remote, peer, id) twice must reuse the same slot")

	got, ok := pool.Descriptor(first)
	require.True(t, ok)
	require.Equal(t, desc.Name, got.Name)
}

func TestRemotePoolConnectDistinctPeersGetDistinctSlots(t *testing.T) {
	pool := NewRemotePool(4)
	desc := Descriptor{ID: 1, Name: "Bat_V", Type: TF32}

	a, err := pool.Connect(0, uuid.New(), desc)
	require.NoError(t, err)
	b, err := pool.Connect(0, uuid.New(), desc)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestRemotePoolExhaustion(t *testing.T) {
	pool := NewRemotePool(1)
	desc := Descriptor{ID: 1, Name: "Bat_V", Type: TF32}

	_, err := pool.Connect(0, uuid.New(), desc)
	require.NoError(t, err)

	_, err = pool.Connect(0, uuid.New(), desc)
	require.Error(t, err, "a full arena must refuse a new (not reused) entry")
}

// TestRemotePoolDisconnectReturnsZero reproduces spec §9's open question
// verbatim: disconnect always reports 0 without adjusting the refcount.
func TestRemotePoolDisconnectReturnsZero(t *testing.T) {
	pool := NewRemotePool(2)
	desc := Descriptor{ID: 1, Name: "Bat_V", Type: TF32}
	oref, err := pool.Connect(0, uuid.New(), desc)
	require.NoError(t, err)

	require.EqualValues(t, 0, pool.Disconnect(oref))
	// the entry is still resolvable: Disconnect did not free it.
	_, ok := pool.Descriptor(oref)
	require.True(t, ok)
}

func TestRemotePoolDescriptorMissing(t *testing.T) {
	pool := NewRemotePool(2)
	_, ok := pool.Descriptor(Oref{DB: 0, Slot: 0})
	require.False(t, ok)
}
