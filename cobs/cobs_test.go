package cobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x00},
		{0x01},
		[]byte("AB\x00CD"),
		{0x00, 0x00, 0x00},
		[]byte("hello, thingset"),
	}
	for _, payload := range cases {
		encoded, err := Encode(payload)
		require.NoError(t, err)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, payload, decoded)
	}
}

// TestIdempotenceUpToMaxPayload proves spec §8's COBS idempotence property,
// decode(encode(x)) == x, for every length up to the 254-byte frame limit.
func TestIdempotenceUpToMaxPayload(t *testing.T) {
	for n := 0; n <= MaxPayload; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i % 256)
		}
		encoded, err := Encode(payload)
		require.NoErrorf(t, err, "len=%d", n)
		decoded, err := Decode(encoded)
		require.NoErrorf(t, err, "len=%d", n)
		require.Equalf(t, payload, decoded, "len=%d", n)
	}
}

func TestRejectsOversizePayload(t *testing.T) {
	_, err := Encode(make([]byte, MaxPayload+1))
	require.Error(t, err)
}

// TestScenario6AllOnesFrame reproduces spec §8 seed scenario 6: 254 bytes
// of 0x01 encode to a 256-byte body (plus the two 0x00 sentinels) that
// starts and ends with a non-zero byte.
func TestScenario6AllOnesFrame(t *testing.T) {
	payload := make([]byte, 254)
	for i := range payload {
		payload[i] = 0x01
	}
	encoded, err := Encode(payload)
	require.NoError(t, err)
	require.Equal(t, byte(0x00), encoded[0])
	require.Equal(t, byte(0x00), encoded[len(encoded)-1])
	body := encoded[1 : len(encoded)-1]
	require.Len(t, body, 256)
	require.NotEqual(t, byte(0x00), body[0])
	require.NotEqual(t, byte(0x00), body[len(body)-1])

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestDecodeRejectsMissingSentinel(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	require.Error(t, err)
}
