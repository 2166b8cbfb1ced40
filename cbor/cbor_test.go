package cbor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUintRoundtrip(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeUint(1000))

	dec := NewDecState(out)
	v, err := dec.PullUint()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), v)
}

func TestNegativeIntRoundtrip(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeInt(-42))

	dec := NewDecState(out)
	v, err := dec.PullInt()
	require.NoError(t, err)
	require.Equal(t, int64(-42), v)
}

func TestFloatRoundtrip(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeFloat32(3.5))
	require.NoError(t, enc.EncodeFloat64(-2.25))

	dec := NewDecState(out)
	f32, err := dec.PullFloat32()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)
	f64, err := dec.PullFloat64()
	require.NoError(t, err)
	require.Equal(t, float64(-2.25), f64)
}

func TestStringRoundtrip(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeTextString("thingset"))
	require.NoError(t, enc.EncodeByteString([]byte{1, 2, 3}))

	dec := NewDecState(out)
	s, err := dec.PullTextString()
	require.NoError(t, err)
	require.Equal(t, "thingset", s)
	b, err := dec.PullByteString()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, b)
}

func TestArrayRoundtrip(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeArrayHeader(3))
	require.NoError(t, enc.EncodeUint(1))
	require.NoError(t, enc.EncodeUint(2))
	require.NoError(t, enc.EncodeUint(3))

	dec := NewDecState(out)
	n, indefinite, err := dec.PullArrayHeader()
	require.NoError(t, err)
	require.False(t, indefinite)
	require.Equal(t, 3, n)
	for i := 0; i < 3; i++ {
		v, err := dec.PullUint()
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), v)
	}
}

func TestNestedContainerWithinDepthBudget(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeArrayHeader(1))
	require.NoError(t, enc.EncodeMapHeader(1))
	require.NoError(t, enc.EncodeTextString("k"))
	require.NoError(t, enc.EncodeUint(9))

	dec := NewDecState(out)
	n, _, err := dec.PullArrayHeader()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	pairs, _, err := dec.PullMapHeader()
	require.NoError(t, err)
	require.Equal(t, 1, pairs)
	k, err := dec.PullTextString()
	require.NoError(t, err)
	require.Equal(t, "k", k)
	v, err := dec.PullUint()
	require.NoError(t, err)
	require.Equal(t, uint64(9), v)
}

func TestDecFracRoundtrip(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeDecFrac(1234, -2))

	dec := NewDecState(out)
	mantissa, exponent, err := dec.PullDecFrac()
	require.NoError(t, err)
	require.Equal(t, int64(1234), mantissa)
	require.Equal(t, -2, exponent)
}

func TestDecFracInsideArray(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeArrayHeader(2))
	require.NoError(t, enc.EncodeDecFrac(5, -1))
	require.NoError(t, enc.EncodeUint(7))

	dec := NewDecState(out)
	n, _, err := dec.PullArrayHeader()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	mantissa, exponent, err := dec.PullDecFrac()
	require.NoError(t, err)
	require.Equal(t, int64(5), mantissa)
	require.Equal(t, -1, exponent)
	v, err := dec.PullUint()
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)
}

func TestIndefiniteArrayIteration(t *testing.T) {
	// 0x9F = indefinite array start, followed by two uints and a break.
	data := []byte{0x9F, 0x01, 0x02, 0xFF}
	dec := NewDecState(data)
	n, indefinite, err := dec.PullArrayHeader()
	require.NoError(t, err)
	require.True(t, indefinite)
	require.Equal(t, 0, n)

	var got []uint64
	for {
		more, err := dec.PullArrayNext()
		require.NoError(t, err)
		if !more {
			break
		}
		v, err := dec.PullUint()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, []uint64{1, 2}, got)
}

func TestBoolAndNullRoundtrip(t *testing.T) {
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeBool(true))
	require.NoError(t, enc.EncodeNull())

	dec := NewDecState(out)
	b, err := dec.PullBool()
	require.NoError(t, err)
	require.True(t, b)
	require.NoError(t, dec.PullNull())
}

func TestDepthBudgetExceeded(t *testing.T) {
	// each container holds 2 elements so writing the first (nested) element
	// never auto-closes the parent before the stack genuinely fills up.
	var out []byte
	enc := NewEncState(&out)
	require.NoError(t, enc.EncodeArrayHeader(2))
	require.NoError(t, enc.EncodeArrayHeader(2))
	require.NoError(t, enc.EncodeArrayHeader(2))
	err := enc.EncodeArrayHeader(2)
	require.Error(t, err)
}
