package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
)

func newTextEncMsg() (*tsmsg.Message, *[]byte) {
	out := &[]byte{}
	m := tsmsg.New()
	m.Proto = tsmsg.ProtoText
	m.Encoding = tsmsg.ProtoText
	m.ToJSONEnc(out)
	return m, out
}

func newBinEncMsg() (*tsmsg.Message, *[]byte) {
	out := &[]byte{}
	m := tsmsg.New()
	m.Proto = tsmsg.ProtoBinary
	m.Encoding = tsmsg.ProtoBinary
	m.ToCBOREnc(out)
	return m, out
}

func newTextDecMsg(t *testing.T, data string) *tsmsg.Message {
	t.Helper()
	m := tsmsg.New()
	m.Proto = tsmsg.ProtoText
	m.Encoding = tsmsg.ProtoText
	require.NoError(t, m.ToJSONDec([]byte(data), 32))
	return m
}

func newBinDecMsg(data []byte) *tsmsg.Message {
	m := tsmsg.New()
	m.Proto = tsmsg.ProtoBinary
	m.Encoding = tsmsg.ProtoBinary
	m.ToCBORDec(data)
	return m
}

func TestAddPullScalarsTextRoundtrip(t *testing.T) {
	m, out := newTextEncMsg()
	require.NoError(t, AddU32(m, 42))
	dec := newTextDecMsg(t, string(*out))
	v, err := PullU32(dec)
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)
}

func TestAddPullScalarsBinaryRoundtrip(t *testing.T) {
	m, out := newBinEncMsg()
	require.NoError(t, AddI32(m, -7))
	dec := newBinDecMsg(*out)
	v, err := PullI32(dec)
	require.NoError(t, err)
	require.Equal(t, int32(-7), v)
}

func TestAddF32NaNEmitsNullText(t *testing.T) {
	m, out := newTextEncMsg()
	require.NoError(t, AddF32(m, float32(math.NaN()), -1))
	require.Equal(t, "null", string(*out))
}

func TestPullF32NullYieldsNaN(t *testing.T) {
	dec := newTextDecMsg(t, "null")
	v, err := PullF32(dec)
	require.NoError(t, err)
	require.True(t, math.IsNaN(float64(v)))
}

func TestNarrowingPullRejectsOutOfRange(t *testing.T) {
	m, out := newTextEncMsg()
	require.NoError(t, AddU32(m, 100000))
	dec := newTextDecMsg(t, string(*out))
	_, err := PullU16(dec)
	require.Error(t, err)
}

func TestStringRoundtripBothEncodings(t *testing.T) {
	m, out := newTextEncMsg()
	require.NoError(t, AddString(m, "Bat_V"))
	dec := newTextDecMsg(t, string(*out))
	s, err := PullString(dec)
	require.NoError(t, err)
	require.Equal(t, "Bat_V", s)

	m2, out2 := newBinEncMsg()
	require.NoError(t, AddString(m2, "Bat_V"))
	dec2 := newBinDecMsg(*out2)
	s2, err := PullString(dec2)
	require.NoError(t, err)
	require.Equal(t, "Bat_V", s2)
}

func TestArrayRoundtripText(t *testing.T) {
	m, out := newTextEncMsg()
	require.NoError(t, AddArrayHeader(m, 3))
	require.NoError(t, AddU8(m, 1))
	require.NoError(t, AddU8(m, 2))
	require.NoError(t, AddU8(m, 3))
	require.NoError(t, AddArrayEnd(m))
	require.Equal(t, "[1,2,3]", string(*out))

	dec := newTextDecMsg(t, string(*out))
	n, indefinite, err := PullArrayHeader(dec)
	require.NoError(t, err)
	require.False(t, indefinite)
	require.Equal(t, 3, n)
	var got []uint8
	for {
		more, err := PullArrayNext(dec)
		require.NoError(t, err)
		if !more {
			break
		}
		v, err := PullU8(dec)
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, []uint8{1, 2, 3}, got)
}

func TestObjectRoundtripText(t *testing.T) {
	m, out := newTextEncMsg()
	require.NoError(t, AddMapHeader(m, 2))
	require.NoError(t, AddObjectKey(m, "Bat_V"))
	require.NoError(t, AddF32(m, 14.1, 1))
	require.NoError(t, AddObjectKey(m, "Bat_A"))
	require.NoError(t, AddF32(m, 1.5, 1))
	require.NoError(t, AddMapEnd(m))
	require.Equal(t, `{"Bat_V":14.1,"Bat_A":1.5}`, string(*out))
}

func TestAddBytesRejectedInTextEncoding(t *testing.T) {
	m, _ := newTextEncMsg()
	err := AddBytes(m, []byte{1, 2, 3})
	require.Error(t, err)
}
