package reqdecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
)

func testDB(t *testing.T) *obj.Database {
	t.Helper()
	db, err := obj.NewDatabase(0, []obj.Descriptor{
		{ID: 1, Name: "meas", ParentID: 0, Type: obj.TGroup},
		{ID: 2, Name: "Bat_V", ParentID: 1, Type: obj.TF32,
			AccessDefault: obj.ReadAccess(obj.RoleUser, obj.RoleExpert, obj.RoleMaker)},
		{ID: 3, Name: "reset", ParentID: 0, Type: obj.TFunction,
			Function: &obj.FunctionValue{Call: func() error { return nil }}},
	})
	require.NoError(t, err)
	return db
}

func TestDecodeTextGetUpgradesToFetchWithBody(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte(`?meas/Bat_V ["x"]`))
	require.NoError(t, err)
	require.Equal(t, tsmsg.SubFetch, msg.Sub)
	require.Equal(t, tsmsg.Valid, msg.Valid)
}

func TestDecodeTextGetNoBodyStaysGet(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte(`?meas/Bat_V`))
	require.NoError(t, err)
	require.Equal(t, tsmsg.SubGet, msg.Sub)
}

func TestDecodeTextUnknownPathNotFound(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte(`?nope`))
	require.Error(t, err)
	require.Equal(t, tsmsg.ValidError, msg.Valid)
}

func TestDecodeTextExecRequiresFunction(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte(`!meas/Bat_V`))
	require.Error(t, err)
	require.Equal(t, tsmsg.ValidError, msg.Valid)
}

func TestDecodeTextExecOnFunctionOK(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte(`!reset`))
	require.NoError(t, err)
	require.Equal(t, tsmsg.Valid, msg.Valid)
}

func TestDecodeTextPatchCannotTargetRoot(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte(`={}`))
	require.Error(t, err)
}

func TestDecodeTextTrailingSlashRecorded(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte(`?meas/`))
	require.NoError(t, err)
	require.True(t, msg.TrailingSlash)
}

func TestDecodeBinaryGetByID(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	// 0x01 GET, endpoint id 2 (Bat_V) encoded as a CBOR uint.
	err := Decode(db, msg, []byte{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, tsmsg.SubGet, msg.Sub)
	require.Equal(t, obj.ID(2), db.Descriptor(msg.Target).ID)
}

func TestDecodeBinaryUnknownIDNotFound(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte{0x01, 0x18, 0xFF})
	require.Error(t, err)
}

func TestDecodeBinaryResponseClassification(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte{0x85})
	require.NoError(t, err)
	require.Equal(t, tsmsg.KindResponse, msg.Kind)
}

func TestDecodeUnrecognizedOctetDropped(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, []byte{0x60}) // not a classified leading octet
	require.Error(t, err)
	require.Equal(t, tsmsg.ValidError, msg.Valid)
	require.Equal(t, tsmsg.KindDrop, msg.Kind)
}

func TestDecodeEmptyMessageDropped(t *testing.T) {
	db := testDB(t)
	msg := tsmsg.New()
	err := Decode(db, msg, nil)
	require.Error(t, err)
	require.Equal(t, tsmsg.ValidError, msg.Valid)
	require.Equal(t, tsmsg.KindDrop, msg.Kind)
}
