package respbuild

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/reqdecode"
	"github.com/ThingSet/thingset-device-library-sub000/setengine"
	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
)

func testDB(t *testing.T) *obj.Database {
	t.Helper()
	batV := float32(14.1)
	batA := float32(5.13)
	ambientDegC := int16(22)
	db, err := obj.NewDatabase(0, []obj.Descriptor{
		{ID: 1, Name: "meas", ParentID: 0, Type: obj.TGroup},
		{ID: 2, Name: "Bat_V", ParentID: 1, Type: obj.TF32, Detail: 2,
			AccessDefault: obj.ReadAccess(obj.RoleUser, obj.RoleExpert, obj.RoleMaker),
			Scalar:        &obj.Value{Get: func() interface{} { return batV }}},
		{ID: 3, Name: "Bat_A", ParentID: 1, Type: obj.TF32, Detail: 2,
			AccessDefault: obj.ReadAccess(obj.RoleUser, obj.RoleExpert, obj.RoleMaker),
			Scalar:        &obj.Value{Get: func() interface{} { return batA }}},
		{ID: 6, Name: "Ambient_degC", ParentID: 1, Type: obj.TI16,
			AccessDefault: obj.ReadAccess(obj.RoleUser, obj.RoleExpert, obj.RoleMaker),
			Scalar:        &obj.Value{Get: func() interface{} { return ambientDegC }}},
		{ID: 4, Name: "reset", ParentID: 0, Type: obj.TFunction,
			Function: &obj.FunctionValue{Call: func() error { return nil }}},
		{ID: 5, Name: "report", ParentID: 0, Type: obj.TSubset, Detail: 0,
			SubsetsDefault: 0},
	})
	require.NoError(t, err)
	// seed subset membership directly against the metadata the descriptors
	// above declared, mirroring how a real device would mark initial
	// members at startup.
	batVOref, _ := db.OrefByID(2)
	batAOref, _ := db.OrefByID(3)
	reportOref, _ := db.OrefByID(5)
	db.SetSubsetMember(batVOref, reportOref, true)
	db.SetSubsetMember(batAOref, reportOref, true)
	return db
}

// decode runs package reqdecode and returns the message regardless of
// outcome — callers that expect a decode failure (e.g. an unknown path)
// inspect msg.Valid/msg.Code themselves rather than via this helper.
func decode(t *testing.T, db *obj.Database, raw []byte) *tsmsg.Message {
	t.Helper()
	msg := tsmsg.New()
	_ = reqdecode.Decode(db, msg, raw)
	return msg
}

func TestBuildTextGetGroupNamesValues(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte(`?meas`))
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, `:85 Content. {"Bat_V":14.10,"Bat_A":5.13,"Ambient_degC":22}`, string(out))
}

func TestBuildTextGetGroupNamesTrailingSlash(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte(`?meas/`))
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, `:85 Content. ["Bat_V","Bat_A","Ambient_degC"]`, string(out))
}

func TestBuildTextGetLeafValue(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte(`?meas/Bat_V`))
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, `:85 Content. 14.10`, string(out))
}

func TestBuildBinaryGetGroupIDsValues(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte{0x01, 0x01}) // GET id 1 = "meas"
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, byte(0x85), out[0]) // Content
}

func TestBuildTextFetchArrayOfValues(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte(`?meas ["Bat_A","Bat_V"]`))
	require.Equal(t, tsmsg.SubFetch, msg.Sub)
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, `:85 Content. [5.13,14.10]`, string(out))
}

func TestBuildTextExecStatusOnlyNoBody(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte(`!reset []`))
	_, err := setengine.Apply(db, msg, obj.RoleExpert)
	require.NoError(t, err)
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, `:83 Valid.`, string(out))
}

func TestBuildTextErrorStatusLine(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte(`?nope`))
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, `:A4 Not Found.`, string(out))
}

func TestBuildTextSubsetMemberNames(t *testing.T) {
	db := testDB(t)
	msg := decode(t, db, []byte(`?report`))
	out, err := Build(db, msg, true)
	require.NoError(t, err)
	require.Equal(t, `:85 Content. ["Bat_V","Bat_A"]`, string(out))
}
