package stmt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
)

func testDB(t *testing.T) *obj.Database {
	t.Helper()
	batV := float32(14.1)
	batA := float32(5.13)
	db, err := obj.NewDatabase(0, []obj.Descriptor{
		{ID: 1, Name: "meas", ParentID: 0, Type: obj.TGroup},
		{ID: 2, Name: "Bat_V", ParentID: 1, Type: obj.TF32, Detail: 1,
			Scalar: &obj.Value{Get: func() interface{} { return batV }}},
		{ID: 3, Name: "Bat_A", ParentID: 1, Type: obj.TF32, Detail: 2,
			Scalar: &obj.Value{Get: func() interface{} { return batA }}},
		{ID: 4, Name: "report", ParentID: 0, Type: obj.TSubset, Detail: 0},
	})
	require.NoError(t, err)
	batVOref, _ := db.OrefByID(2)
	reportOref, _ := db.OrefByID(4)
	db.SetSubsetMember(batVOref, reportOref, true)
	return db
}

func TestBuildGroupText(t *testing.T) {
	db := testDB(t)
	meas, ok := db.OrefByID(1)
	require.True(t, ok)
	out, err := BuildGroup(db, meas, tsmsg.ProtoText)
	require.NoError(t, err)
	require.Equal(t, `#meas {"Bat_V":14.1,"Bat_A":5.13}`, string(out))
}

func TestBuildGroupBinaryLeadingOctet(t *testing.T) {
	db := testDB(t)
	meas, _ := db.OrefByID(1)
	out, err := BuildGroup(db, meas, tsmsg.ProtoBinary)
	require.NoError(t, err)
	require.Equal(t, byte(0x1F), out[0])
}

func TestBuildSubsetTextListsMatchingMembers(t *testing.T) {
	db := testDB(t)
	report, ok := db.OrefByID(4)
	require.True(t, ok)
	out, err := BuildSubset(db, report, tsmsg.ProtoText)
	require.NoError(t, err)
	require.Equal(t, `#report {"Bat_V":14.1}`, string(out))
}

func TestPathOfNestedObject(t *testing.T) {
	db := testDB(t)
	batV, _ := db.OrefByID(2)
	require.Equal(t, "meas/Bat_V", pathOf(db, batV))
}
