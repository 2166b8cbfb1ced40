package obj

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) (*Database, map[string]Oref) {
	t.Helper()
	var batV, batA, ambient float64
	_ = batV
	var reportBit = 0

	descs := []Descriptor{
		{ID: 1, Name: "meas", ParentID: 0, Type: TGroup},
		{ID: 2, Name: "Bat_V", ParentID: 1, Type: TF32, AccessDefault: ReadAccess(RoleUser, RoleExpert, RoleMaker),
			Scalar: &Value{
				Get: func() interface{} { return float32(14.1) },
				Set: func(v interface{}) error { return nil },
			}},
		{ID: 3, Name: "Bat_A", ParentID: 1, Type: TF32, AccessDefault: ReadAccess(RoleUser, RoleExpert, RoleMaker)},
		{ID: 4, Name: "Ambient_degC", ParentID: 1, Type: TI16, AccessDefault: ReadAccess(RoleUser, RoleExpert, RoleMaker)},
		{ID: 5, Name: "conf", ParentID: 0, Type: TGroup},
		{ID: 6, Name: "f32", ParentID: 5, Type: TF32,
			AccessDefault: ReadAccess(RoleUser, RoleExpert, RoleMaker) | WriteAccess(RoleUser, RoleExpert, RoleMaker)},
		{ID: 7, Name: "i32_readonly", ParentID: 5, Type: TI32, AccessDefault: ReadAccess(RoleUser, RoleExpert, RoleMaker)},
		{ID: 8, Name: "report", ParentID: 0, Type: TSubset, Detail: reportBit, SubsetsDefault: 0},
	}
	db, err := NewDatabase(0, descs)
	require.NoError(t, err)

	// seed subset membership: t_s doesn't exist in this fixture, use Bat_V/Bat_A/Ambient.
	bv, _ := db.OrefByID(2)
	ba, _ := db.OrefByID(3)
	am, _ := db.OrefByID(4)
	rs, _ := db.OrefByID(8)
	db.SetSubsetMember(bv, rs, true)
	db.SetSubsetMember(ba, rs, true)
	db.SetSubsetMember(am, rs, true)

	_ = ambient
	refs := map[string]Oref{
		"meas": mustOref(db, 1), "Bat_V": bv, "Bat_A": ba, "Ambient_degC": am,
		"conf": mustOref(db, 5), "f32": mustOref(db, 6), "i32_readonly": mustOref(db, 7),
		"report": rs,
	}
	return db, refs
}

func mustOref(db *Database, id ID) Oref {
	o, ok := db.OrefByID(id)
	if !ok {
		panic("missing id")
	}
	return o
}

func TestDuplicateIDRejectedAtInit(t *testing.T) {
	_, err := NewDatabase(0, []Descriptor{
		{ID: 1, Name: "a", Type: TGroup},
		{ID: 1, Name: "b", Type: TGroup},
	})
	require.Error(t, err)
}

func TestOrefByPath(t *testing.T) {
	db, refs := testDB(t)
	o, ok := db.OrefByPath(Oref{DB: 0, Slot: SlotRoot}, "meas/Bat_V")
	require.True(t, ok)
	require.Equal(t, refs["Bat_V"], o)

	// leading slash rewinds to root even from a non-root starting point.
	confO := refs["conf"]
	o, ok = db.OrefByPath(confO, "/meas/Bat_A")
	require.True(t, ok)
	require.Equal(t, refs["Bat_A"], o)

	// trailing slash strips the final empty segment.
	o, ok = db.OrefByPath(Oref{DB: 0, Slot: SlotRoot}, "meas/")
	require.True(t, ok)
	require.Equal(t, refs["meas"], o)
}

func TestChildIteration(t *testing.T) {
	db, refs := testDB(t)
	kids := db.Children(refs["meas"])
	require.Len(t, kids, 3)
	require.Equal(t, 3, db.ChildCount(refs["meas"]))
}

func TestAccessMasks(t *testing.T) {
	db, refs := testDB(t)
	f32 := refs["f32"]
	ro := refs["i32_readonly"]
	require.True(t, db.MayWrite(f32, RoleUser))
	require.False(t, db.MayWrite(ro, RoleUser))
	require.True(t, db.MayRead(ro, RoleUser))
}

func TestAccessMonotonicity(t *testing.T) {
	// auth_a subset of auth_b: anything readable under auth_a is readable
	// under auth_b (spec §8 access mask monotonicity invariant).
	db, refs := testDB(t)
	f32 := refs["f32"]
	authA := RoleUser
	authB := RoleUser | RoleExpert
	if db.MayRead(f32, authA) {
		require.True(t, db.MayRead(f32, authB))
	}
	if db.MayWrite(f32, authA) {
		require.True(t, db.MayWrite(f32, authB))
	}
}

func TestSubsetMembersDatabaseOrder(t *testing.T) {
	db, refs := testDB(t)
	members := db.SubsetMembers(refs["report"])
	require.Len(t, members, 3)
	require.Equal(t, refs["Bat_V"], members[0])
	require.Equal(t, refs["Bat_A"], members[1])
	require.Equal(t, refs["Ambient_degC"], members[2])
}

func TestSubsetDeleteMember(t *testing.T) {
	db, refs := testDB(t)
	db.SetSubsetMember(refs["Ambient_degC"], refs["report"], false)
	members := db.SubsetMembers(refs["report"])
	require.Len(t, members, 2)
	require.False(t, db.IsSubsetMember(refs["Ambient_degC"], refs["report"]))
}

func TestRootAlwaysReadWriteAny(t *testing.T) {
	db, _ := testDB(t)
	root := Oref{DB: 0, Slot: SlotRoot}
	require.True(t, db.MayRead(root, 0))
	require.True(t, db.MayWrite(root, 0))
}
