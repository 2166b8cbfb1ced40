// Package obj implements the ThingSet object database (spec §3, §4.2,
// component C2): a fixed, immutable descriptor table built once at startup
// plus a parallel slice of mutable per-object metadata indexed by slot.
//
// This directly implements REDESIGN FLAG "global static object tables
// reached via config macros" → "a builder that produces an immutable
// descriptor table at startup... module-level slice in Go", and is
// grounded on the teacher's split between LOM's immutable FQN/bck fields
// and its mutable `lmeta` block (cluster/lom.go), plus xreg/bucket.go's
// package-level registry-of-structs idiom for the builder itself.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package obj

import (
	"fmt"
	"strings"
)

// Type is the type tag of an object's native storage (spec §3).
type Type uint8

const (
	TBool Type = iota
	TU8
	TI8
	TU16
	TI16
	TU32
	TI32
	TU64
	TI64
	TF32
	TDecFrac
	TString
	TBytes
	TArray
	TGroup
	TFunction
	TSubset
)

func (t Type) String() string {
	switch t {
	case TBool:
		return "bool"
	case TU8:
		return "u8"
	case TI8:
		return "i8"
	case TU16:
		return "u16"
	case TI16:
		return "i16"
	case TU32:
		return "u32"
	case TI32:
		return "i32"
	case TU64:
		return "u64"
	case TI64:
		return "i64"
	case TF32:
		return "f32"
	case TDecFrac:
		return "decfrac"
	case TString:
		return "string"
	case TBytes:
		return "bytes"
	case TArray:
		return "array"
	case TGroup:
		return "group"
	case TFunction:
		return "function"
	case TSubset:
		return "subset"
	}
	return "unknown"
}

// ID is a 16-bit object identifier, unique within a database; 0 is reserved
// for the virtual root.
type ID uint16

const RootID ID = 0

// Role is a bit in an access mask identifying one of the three ThingSet
// roles (spec §3).
type Role uint8

const (
	RoleUser   Role = 1 << 0
	RoleExpert Role = 1 << 1
	RoleMaker  Role = 1 << 2
)

// Access packs read and write bits for all three roles into 6 bits:
// bits 0-2 are read-user/expert/maker, bits 3-5 are write-user/expert/maker.
// At most one write path per role is a convention enforced by callers that
// build descriptors, not by this type.
type Access uint8

func (a Access) MayRead(auth Role) bool  { return byte(a)&byte(auth) != 0 }
func (a Access) MayWrite(auth Role) bool { return (byte(a)>>3)&byte(auth) != 0 }

func ReadAccess(roles ...Role) Access {
	var a Access
	for _, r := range roles {
		a |= Access(r)
	}
	return a
}

func WriteAccess(roles ...Role) Access {
	var a Access
	for _, r := range roles {
		a |= Access(r) << 3
	}
	return a
}

// ReadWriteAll grants read+write to every role — used for the virtual root.
const ReadWriteAll Access = 0x3F

// DecFrac is the boxed representation of a TDecFrac scalar's value: just
// the mantissa (spec §4.5 tag-4 decimal fraction is mantissa * 10^exponent,
// but the exponent itself is not per-value — spec §3's "decfrac(exp)" names
// the exponent as part of the type, fixed at declaration time). It lives in
// the owning Descriptor.Detail instead, mirroring the teacher's
// ts_obj_decfrac_exponent_data, which always returns the object's own
// detail rather than anything stored alongside the mantissa.
type DecFrac struct {
	Mantissa int64
}

// Value is the native-storage accessor for a scalar object: Get returns the
// current value boxed as the Go type matching Descriptor.Type (bool, int64,
// uint64, float32, string, or []byte); Set validates and stores a new one.
// This is the Go stand-in for the spec's "opaque pointer to native storage":
// rather than reinterpreting raw bytes, a descriptor closes over the actual
// backing Go variable at registration time.
type Value struct {
	Get func() interface{}
	Set func(interface{}) error
}

// ArrayValue is the native-storage accessor for an Type=TArray object.
// Len/SetLen implement the spec's "current prefix [0..num_elements)"
// semantics (§4.9): an array object's value is only ever its live prefix,
// never the full backing capacity.
type ArrayValue struct {
	ElemType Type
	Capacity int
	Len      func() int
	SetLen   func(int) error
	GetElem  func(i int) interface{}
	SetElem  func(i int, v interface{}) error
}

// GroupValue optionally carries the group's change callback, invoked
// exactly once after a successful PATCH that wrote into one of its children
// (spec §4.8). Nil if the group has no callback.
type GroupValue struct {
	Callback func()
}

// FunctionValue is the native callback invoked by EXEC once parameter
// children (if any) have been validated and committed (spec §4.8).
type FunctionValue struct {
	Call func() error
}

// Descriptor is the immutable, build-time-constant description of one
// object (spec §3). At most one of Scalar/Array/Group/Function is non-nil,
// selected by Type (a group without a callback has none); Subset objects
// have none (membership lives in each member's Subsets metadata, at the bit
// position given by the subset's Detail).
type Descriptor struct {
	ID            ID
	Name          string
	ParentID      ID
	Type          Type
	AccessDefault Access
	SubsetsDefault uint16
	// Detail is the type-specific integer from spec §3: float precision,
	// decfrac negative exponent, string capacity, or (for TSubset) the bit
	// position within every object's 16-bit Subsets metadata flag that
	// marks membership in *this* subset.
	Detail int

	Scalar   *Value
	Array    *ArrayValue
	Group    *GroupValue
	Function *FunctionValue
}

// meta is the mutable half of an object, one per descriptor slot,
// initialized from the descriptor's *Default fields and potentially
// modified by CREATE/DELETE on subset objects or group callbacks (spec §3).
type meta struct {
	access  Access
	subsets uint16
	detail  int
}

// Oref is a stable handle to an object: a (database, slot) pair. The two
// sentinel slots ROOT and ANY never index into the descriptor slice.
type Oref struct {
	DB   uint8
	Slot int32
}

const (
	SlotRoot int32 = -1
	SlotAny  int32 = -2
)

func (o Oref) IsRoot() bool { return o.Slot == SlotRoot }
func (o Oref) IsAny() bool  { return o.Slot == SlotAny }

// Database is a fixed, static object table for one local context, or the
// shared pool for one remote peer's mirrored objects (spec §3).
type Database struct {
	id          uint8
	descriptors []Descriptor
	meta        []meta
	byID        map[ID]int32
}

// NewDatabase builds an immutable descriptor table and its parallel mutable
// metadata slice, returning an error if two descriptors share an id — the
// spec requires this be caught "at init, not first use".
func NewDatabase(id uint8, descriptors []Descriptor) (*Database, error) {
	db := &Database{
		id:          id,
		descriptors: descriptors,
		meta:        make([]meta, len(descriptors)),
		byID:        make(map[ID]int32, len(descriptors)),
	}
	for i, d := range descriptors {
		if d.ID == RootID {
			return nil, fmt.Errorf("obj: descriptor %q reuses reserved root id 0", d.Name)
		}
		if _, dup := db.byID[d.ID]; dup {
			return nil, fmt.Errorf("obj: duplicate object id %d (%q)", d.ID, d.Name)
		}
		db.byID[d.ID] = int32(i)
		db.meta[i] = meta{access: d.AccessDefault, subsets: d.SubsetsDefault, detail: d.Detail}
	}
	return db, nil
}

// MustNewDatabase panics on a duplicate-id programming error, for the usual
// package-init-time construction idiom (var db = obj.MustNewDatabase(...)).
func MustNewDatabase(id uint8, descriptors []Descriptor) *Database {
	db, err := NewDatabase(id, descriptors)
	if err != nil {
		panic(err)
	}
	return db
}

func (db *Database) ID() uint8 { return db.id }

func (db *Database) root() Oref { return Oref{DB: db.id, Slot: SlotRoot} }

// Descriptor returns the immutable descriptor for oref, or nil for the root
// sentinel (the root has no backing descriptor).
func (db *Database) Descriptor(oref Oref) *Descriptor {
	if oref.Slot < 0 {
		return nil
	}
	return &db.descriptors[oref.Slot]
}

func (db *Database) metaAt(oref Oref) *meta {
	if oref.Slot < 0 {
		return nil
	}
	return &db.meta[oref.Slot]
}

// Access returns the object's current access mask (root is always
// read/write for every role, spec §4.2).
func (db *Database) Access(oref Oref) Access {
	if oref.IsRoot() {
		return ReadWriteAll
	}
	return db.metaAt(oref).access
}

func (db *Database) MayRead(oref Oref, auth Role) bool {
	if oref.IsRoot() {
		return true
	}
	return db.Access(oref).MayRead(auth)
}

func (db *Database) MayWrite(oref Oref, auth Role) bool {
	if oref.IsRoot() {
		return true
	}
	return db.Access(oref).MayWrite(auth)
}

// Subsets returns the object's current subset-membership bitmask.
func (db *Database) Subsets(oref Oref) uint16 {
	if oref.IsRoot() {
		return 0
	}
	return db.metaAt(oref).subsets
}

// SetSubsetMember adds (member=true) or removes oref from the subset
// whose bit position is subset's Detail (CREATE/DELETE on subset objects, §4.8).
func (db *Database) SetSubsetMember(oref, subset Oref, member bool) {
	sd := db.Descriptor(subset)
	m := db.metaAt(oref)
	bit := uint16(1) << uint(sd.Detail)
	if member {
		m.subsets |= bit
	} else {
		m.subsets &^= bit
	}
}

// IsSubsetMember reports whether oref currently belongs to subset.
func (db *Database) IsSubsetMember(oref, subset Oref) bool {
	sd := db.Descriptor(subset)
	bit := uint16(1) << uint(sd.Detail)
	return db.Subsets(oref)&bit != 0
}

func (db *Database) parentIDOf(oref Oref) (ID, bool) {
	if oref.IsRoot() {
		return 0, false
	}
	return db.descriptors[oref.Slot].ParentID, true
}

// OrefByID resolves a 16-bit id to an Oref.
func (db *Database) OrefByID(id ID) (Oref, bool) {
	if id == RootID {
		return db.root(), true
	}
	slot, ok := db.byID[id]
	if !ok {
		return Oref{}, false
	}
	return Oref{DB: db.id, Slot: slot}, true
}

// OrefByName resolves name as a direct child of parent. If parent is the
// ANY sentinel, the whole database is searched ignoring parent constraints
// (used by subset CREATE/DELETE member lookups, spec §3 "unrestricted
// parent lookup").
func (db *Database) OrefByName(parent Oref, name string) (Oref, bool) {
	if parent.IsAny() {
		for i, d := range db.descriptors {
			if d.Name == name {
				return Oref{DB: db.id, Slot: int32(i)}, true
			}
		}
		return Oref{}, false
	}
	parentID := RootID
	if !parent.IsRoot() {
		parentID = db.descriptors[parent.Slot].ID
	}
	for i, d := range db.descriptors {
		if d.ParentID == parentID && d.Name == name {
			return Oref{DB: db.id, Slot: int32(i)}, true
		}
	}
	return Oref{}, false
}

// OrefByPath resolves a slash-separated path relative to parent. A leading
// "/" rewinds to the database root; a trailing slash is stripped before
// resolution (spec §4.2).
func (db *Database) OrefByPath(parent Oref, path string) (Oref, bool) {
	cur := parent
	if strings.HasPrefix(path, "/") {
		cur = db.root()
		path = strings.TrimPrefix(path, "/")
	}
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return cur, true
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		next, ok := db.OrefByName(cur, seg)
		if !ok {
			return Oref{}, false
		}
		cur = next
	}
	return cur, true
}

// ChildFirst returns the first child of parent in database order.
func (db *Database) ChildFirst(parent Oref) (Oref, bool) {
	parentID := RootID
	if !parent.IsRoot() && !parent.IsAny() {
		parentID = db.descriptors[parent.Slot].ID
	}
	for i, d := range db.descriptors {
		if d.ParentID == parentID {
			return Oref{DB: db.id, Slot: int32(i)}, true
		}
	}
	return Oref{}, false
}

// ChildNext returns the next sibling of cur in database order.
func (db *Database) ChildNext(parent, cur Oref) (Oref, bool) {
	parentID := RootID
	if !parent.IsRoot() && !parent.IsAny() {
		parentID = db.descriptors[parent.Slot].ID
	}
	for i := int(cur.Slot) + 1; i < len(db.descriptors); i++ {
		if db.descriptors[i].ParentID == parentID {
			return Oref{DB: db.id, Slot: int32(i)}, true
		}
	}
	return Oref{}, false
}

// ChildCount returns the number of direct children of parent.
func (db *Database) ChildCount(parent Oref) int {
	n := 0
	for cur, ok := db.ChildFirst(parent); ok; cur, ok = db.ChildNext(parent, cur) {
		n++
	}
	return n
}

// Children returns all direct children of parent in database order.
func (db *Database) Children(parent Oref) []Oref {
	var out []Oref
	for cur, ok := db.ChildFirst(parent); ok; cur, ok = db.ChildNext(parent, cur) {
		out = append(out, cur)
	}
	return out
}

// SubsetMembers returns every object in the database whose Subsets bit at
// position subset.Detail is set, in database order (spec §4.10, §8 statement
// self-consistency invariant).
func (db *Database) SubsetMembers(subset Oref) []Oref {
	sd := db.Descriptor(subset)
	bit := uint16(1) << uint(sd.Detail)
	var out []Oref
	for i, m := range db.meta {
		if m.subsets&bit != 0 {
			out = append(out, Oref{DB: db.id, Slot: int32(i)})
		}
	}
	return out
}
