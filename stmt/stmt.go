// Package stmt implements the ThingSet statement builder (spec §4.10,
// component C10): unsolicited snapshots of a group's children or a
// subset's members, over either wire encoding. Statements carry no status
// and expect no response (spec §4.10).
//
// Grounded on the teacher's required collaborator ts_ctx_export.c
// (thingset_export_buf), which builds exactly this kind of snapshot
// message for a set of subset bits, dispatching to the CBOR or JSON
// encoder by the context's configured protocol.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package stmt

import (
	"strings"

	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/respbuild"
	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
	"github.com/ThingSet/thingset-device-library-sub000/wire"
)

// BuildGroup emits a group snapshot: `#<path> {k1: v1, ...}` in text,
// `[0x1F, id, [v1, ...]]` in binary (spec §4.10), over group's direct
// children in database order.
func BuildGroup(db *obj.Database, group obj.Oref, encoding tsmsg.Proto) ([]byte, error) {
	msg := &tsmsg.Message{Encoding: encoding}
	children := db.Children(group)

	if encoding == tsmsg.ProtoBinary {
		out := []byte{0x1F}
		msg.ToCBOREnc(&out)
		if err := wire.AddU32(msg, uint32(groupID(db, group))); err != nil {
			return nil, err
		}
		if err := wire.AddArrayHeader(msg, len(children)); err != nil {
			return nil, err
		}
		for _, c := range children {
			if err := respbuild.RenderValue(db, msg, c); err != nil {
				return nil, err
			}
		}
		if err := wire.AddArrayEnd(msg); err != nil {
			return nil, err
		}
		return out, nil
	}

	out := append([]byte{'#'}, []byte(pathOf(db, group))...)
	out = append(out, ' ')
	msg.ToJSONEnc(&out)
	if err := wire.AddMapHeader(msg, len(children)); err != nil {
		return nil, err
	}
	for _, c := range children {
		if err := wire.AddObjectKey(msg, db.Descriptor(c).Name); err != nil {
			return nil, err
		}
		if err := respbuild.RenderValue(db, msg, c); err != nil {
			return nil, err
		}
	}
	if err := wire.AddMapEnd(msg); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildSubset emits every object whose Subsets bits intersect subset's
// membership bit, in database order, as a flat array of values (spec
// §4.10). Statement self-consistency (spec §8) follows directly from
// reading obj.Database.SubsetMembers, which already walks metadata in
// slot order.
func BuildSubset(db *obj.Database, subset obj.Oref, encoding tsmsg.Proto) ([]byte, error) {
	msg := &tsmsg.Message{Encoding: encoding}
	members := db.SubsetMembers(subset)

	if encoding == tsmsg.ProtoBinary {
		out := []byte{0x1F}
		msg.ToCBOREnc(&out)
		if err := wire.AddU32(msg, uint32(groupID(db, subset))); err != nil {
			return nil, err
		}
		if err := wire.AddArrayHeader(msg, len(members)); err != nil {
			return nil, err
		}
		for _, m := range members {
			if err := respbuild.RenderValue(db, msg, m); err != nil {
				return nil, err
			}
		}
		if err := wire.AddArrayEnd(msg); err != nil {
			return nil, err
		}
		return out, nil
	}

	out := append([]byte{'#'}, []byte(pathOf(db, subset))...)
	out = append(out, ' ')
	msg.ToJSONEnc(&out)
	if err := wire.AddMapHeader(msg, len(members)); err != nil {
		return nil, err
	}
	for _, m := range members {
		if err := wire.AddObjectKey(msg, db.Descriptor(m).Name); err != nil {
			return nil, err
		}
		if err := respbuild.RenderValue(db, msg, m); err != nil {
			return nil, err
		}
	}
	if err := wire.AddMapEnd(msg); err != nil {
		return nil, err
	}
	return out, nil
}

func groupID(db *obj.Database, oref obj.Oref) obj.ID {
	if oref.IsRoot() {
		return obj.RootID
	}
	return db.Descriptor(oref).ID
}

// pathOf walks oref's ParentID chain back to the root, returning the
// slash-joined path the text protocol's leading '#' expects.
func pathOf(db *obj.Database, oref obj.Oref) string {
	if oref.IsRoot() {
		return ""
	}
	var segs []string
	cur := oref
	for !cur.IsRoot() {
		d := db.Descriptor(cur)
		segs = append([]string{d.Name}, segs...)
		parent, ok := db.OrefByID(d.ParentID)
		if !ok {
			break
		}
		cur = parent
	}
	return strings.Join(segs, "/")
}
