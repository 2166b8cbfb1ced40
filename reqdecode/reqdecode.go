// Package reqdecode implements the ThingSet request decoder (spec §4.7,
// component C7): it classifies the leading octet of a freshly-arrived
// message, resolves the target endpoint against an object database, and
// leaves the message's scratchpad positioned at the start of the request
// body so package setengine/respbuild can pull values straight through
// package wire.
//
// Grounded on the teacher's required collaborators ts_msg_coder.c (leading
// octet table) and ts_ctx_process.c (endpoint resolution, GET->FETCH
// upgrade, target-kind validation).
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package reqdecode

import (
	"github.com/ThingSet/thingset-device-library-sub000/cbor"
	"github.com/ThingSet/thingset-device-library-sub000/jsontok"
	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/status"
	"github.com/ThingSet/thingset-device-library-sub000/tsmsg"
)

// DefaultMaxTokens bounds the JSON token budget for a decoded request body;
// it has the same value as jsontok.DefaultMaxTokens, so request decoding and
// ad hoc tokenizing agree on a default.
const DefaultMaxTokens = 64

// Decode classifies raw's leading octet, resolves the target endpoint
// against db, and primes msg's scratchpad for the request body. Statement
// and response octets are classified but otherwise left for package
// dispatch/stmt to interpret — a decoder only resolves *requests* against
// an object tree.
func Decode(db *obj.Database, msg *tsmsg.Message, raw []byte) error {
	if len(raw) == 0 {
		// Nothing here even has a leading octet to classify; per spec §7
		// this gets the same silent-drop treatment as an unrecognized one.
		msg.Kind = tsmsg.KindDrop
		return reject(msg, status.ErrBadRequest("reqdecode: empty message"))
	}
	lead := raw[0]

	if lead >= 0x80 {
		msg.Proto = tsmsg.ProtoBinary
		msg.Kind = tsmsg.KindResponse
		msg.Code = status.Code(lead)
		msg.Valid = tsmsg.Valid
		return nil
	}
	if lead == 0x1F {
		msg.Proto = tsmsg.ProtoBinary
		msg.Kind = tsmsg.KindStatement
		msg.Valid = tsmsg.Valid
		return decodeBinaryStatementEndpoint(db, msg, raw[1:])
	}
	if isBinaryRequestOctet(lead) {
		return decodeBinaryRequest(db, msg, lead, raw[1:])
	}
	if isTextOctet(lead) {
		return decodeTextRequest(db, msg, lead, raw[1:])
	}
	// Unrecognized leading octet on the wire: per spec §7, malformed binary
	// noise is silently dropped rather than answered. KindDrop (not the
	// KindRequest zero value) tells package dispatch to suppress the reply
	// it would otherwise build for any other classified request.
	msg.Kind = tsmsg.KindDrop
	msg.Valid = tsmsg.ValidError
	msg.Code = status.BadRequest
	return status.ErrBadRequest("reqdecode: unrecognized leading octet 0x%02x", lead)
}

// reject marks msg as invalid and records err's status code. Unless msg.Kind
// is KindDrop (the empty-message path above), package respbuild still owes
// it a status-coded error reply (e.g. Not Found).
func reject(msg *tsmsg.Message, err *status.Err) error {
	msg.Valid = tsmsg.ValidError
	msg.Code = err.ToCode()
	return err
}

// ------------------------------------------------------------- binary

func isBinaryRequestOctet(b byte) bool {
	switch b {
	case 0x01, 0x02, 0x04, 0x05, 0x07:
		return true
	}
	return false
}

func binarySubCode(b byte) tsmsg.SubCode {
	switch b {
	case 0x01:
		return tsmsg.SubGet
	case 0x02:
		return tsmsg.SubCreate
	case 0x04:
		return tsmsg.SubDelete
	case 0x05:
		return tsmsg.SubFetch
	case 0x07:
		return tsmsg.SubPatch
	}
	panic("reqdecode: unreachable")
}

func decodeBinaryRequest(db *obj.Database, msg *tsmsg.Message, lead byte, rest []byte) error {
	msg.Proto = tsmsg.ProtoBinary
	msg.Encoding = tsmsg.ProtoBinary
	msg.Kind = tsmsg.KindRequest
	msg.Sub = binarySubCode(lead)

	dec := cbor.NewDecState(rest)
	oref, bodyStart, err := resolveBinaryEndpoint(db, dec, rest)
	if err != nil {
		return reject(msg, statusErr(err, status.KindNotFound))
	}
	msg.Target = oref

	if msg.Sub == tsmsg.SubGet && bodyStart < len(rest) {
		msg.Sub = tsmsg.SubFetch // GET with a body upgrades to FETCH (spec §4.7)
	}
	if err := checkTargetKind(db, msg); err != nil {
		return reject(msg, err)
	}
	msg.ToCBORDec(rest[bodyStart:])
	msg.Valid = tsmsg.Valid
	return nil
}

func decodeBinaryStatementEndpoint(db *obj.Database, msg *tsmsg.Message, rest []byte) error {
	dec := cbor.NewDecState(rest)
	oref, bodyStart, err := resolveBinaryEndpoint(db, dec, rest)
	if err != nil {
		return reject(msg, statusErr(err, status.KindNotFound))
	}
	msg.Target = oref
	msg.ToCBORDec(rest[bodyStart:])
	return nil
}

// resolveBinaryEndpoint reads the id (CBOR uint) or name (CBOR text
// string) immediately following the code byte, leaving dec positioned at
// the start of the body; bodyStart is that offset measured from rest[0]
// (rest has already been advanced past the code byte by the caller).
func resolveBinaryEndpoint(db *obj.Database, dec *cbor.DecState, rest []byte) (obj.Oref, int, error) {
	if len(rest) == 0 {
		return obj.Oref{DB: db.ID(), Slot: obj.SlotRoot}, 0, nil
	}
	// peek the major type without disturbing dec: a uint/negint header's
	// top 3 bits are 0 or 1, a text-string header's are 3.
	major := rest[0] >> 5
	switch major {
	case 0, 1:
		id, err := dec.PullUint()
		if err != nil {
			return obj.Oref{}, 0, err
		}
		oref, ok := db.OrefByID(obj.ID(id))
		if !ok {
			return obj.Oref{}, 0, status.New(status.KindNotFound, "reqdecode: unknown id %d", id)
		}
		return oref, dec.Pos(), nil
	case 3:
		name, err := dec.PullTextString()
		if err != nil {
			return obj.Oref{}, 0, err
		}
		oref, ok := db.OrefByName(obj.Oref{DB: db.ID(), Slot: obj.SlotRoot}, name)
		if !ok {
			return obj.Oref{}, 0, status.New(status.KindNotFound, "reqdecode: unknown name %q", name)
		}
		return oref, dec.Pos(), nil
	default:
		// no endpoint token present; whatever follows is straight to root.
		return obj.Oref{DB: db.ID(), Slot: obj.SlotRoot}, 0, nil
	}
}

// ------------------------------------------------------------- text

func isTextOctet(b byte) bool {
	switch b {
	case '?', '=', '+', '-', '!', '#', ':':
		return true
	}
	return false
}

func textSubCode(b byte) (tsmsg.SubCode, tsmsg.Kind) {
	switch b {
	case '?':
		return tsmsg.SubGet, tsmsg.KindRequest
	case '=':
		return tsmsg.SubPatch, tsmsg.KindRequest
	case '+':
		return tsmsg.SubCreate, tsmsg.KindRequest
	case '-':
		return tsmsg.SubDelete, tsmsg.KindRequest
	case '!':
		return tsmsg.SubExec, tsmsg.KindRequest
	case '#':
		return 0, tsmsg.KindStatement
	case ':':
		return 0, tsmsg.KindResponse
	}
	panic("reqdecode: unreachable")
}

func isPathByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '.' || b == '_' || b == '-' || b == '/':
		return true
	}
	return false
}

func decodeTextRequest(db *obj.Database, msg *tsmsg.Message, lead byte, rest []byte) error {
	msg.Proto = tsmsg.ProtoText
	msg.Encoding = tsmsg.ProtoText
	sub, kind := textSubCode(lead)
	msg.Kind = kind
	msg.Sub = sub

	if kind == tsmsg.KindResponse {
		return decodeTextResponse(msg, rest)
	}

	i := 0
	for i < len(rest) && rest[i] == ' ' {
		i++
	}
	pathStart := i
	for i < len(rest) && isPathByte(rest[i]) {
		i++
	}
	path := string(rest[pathStart:i])
	msg.TrailingSlash = len(path) > 0 && path[len(path)-1] == '/'

	oref, ok := db.OrefByPath(obj.Oref{DB: db.ID(), Slot: obj.SlotRoot}, path)
	if !ok {
		return reject(msg, status.ErrNotFound("reqdecode: unknown path %q", path))
	}
	msg.Target = oref

	for i < len(rest) && rest[i] == ' ' {
		i++
	}
	body := rest[i:]

	if kind != tsmsg.KindRequest {
		return nil
	}
	if msg.Sub == tsmsg.SubGet && len(body) > 0 {
		msg.Sub = tsmsg.SubFetch // GET with a body upgrades to FETCH (spec §4.7)
	}
	if err := checkTargetKind(db, msg); err != nil {
		return reject(msg, err)
	}
	if len(body) > 0 {
		toks, err := jsontok.Parse(body, DefaultMaxTokens)
		if err != nil {
			return reject(msg, status.ErrBadRequest("reqdecode: %v", err))
		}
		msg.SetScratch(&tsmsg.JSONDecScratch{Input: body, Tokens: toks})
	} else {
		msg.SetScratch(&tsmsg.JSONDecScratch{Input: body})
	}
	msg.Valid = tsmsg.Valid
	return nil
}

// decodeTextResponse parses a text response's status line (spec §6:
// `:<hh>[ <description>.][ <json>]`), which carries no endpoint path at
// all — unlike a request or statement octet, ':' is never followed by an
// object path, so this bypasses the path-resolution logic entirely.
func decodeTextResponse(msg *tsmsg.Message, rest []byte) error {
	if len(rest) < 2 {
		return reject(msg, status.ErrBadRequest("reqdecode: short response status line"))
	}
	hi, okHi := hexDigit(rest[0])
	lo, okLo := hexDigit(rest[1])
	if !okHi || !okLo {
		return reject(msg, status.ErrBadRequest("reqdecode: malformed response status byte %q", rest[:2]))
	}
	msg.Code = status.Code(hi<<4 | lo)
	msg.Valid = tsmsg.Valid

	i := 2
	for i < len(rest) && rest[i] == ' ' {
		i++
	}
	// Skip the verbose "<description>. " prefix, if present, stopping at
	// the body: the body (when present) starts with '{' or '[', which
	// never begins a description sentence.
	for i < len(rest) && rest[i] != '{' && rest[i] != '[' {
		i++
	}
	if i < len(rest) {
		msg.SetScratch(&tsmsg.JSONDecScratch{Input: rest[i:]})
	}
	return nil
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

// checkTargetKind enforces spec §4.7: EXEC must target a function; PATCH
// must target an object within the tree (not the root placeholder).
func checkTargetKind(db *obj.Database, msg *tsmsg.Message) *status.Err {
	switch msg.Sub {
	case tsmsg.SubExec:
		if msg.Target.IsRoot() || msg.Target.IsAny() {
			return status.ErrBadRequest("reqdecode: EXEC requires a function target")
		}
		d := db.Descriptor(msg.Target)
		if d.Function == nil {
			return status.ErrBadRequest("reqdecode: EXEC target %q is not a function", d.Name)
		}
	case tsmsg.SubPatch, tsmsg.SubCreate, tsmsg.SubDelete:
		if msg.Target.IsRoot() {
			return status.ErrBadRequest("reqdecode: %v cannot target the root", msg.Sub)
		}
	}
	return nil
}

func statusErr(err error, fallback status.Kind) *status.Err {
	if se, ok := status.AsErr(err); ok {
		return se
	}
	return status.New(fallback, "%v", err)
}
