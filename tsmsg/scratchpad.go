// Package tsmsg implements the Message type and its scratchpad union
// (spec §3, §4.3, component C3): a message carries a backing *buf.Buffer
// plus exactly one scratchpad describing the phase it is currently in.
//
// REDESIGN FLAG: the original carves the scratchpad out of raw bytes at the
// buffer's tail via alignment tricks on a shared union. Here each scratchpad
// phase OWNS its state as a distinct Go struct behind the Scratchpad
// interface; Message keeps the "payload + per-phase metadata in one message
// object" property without reinterpreting memory. Grounded on the teacher's
// accessor style in cluster/lom.go (typed Get/Set pairs over an internal
// struct) and its debug-assert-guarded invariants.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package tsmsg

import (
	"github.com/ThingSet/thingset-device-library-sub000/cbor"
	"github.com/ThingSet/thingset-device-library-sub000/internal/debug"
	"github.com/ThingSet/thingset-device-library-sub000/jsontok"
	"github.com/ThingSet/thingset-device-library-sub000/obj"
	"github.com/ThingSet/thingset-device-library-sub000/status"
)

// ScratchType tags which concrete scratchpad a Message currently carries.
type ScratchType uint8

const (
	ScratchRaw ScratchType = iota
	ScratchProcessing
	ScratchJSONEnc
	ScratchJSONDec
	ScratchCBOREnc
	ScratchCBORDec
	ScratchCOBS
)

func (s ScratchType) String() string {
	switch s {
	case ScratchRaw:
		return "raw"
	case ScratchProcessing:
		return "processing"
	case ScratchJSONEnc:
		return "json-enc"
	case ScratchJSONDec:
		return "json-dec"
	case ScratchCBOREnc:
		return "cbor-enc"
	case ScratchCBORDec:
		return "cbor-dec"
	case ScratchCOBS:
		return "cobs"
	}
	return "unknown"
}

// Scratchpad is the sum type; the unexported method keeps it closed to
// this package the same way a C union is closed to its declared members.
type Scratchpad interface {
	scratchType() ScratchType
}

// RawScratch is the scratchpad of a message fresh off the wire, before
// classification (spec §4.7).
type RawScratch struct{}

func (RawScratch) scratchType() ScratchType { return ScratchRaw }

// ProcessingScratch carries per-message routing metadata (spec §3): source
// and destination port, the originating peer's UID, and a size hint for
// the eventual response — set once the dispatcher (C11) starts working on
// the message.
type ProcessingScratch struct {
	SourcePort        int
	DestPort          int
	PeerUID           uint64
	ResponseSizeHint  int
}

func (*ProcessingScratch) scratchType() ScratchType { return ScratchProcessing }

// JSONEncScratch tracks the text-encoder's container/comma bookkeeping
// while package wire's Add* functions render values (spec §4.3/§4.6).
// JSONFrame tracks one open array/object container: IsObject selects
// comma-vs-colon punctuation rules, Count is the number of elements (array)
// or key/value tokens (object, so key=even, value=odd) written so far.
type JSONFrame struct {
	IsObject bool
	Count    int
}

type JSONEncScratch struct {
	// Out is the output slice package wire's Add* functions append to.
	Out *[]byte
	// Frames is the stack of open containers; Frames[len-1] is innermost.
	Frames []JSONFrame
}

func (*JSONEncScratch) scratchType() ScratchType { return ScratchJSONEnc }

// JSONDecScratch holds the token stream produced by package jsontok plus a
// cursor into it, consumed by package wire's Pull* functions. The spec
// requires this scratchroom be 4-byte aligned and hold >=16 tokens; in Go
// the token slice is heap-allocated so alignment is the runtime's concern,
// and the >=16 minimum is met by jsontok.DefaultMaxTokens (64).
type JSONDecScratch struct {
	Input  []byte
	Tokens []jsontok.Token
	Pos    int
	// Stack tracks remaining-element counts of open array/object containers,
	// mirroring package cbor's DecState so package wire can offer the same
	// PullArrayNext "again" iterator shape over both encodings.
	Stack []int
}

func (*JSONDecScratch) scratchType() ScratchType { return ScratchJSONDec }

// CBOREncScratch/CBORDecScratch wrap package cbor's bounded encoder/decoder
// state (depth-3 nesting stack, spec §4.5).
type CBOREncScratch struct{ State *cbor.EncState }

func (*CBOREncScratch) scratchType() ScratchType { return ScratchCBOREnc }

type CBORDecScratch struct{ State *cbor.DecState }

func (*CBORDecScratch) scratchType() ScratchType { return ScratchCBORDec }

// COBSScratch marks a message mid COBS-frame encode/decode (spec §6); the
// transform itself is stateless (package cobs), so this carries no data.
type COBSScratch struct{}

func (COBSScratch) scratchType() ScratchType { return ScratchCOBS }

// ValidState is the message's classification/validation outcome (the
// spec's "valid" field): Unset before classification, Valid once a request
// or statement has been classified and resolved, ValidError once any
// decode/validation step has set an error status.
type ValidState uint8

const (
	Unset ValidState = iota
	Valid
	ValidError
)

// Proto distinguishes the two wire encodings (spec §1, §6).
type Proto uint8

const (
	ProtoText Proto = iota
	ProtoBinary
)

// Kind distinguishes request, response, and statement messages (spec §4.7).
// KindRequest is the zero value, so every decode path that cannot classify
// a message must set Kind explicitly rather than leaving it at its default
// — see KindDrop.
type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
	KindStatement
	// KindDrop marks a message package reqdecode could not classify at all
	// (an empty buffer, or a leading octet matching none of §4.7's
	// classes): spec §7 requires these be silently dropped rather than
	// answered, the same no-reply treatment as KindStatement.
	KindDrop
)

// SubCode further classifies a request once the leading octet and target
// are resolved (spec §4.7/§4.9): which verb, and for GET, which response
// shape to build.
type SubCode uint8

const (
	SubGet SubCode = iota
	SubFetch
	SubPatch
	SubCreate
	SubDelete
	SubExec
)

// Message is one in-flight ThingSet message: a backing buffer plus the
// standard scratchroom fields (spec §3) and the currently active extension
// scratchpad.
type Message struct {
	Valid    ValidState
	Proto    Proto
	Kind     Kind
	Encoding Proto // wire encoding actually used, independent of Proto once resolved
	Code     status.Code
	Auth     obj.Role

	scratch     Scratchpad
	scratchSize int

	// Target/Sub are populated by package reqdecode (C7) and consumed by
	// package setengine/respbuild (C8/C9).
	Target Oref
	Sub    SubCode
	// TrailingSlash records whether the text-protocol endpoint ended in
	// '/', distinguishing the "names" GET variant from "names+values"
	// (spec §4.9).
	TrailingSlash bool
}

// Oref mirrors obj.Oref to avoid every downstream package importing obj
// just to spell a field type; as an alias, Message.Target is an obj.Oref.
type Oref = obj.Oref

// New wraps a scratch-free message in RawScratch, its state immediately
// after allocation (spec §4.3).
func New() *Message {
	return &Message{scratch: RawScratch{}}
}

func (m *Message) ScratchType() ScratchType { return m.scratch.scratchType() }

func (m *Message) SetScratch(s Scratchpad) { m.scratch = s }

// Processing returns the processing scratchpad; it is a hard bug (debug
// assert) to call this when the message is not in that phase.
func (m *Message) Processing() *ProcessingScratch {
	debug.Assertf(m.ScratchType() == ScratchProcessing, "tsmsg: wrong scratchpad %s for Processing()", m.ScratchType())
	return m.scratch.(*ProcessingScratch)
}

func (m *Message) JSONEnc() *JSONEncScratch {
	debug.Assertf(m.ScratchType() == ScratchJSONEnc, "tsmsg: wrong scratchpad %s for JSONEnc()", m.ScratchType())
	return m.scratch.(*JSONEncScratch)
}

func (m *Message) JSONDec() *JSONDecScratch {
	debug.Assertf(m.ScratchType() == ScratchJSONDec, "tsmsg: wrong scratchpad %s for JSONDec()", m.ScratchType())
	return m.scratch.(*JSONDecScratch)
}

func (m *Message) CBOREnc() *CBOREncScratch {
	debug.Assertf(m.ScratchType() == ScratchCBOREnc, "tsmsg: wrong scratchpad %s for CBOREnc()", m.ScratchType())
	return m.scratch.(*CBOREncScratch)
}

func (m *Message) CBORDec() *CBORDecScratch {
	debug.Assertf(m.ScratchType() == ScratchCBORDec, "tsmsg: wrong scratchpad %s for CBORDec()", m.ScratchType())
	return m.scratch.(*CBORDecScratch)
}

// ToJSONDec re-initializes the message for JSON decoding from data,
// tokenizing it up front (request decode flips raw -> json-dec, spec §4.3).
func (m *Message) ToJSONDec(data []byte, maxTokens int) error {
	toks, err := jsontok.Parse(data, maxTokens)
	if err != nil {
		return err
	}
	m.scratch = &JSONDecScratch{Input: data, Tokens: toks}
	return nil
}

func (m *Message) ToJSONEnc(out *[]byte) { m.scratch = &JSONEncScratch{Out: out} }

func (m *Message) ToCBORDec(data []byte) {
	m.scratch = &CBORDecScratch{State: cbor.NewDecState(data)}
}

func (m *Message) ToCBOREnc(out *[]byte) {
	m.scratch = &CBOREncScratch{State: cbor.NewEncState(out)}
}

func (m *Message) ToCOBS() { m.scratch = COBSScratch{} }
func (m *Message) ToRaw()  { m.scratch = RawScratch{} }
