// Package buf implements the pooled byte buffer that backs every message in
// the engine (spec §4.1, component C1). A Buffer is a single allocation with
// headroom/data/tailroom regions plus a fixed-size scratchroom at each end
// for the standard and extension scratchpads (spec §3); every other
// component builds on top of a *Buffer rather than allocating its own bytes.
//
// Grounded on the teacher's pooled-SGL/Slab acquire-then-release idiom
// (cluster/lom.go's AllocLOM/FreeLOM via sync.Pool, and the
// allocate-with-timeout contract implied throughout cluster/lom.go's
// mountpath-bound I/O). Refcounting uses go.uber.org/atomic, mirroring the
// teacher's 3rdparty/atomic usage in ais/keepalive.go.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package buf

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/ThingSet/thingset-device-library-sub000/status"
	"github.com/ThingSet/thingset-device-library-sub000/ttl"
)

// DefaultScratchroom is the size reserved at each end of a buffer for the
// standard scratchroom (front) and extension scratchroom (tail) when a
// caller doesn't size it explicitly (spec §4.3: sized at alloc time by
// alloc_raw/alloc_json/alloc_cbor).
const DefaultScratchroom = 64

// Buffer is a pooled, reference-counted byte container with
// headroom/data/tailroom regions. head <= data-start <= data-end <= tail,
// and tail never exceeds cap(storage) - scratchroomSize (spec §3 invariant).
type Buffer struct {
	storage       []byte
	head          int // start of headroom
	dataStart     int
	dataEnd       int
	tail          int // end of tailroom == start of scratchroom
	scratchroom   int
	refcount      atomic.Int32
	pool          *Pool
}

// Pool is a shared, internally synchronized buffer pool (spec §4.1, §5).
type Pool struct {
	bufSize int
	count   int
	sema    chan struct{} // bounds outstanding buffers to `count`
	free    sync.Pool
}

// NewPool creates a pool with bufCount buffers of bufDataSize payload bytes
// each (config options BUF_COUNT/BUF_DATA_SIZE, spec §6).
func NewPool(bufCount, bufDataSize int) *Pool {
	p := &Pool{bufSize: bufDataSize, count: bufCount}
	p.sema = make(chan struct{}, bufCount)
	for i := 0; i < bufCount; i++ {
		p.sema <- struct{}{}
	}
	p.free.New = func() interface{} {
		return make([]byte, bufDataSize+2*DefaultScratchroom)
	}
	return p
}

// Alloc reserves a slot from the pool (respecting timeout) and returns a
// Buffer sized for payloadSize bytes of data plus scratchroomSize bytes of
// scratchroom at each end. Refcount starts at 1; callers MUST Unref on every
// exit path (scoped acquisition, spec §4.1).
func (p *Pool) Alloc(ctx context.Context, payloadSize, scratchroomSize int, timeout time.Duration) (*Buffer, error) {
	if scratchroomSize <= 0 {
		scratchroomSize = DefaultScratchroom
	}
	need := payloadSize + 2*scratchroomSize
	if need > p.bufSize+2*DefaultScratchroom {
		return nil, status.ErrOOM("requested %d bytes exceeds pool buffer size", need)
	}
	if !p.acquireSlot(ctx, timeout) {
		return nil, status.ErrOOM("pool exhausted (timed out after %s)", timeout)
	}
	raw := p.free.Get().([]byte)
	if cap(raw) < need {
		raw = make([]byte, need)
	}
	b := &Buffer{
		storage:     raw[:cap(raw)],
		head:        scratchroomSize,
		dataStart:   scratchroomSize,
		dataEnd:     scratchroomSize,
		tail:        cap(raw) - scratchroomSize,
		scratchroom: scratchroomSize,
		pool:        p,
	}
	b.refcount.Store(1)
	return b, nil
}

func (p *Pool) acquireSlot(ctx context.Context, timeout time.Duration) bool {
	if timeout == ttl.IMMEDIATE {
		select {
		case <-p.sema:
			return true
		default:
			return false
		}
	}
	if timeout == ttl.FOREVER {
		select {
		case <-p.sema:
			return true
		case <-ctx.Done():
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.sema:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Pool) release(raw []byte) {
	p.free.Put(raw)
	p.sema <- struct{}{}
}

// Ref increments the reference count; paired with Unref for the fan-out
// case described in spec §9 ("clone for the fan-out case").
func (b *Buffer) Ref() { b.refcount.Inc() }

// Unref decrements the reference count, returning the buffer's storage to
// the pool once it reaches zero. Unref on an already-zero buffer is a bug.
func (b *Buffer) Unref() error {
	n := b.refcount.Dec()
	if n < 0 {
		return status.ErrAlreadyUnref("buffer already unreferenced")
	}
	if n == 0 && b.pool != nil {
		b.pool.release(b.storage)
		b.storage = nil
	}
	return nil
}

// Clone deep-copies the payload and standard scratchroom into a freshly
// allocated buffer (spec §4.1).
func (b *Buffer) Clone(ctx context.Context, timeout time.Duration) (*Buffer, error) {
	nb, err := b.pool.Alloc(ctx, b.DataLen(), b.scratchroom, timeout)
	if err != nil {
		return nil, err
	}
	copy(nb.FrontScratchroom(), b.FrontScratchroom()) // standard scratchroom (front)
	n := copy(nb.storage[nb.dataStart:], b.Data())
	nb.dataEnd = nb.dataStart + n
	return nb, nil
}

// Reset drops all data, rewinding dataStart/dataEnd to the front of the
// payload region without returning the buffer to the pool.
func (b *Buffer) Reset() {
	b.dataStart = b.head
	b.dataEnd = b.head
	b.tail = len(b.storage) - b.scratchroom
}

// Data returns the current payload slice (between dataStart and dataEnd).
func (b *Buffer) Data() []byte { return b.storage[b.dataStart:b.dataEnd] }

// DataLen is the current payload length.
func (b *Buffer) DataLen() int { return b.dataEnd - b.dataStart }

// Headroom returns the unused bytes before the payload, for protocol
// headers that are easier to prepend than to shift data for.
func (b *Buffer) Headroom() []byte { return b.storage[b.head:b.dataStart] }

// Tailroom returns the unused bytes after the payload and before the
// extension scratchroom.
func (b *Buffer) Tailroom() []byte { return b.storage[b.dataEnd:b.tail] }

// FrontScratchroom / TailScratchroom expose the two fixed regions reserved
// at alloc time for the standard and extension scratchpads (spec §3).
func (b *Buffer) FrontScratchroom() []byte { return b.storage[0:b.head] }
func (b *Buffer) TailScratchroom() []byte  { return b.storage[b.tail:len(b.storage)] }

// ReserveHeadroom claims n bytes of headroom for the payload by moving
// dataStart back n bytes (the headroom shrinks by n); it panics (a
// programming error, debug-assert class) if insufficient headroom remains.
func (b *Buffer) ReserveHeadroom(n int) {
	if b.dataStart-n < b.head {
		panic("buf: headroom reserve exceeds available space")
	}
	b.dataStart -= n
}

// ReserveTailroom panics, like ReserveHeadroom, if fewer than n bytes of
// tailroom remain. It does not move dataEnd; Add is what consumes tailroom.
func (b *Buffer) ReserveTailroom(n int) {
	if b.dataEnd+n > b.tail {
		panic("buf: tailroom reserve exceeds available space")
	}
}

// Push prepends data to the front of the payload, consuming headroom.
func (b *Buffer) Push(data []byte) {
	b.ReserveHeadroom(len(data))
	copy(b.storage[b.dataStart:], data)
}

// Pull removes and returns the first n bytes of the payload, advancing
// dataStart (mirrors the C pull semantics used by every typed Pull* in
// package wire).
func (b *Buffer) Pull(n int) ([]byte, error) {
	if n > b.DataLen() {
		return nil, status.ErrBadRequest("pull(%d) exceeds available data(%d)", n, b.DataLen())
	}
	out := b.storage[b.dataStart : b.dataStart+n]
	b.dataStart += n
	return out, nil
}

// Add appends data to the end of the payload, consuming tailroom.
func (b *Buffer) Add(data []byte) error {
	if b.dataEnd+len(data) > b.tail {
		return status.ErrTooLarge("add(%d) exceeds available tailroom", len(data))
	}
	copy(b.storage[b.dataEnd:], data)
	b.dataEnd += len(data)
	return nil
}

// Remove truncates the last n bytes off the payload (used to unwind a
// partially-written value on a validation failure within a single pass).
func (b *Buffer) Remove(n int) {
	if n > b.DataLen() {
		n = b.DataLen()
	}
	b.dataEnd -= n
}

// Cap returns the total storage capacity excluding both scratchrooms —
// i.e. the maximum possible payload+head/tailroom span.
func (b *Buffer) Cap() int { return b.tail - b.head }

// Mark/Rewind save and restore dataStart/dataEnd.
type Mark struct{ start, end int }

func (b *Buffer) Mark() Mark { return Mark{b.dataStart, b.dataEnd} }
func (b *Buffer) Rewind(m Mark) {
	b.dataStart = m.start
	b.dataEnd = m.end
}
