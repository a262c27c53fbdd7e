// Package shm maps a bbtrace channel's shared-memory segment and exposes
// its two SPSC rings. The layout is defined by internal/wire; this package
// is concerned with mapping the segment into process memory (platform file
// mapping) and with the lock-free push/pop protocol layered on top of it.
package shm

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/bbtrace/bbtrace/internal/wire"
)

// ErrAlreadyExists is wrapped into the error CreateSegment returns when a
// file mapping of the requested name already existed. The returned Segment
// is still a valid, mapped view of that existing object — callers that
// want create-or-attach semantics should check errors.Is(err,
// ErrAlreadyExists) and, if so, use the Segment rather than discard it.
var ErrAlreadyExists = errors.New("shm: segment already exists")

// Segment is a memory-mapped bbtrace channel. The zero value is not usable;
// construct one via CreateSegment or OpenSegment.
type Segment struct {
	buf      []byte // the mapped view, length wire.SegmentSize
	unmapper func() error
}

// wrap builds a Segment around an already-mapped byte slice of the correct
// size. unmapper releases the underlying OS mapping; it is called at most
// once, from Close.
func wrap(buf []byte, unmapper func() error) (*Segment, error) {
	if len(buf) < wire.SegmentSize {
		return nil, fmt.Errorf("shm: mapped view is %d bytes, want at least %d", len(buf), wire.SegmentSize)
	}
	return &Segment{buf: buf[:wire.SegmentSize], unmapper: unmapper}, nil
}

// NewInMemory builds a Segment backed by a plain heap-allocated byte slice
// rather than an OS file mapping, already initialized via InitHeader. It
// is useful for exercising the ring/segment protocol in a single process —
// in tests, or in any tool that wants bbtrace's wire format without a real
// cross-process channel.
func NewInMemory(channel uint32, producerPID uint32) *Segment {
	buf := make([]byte, wire.SegmentSize)
	seg, err := wrap(buf, func() error { return nil })
	if err != nil {
		// wrap only fails when the buffer is undersized; buf is always
		// exactly wire.SegmentSize above.
		panic(err)
	}
	seg.InitHeader(channel, producerPID)
	return seg
}

// Header returns a pointer into the mapped segment's ShmHeader. Callers
// must not retain it past Close.
func (s *Segment) Header() *wire.ShmHeader {
	return (*wire.ShmHeader)(unsafe.Pointer(&s.buf[wire.OffsetShmHeader]))
}

// InitHeader stamps a freshly created segment's header and zeroes both ring
// headers. It must be called exactly once, by whichever side created the
// segment (CreateSegment's caller), before the other side attaches.
func (s *Segment) InitHeader(channel uint32, producerPID uint32) {
	h := s.Header()
	h.Channel = channel
	h.ProducerPID = producerPID
	h.EventCapacity = wire.EventRingCapacity
	h.CommandCapacity = wire.CommandRingCapacity

	er := (*wire.RingHeader)(unsafe.Pointer(&s.buf[wire.OffsetEventRing]))
	*er = wire.RingHeader{Capacity: wire.EventRingCapacity}

	cr := (*wire.RingHeader)(unsafe.Pointer(&s.buf[wire.OffsetCmdRing]))
	*cr = wire.RingHeader{Capacity: wire.CommandRingCapacity}

	// Magic is stamped last: it is the signal other attachers look for,
	// so every other field must already be in place when it appears.
	h.Magic = wire.ShmMagic
}

// Verify checks that an attached segment's header matches what an
// attacher expects for the given channel, returning an error describing
// the mismatch otherwise. It guards against attaching to a stale or
// foreign mapping that happens to share a name.
func (s *Segment) Verify(wantChannel uint32) error {
	h := s.Header()
	if h.Magic != wire.ShmMagic {
		return fmt.Errorf("shm: verify: bad magic %#x, want %#x", h.Magic, wire.ShmMagic)
	}
	if h.Channel != wantChannel {
		return fmt.Errorf("shm: verify: channel %#x, want %#x", h.Channel, wantChannel)
	}
	if h.EventCapacity != wire.EventRingCapacity || h.CommandCapacity != wire.CommandRingCapacity {
		return fmt.Errorf("shm: verify: ring capacities %d/%d do not match this build's %d/%d",
			h.EventCapacity, h.CommandCapacity, wire.EventRingCapacity, wire.CommandRingCapacity)
	}
	return nil
}

// EventRing returns the producer-to-consumer ring embedded in the segment.
func (s *Segment) EventRing() *EventRing {
	return &EventRing{
		header: (*wire.RingHeader)(unsafe.Pointer(&s.buf[wire.OffsetEventRing])),
		base:   &s.buf[wire.OffsetEventBuf],
	}
}

// CommandRing returns the consumer-to-producer ring embedded in the segment.
func (s *Segment) CommandRing() *CommandRing {
	return &CommandRing{
		header: (*wire.RingHeader)(unsafe.Pointer(&s.buf[wire.OffsetCmdRing])),
		base:   &s.buf[wire.OffsetCmdBuf],
	}
}

// StringHeap returns the mutable byte region backing the segment's string
// heap. Its owner is the producer; the consumer must treat it as
// read-only.
func (s *Segment) StringHeap() []byte {
	return s.buf[wire.OffsetStrHeap : wire.OffsetStrHeap+wire.StringHeapSize]
}

// Close releases the segment's OS-level mapping. It does not destroy the
// underlying named object; the OS reclaims a file mapping once its last
// handle closes, which happens independently in each process.
func (s *Segment) Close() error {
	if s.unmapper == nil {
		return nil
	}
	u := s.unmapper
	s.unmapper = nil
	return u()
}
