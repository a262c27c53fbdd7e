package shm

import (
	"sync/atomic"
	"unsafe"

	"github.com/bbtrace/bbtrace/internal/wire"
)

// EventRing is the single-producer/single-consumer ring carrying
// EventRecords from the agent to the viewer. Push is called only from the
// instrumentation/module-tracker side; Pop only from the viewer's
// transport receiver. Neither side ever blocks the other: a full ring
// drops the newest record and counts it, a drained ring reports empty.
type EventRing struct {
	header *wire.RingHeader
	base   *byte // address of buffer slot 0
}

func (r *EventRing) slot(index uint32) *wire.EventRecord {
	const mask = wire.EventRingCapacity - 1
	off := uintptr(index&mask) * wire.EventRecordSize
	return (*wire.EventRecord)(unsafe.Pointer(uintptr(unsafe.Pointer(r.base)) + off))
}

// Push attempts to append rec to the ring. It returns false, and
// increments the ring's DroppedCount, if the ring is full.
func (r *EventRing) Push(rec wire.EventRecord) bool {
	write := atomic.LoadUint32(&r.header.WriteIndex)
	read := atomic.LoadUint32(&r.header.ReadIndex)
	if write-read >= r.header.Capacity-1 {
		atomic.AddUint32(&r.header.DroppedCount, 1)
		return false
	}

	*r.slot(write) = rec

	// Publish the new record before advancing WriteIndex: a consumer that
	// observes the updated index must see the slot contents it names.
	atomic.StoreUint32(&r.header.WriteIndex, write+1)
	return true
}

// Pop removes and returns the oldest unread record, or reports ok=false if
// the ring currently holds none.
func (r *EventRing) Pop() (rec wire.EventRecord, ok bool) {
	read := atomic.LoadUint32(&r.header.ReadIndex)
	write := atomic.LoadUint32(&r.header.WriteIndex)
	if read == write {
		return wire.EventRecord{}, false
	}

	rec = *r.slot(read)
	atomic.StoreUint32(&r.header.ReadIndex, read+1)
	return rec, true
}

// DroppedCount reports how many records have been dropped due to a full
// ring since the segment was created.
func (r *EventRing) DroppedCount() uint32 {
	return atomic.LoadUint32(&r.header.DroppedCount)
}

// Depth reports the number of unread records currently queued.
func (r *EventRing) Depth() uint32 {
	write := atomic.LoadUint32(&r.header.WriteIndex)
	read := atomic.LoadUint32(&r.header.ReadIndex)
	return write - read
}

// CommandRing is the single-producer/single-consumer ring carrying
// CommandRecords from the viewer to the agent. Its push/pop protocol is
// identical to EventRing's; it is a distinct type rather than a shared
// generic because its element type, producer, and consumer are all
// different, and the two rings must never be confused at a call site.
type CommandRing struct {
	header *wire.RingHeader
	base   *byte
}

func (r *CommandRing) slot(index uint32) *wire.CommandRecord {
	const mask = wire.CommandRingCapacity - 1
	off := uintptr(index&mask) * wire.CommandRecordSize
	return (*wire.CommandRecord)(unsafe.Pointer(uintptr(unsafe.Pointer(r.base)) + off))
}

// Push attempts to append rec to the ring. It returns false, and
// increments the ring's DroppedCount, if the ring is full.
func (r *CommandRing) Push(rec wire.CommandRecord) bool {
	write := atomic.LoadUint32(&r.header.WriteIndex)
	read := atomic.LoadUint32(&r.header.ReadIndex)
	if write-read >= r.header.Capacity-1 {
		atomic.AddUint32(&r.header.DroppedCount, 1)
		return false
	}

	*r.slot(write) = rec
	atomic.StoreUint32(&r.header.WriteIndex, write+1)
	return true
}

// Pop removes and returns the oldest unread command, or reports ok=false
// if the ring currently holds none.
func (r *CommandRing) Pop() (rec wire.CommandRecord, ok bool) {
	read := atomic.LoadUint32(&r.header.ReadIndex)
	write := atomic.LoadUint32(&r.header.WriteIndex)
	if read == write {
		return wire.CommandRecord{}, false
	}

	rec = *r.slot(read)
	atomic.StoreUint32(&r.header.ReadIndex, read+1)
	return rec, true
}

// DroppedCount reports how many commands have been dropped due to a full
// ring since the segment was created.
func (r *CommandRing) DroppedCount() uint32 {
	return atomic.LoadUint32(&r.header.DroppedCount)
}
