// Package wire defines the fixed on-segment layout shared between the
// producer agent and the viewer: event/command record shapes, ring headers,
// and the shared-memory segment header. Every type here is a flat struct
// with an explicit, asserted size — it is read and written as raw bytes
// across the shared-memory boundary, never via encoding/gob or JSON.
package wire

import (
	"strconv"
	"unsafe"
)

// EventType tags the payload carried by an EventRecord.
type EventType uint16

const (
	// EventBasicBlockHit reports one basic-block execution.
	EventBasicBlockHit EventType = iota
	// EventModuleAdd reports a module being mapped into the target process.
	EventModuleAdd
	// EventModuleRemove reports a module being unmapped.
	EventModuleRemove
)

func (t EventType) String() string {
	switch t {
	case EventBasicBlockHit:
		return "basic_block_hit"
	case EventModuleAdd:
		return "module_add"
	case EventModuleRemove:
		return "module_remove"
	default:
		return "unknown"
	}
}

// CommandType tags the payload carried by a CommandRecord.
type CommandType uint16

const (
	// CommandAddRanges asks the agent to append the enclosed address ranges
	// to its active-range table (read by ShouldInstrument; basic-block
	// reporting does not depend on it).
	CommandAddRanges CommandType = iota
	// CommandClearRanges asks the agent to drop all previously added ranges.
	CommandClearRanges
)

func (t CommandType) String() string {
	switch t {
	case CommandAddRanges:
		return "add_ranges"
	case CommandClearRanges:
		return "clear_ranges"
	default:
		return "unknown"
	}
}

// Segment geometry. These are fixed by design, not configuration: both the
// agent and the viewer must agree on the layout of a channel without
// exchanging it, since the one-time handshake data is the layout itself.
const (
	// EventRingCapacity is the number of event record slots in the event ring.
	// Must be a power of two (slot index is derived via a mask, not modulo).
	EventRingCapacity = 1 << 15 // 32768

	// CommandRingCapacity is the number of command record slots in the
	// command ring. Also a power of two.
	CommandRingCapacity = 1 << 10 // 1024

	// StringHeapSize is the size in bytes of the fixed string heap holding
	// module path text referenced by EventRecord.PathIndex/PathLength.
	StringHeapSize = 16384

	// MaxRangesPerCommand bounds the number of address ranges a single
	// CommandRecord can carry.
	MaxRangesPerCommand = 8

	// ShmMagic identifies a segment as a valid bbtrace channel and guards
	// against attaching to an unrelated or stale mapping.
	ShmMagic uint32 = 0x52544252
)

// AddressRange names one [BeginRVA, EndRVA) range within a module, anchored
// to the module's load Base so the agent can translate it to a runtime PC
// range without further lookups.
type AddressRange struct {
	Base     uint64
	BeginRVA uint64
	EndRVA   uint64
}

// EventRecord is one producer-to-consumer wire record. Its fields are a
// superset of the BBEvent/ModEvent variants described in the original
// trace format: rather than a C-style union, the flattened layout below
// always carries every field, tagged by Type. This trades a few unused
// bytes per record for a single fixed Go struct with no unsafe punning at
// the call site.
type EventRecord struct {
	TimestampUs       uint64
	AppPCStart        uint64 // BasicBlockHit: start PC. ModuleAdd/Remove: unused.
	AppPCEndExclusive uint64 // BasicBlockHit: end PC (exclusive). ModuleAdd/Remove: unused.
	Base              uint64 // ModuleAdd/Remove: module load base.
	Size              uint64 // ModuleAdd: module image size. Remove: unused.
	PID               uint32
	TID               uint32 // BasicBlockHit only.
	PathIndex         uint16 // ModuleAdd: offset into the string heap.
	PathLength        uint16 // ModuleAdd: length in bytes of the path text.
	Type              EventType
	_                 uint16 // pad to keep the struct's size a multiple of 8
}

// EventRecordSize is the wire size of EventRecord in bytes, asserted below.
const EventRecordSize = 56

// CommandRecord is one consumer-to-producer wire record.
type CommandRecord struct {
	Ranges [MaxRangesPerCommand]AddressRange
	Type   CommandType
	Count  uint16 // number of entries in Ranges that are valid, 0..MaxRangesPerCommand
	_      uint32 // pad to keep the struct's size a multiple of 8
}

// CommandRecordSize is the wire size of CommandRecord in bytes, asserted below.
const CommandRecordSize = MaxRangesPerCommand*24 + 8

// RingHeader is the control block at the front of each ring: a fixed-size
// circular buffer of capacity Capacity, advanced by a single writer and a
// single reader via monotonically increasing indices that are masked (not
// modulo'd, since Capacity is a power of two) into slot positions.
type RingHeader struct {
	Capacity     uint32
	WriteIndex   uint32 // advanced only by the producer
	ReadIndex    uint32 // advanced only by the consumer
	DroppedCount uint32 // incremented by the producer when the ring is full
}

// RingHeaderSize is the wire size of RingHeader in bytes, asserted below.
const RingHeaderSize = 16

// ShmHeader is the fixed header at offset 0 of every channel segment. A
// reader must check Magic and Channel before trusting the rest of the
// segment: a name collision against a stale or foreign mapping is otherwise
// indistinguishable from a live one.
type ShmHeader struct {
	Magic           uint32
	Channel         uint32 // FNV-1a hash of the channel name, see internal/session
	ProducerPID     uint32
	EventCapacity   uint32
	CommandCapacity uint32
	_               uint32 // pad to 24 bytes
}

// ShmHeaderSize is the wire size of ShmHeader in bytes, asserted below.
const ShmHeaderSize = 24

// Layout offsets within the segment, in bytes. Declared in segment order;
// each ring's header immediately precedes its buffer.
const (
	OffsetShmHeader = 0
	OffsetEventRing = OffsetShmHeader + ShmHeaderSize
	OffsetEventBuf  = OffsetEventRing + RingHeaderSize
	OffsetCmdRing   = OffsetEventBuf + EventRingCapacity*EventRecordSize
	OffsetCmdBuf    = OffsetCmdRing + RingHeaderSize
	OffsetStrHeap   = OffsetCmdBuf + CommandRingCapacity*CommandRecordSize

	// SegmentSize is the total number of bytes the channel's shared
	// memory mapping must be created with.
	SegmentSize = OffsetStrHeap + StringHeapSize
)

// sizeAssertions panics at package init if any wire type's actual in-memory
// size (as Go lays it out) diverges from the size this package declares and
// uses for offset arithmetic. A mismatch here means a struct was edited
// without updating its paired constant.
func init() {
	assertSize("EventRecord", unsafe.Sizeof(EventRecord{}), EventRecordSize)
	assertSize("CommandRecord", unsafe.Sizeof(CommandRecord{}), CommandRecordSize)
	assertSize("RingHeader", unsafe.Sizeof(RingHeader{}), RingHeaderSize)
	assertSize("ShmHeader", unsafe.Sizeof(ShmHeader{}), ShmHeaderSize)
}

func assertSize(name string, actual uintptr, want int) {
	if actual != uintptr(want) {
		panic("wire: " + name + " size mismatch: layout assumes " +
			strconv.Itoa(want) + " bytes, runtime reports " + strconv.Itoa(int(actual)))
	}
}
