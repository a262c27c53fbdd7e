package wire

import (
	"testing"
	"unsafe"
)

func TestRecordSizesMatchConstants(t *testing.T) {
	tests := []struct {
		name   string
		actual uintptr
		want   int
	}{
		{"EventRecord", unsafe.Sizeof(EventRecord{}), EventRecordSize},
		{"CommandRecord", unsafe.Sizeof(CommandRecord{}), CommandRecordSize},
		{"RingHeader", unsafe.Sizeof(RingHeader{}), RingHeaderSize},
		{"ShmHeader", unsafe.Sizeof(ShmHeader{}), ShmHeaderSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != uintptr(tt.want) {
				t.Fatalf("%s: got size %d, want %d", tt.name, tt.actual, tt.want)
			}
		})
	}
}

func TestCapacitiesArePowersOfTwo(t *testing.T) {
	for _, cap := range []uint32{EventRingCapacity, CommandRingCapacity} {
		if cap == 0 || cap&(cap-1) != 0 {
			t.Fatalf("capacity %d is not a power of two", cap)
		}
	}
}

func TestSegmentLayoutIsMonotonic(t *testing.T) {
	offsets := []int{
		OffsetShmHeader,
		OffsetEventRing,
		OffsetEventBuf,
		OffsetCmdRing,
		OffsetCmdBuf,
		OffsetStrHeap,
		SegmentSize,
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Fatalf("segment layout offset %d (%d) does not strictly follow offset %d (%d)",
				i, offsets[i], i-1, offsets[i-1])
		}
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		in   EventType
		want string
	}{
		{EventBasicBlockHit, "basic_block_hit"},
		{EventModuleAdd, "module_add"},
		{EventModuleRemove, "module_remove"},
		{EventType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("EventType(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandTypeString(t *testing.T) {
	tests := []struct {
		in   CommandType
		want string
	}{
		{CommandAddRanges, "add_ranges"},
		{CommandClearRanges, "clear_ranges"},
		{CommandType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("CommandType(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}
