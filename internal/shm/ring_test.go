package shm

import (
	"testing"

	"github.com/bbtrace/bbtrace/internal/wire"
)

func newTestSegment(t *testing.T) *Segment {
	t.Helper()
	return NewInMemory(0xdeadbeef, 4242)
}

func TestSegmentInitHeaderAndVerify(t *testing.T) {
	seg := newTestSegment(t)

	if err := seg.Verify(0xdeadbeef); err != nil {
		t.Fatalf("Verify(matching channel) = %v, want nil", err)
	}
	if err := seg.Verify(0x1); err == nil {
		t.Fatal("Verify(mismatched channel) = nil, want error")
	}

	h := seg.Header()
	if h.Magic != wire.ShmMagic {
		t.Errorf("Magic = %#x, want %#x", h.Magic, wire.ShmMagic)
	}
	if h.ProducerPID != 4242 {
		t.Errorf("ProducerPID = %d, want 4242", h.ProducerPID)
	}
}

func TestEventRingRoundTrip(t *testing.T) {
	seg := newTestSegment(t)
	ring := seg.EventRing()

	want := wire.EventRecord{
		Type:              wire.EventBasicBlockHit,
		PID:               100,
		TID:               200,
		TimestampUs:       123456,
		AppPCStart:        0x1000,
		AppPCEndExclusive: 0x1010,
	}
	if ok := ring.Push(want); !ok {
		t.Fatal("Push on empty ring returned false")
	}
	if depth := ring.Depth(); depth != 1 {
		t.Fatalf("Depth() = %d, want 1", depth)
	}

	got, ok := ring.Pop()
	if !ok {
		t.Fatal("Pop() ok = false, want true")
	}
	if got != want {
		t.Fatalf("Pop() = %+v, want %+v", got, want)
	}

	if _, ok := ring.Pop(); ok {
		t.Fatal("Pop() on drained ring ok = true, want false")
	}
}

func TestEventRingDropsOnFull(t *testing.T) {
	seg := newTestSegment(t)
	ring := seg.EventRing()

	for i := uint32(0); i < wire.EventRingCapacity-1; i++ {
		if !ring.Push(wire.EventRecord{PID: i}) {
			t.Fatalf("Push(%d) returned false before ring was full", i)
		}
	}
	if ring.DroppedCount() != 0 {
		t.Fatalf("DroppedCount() = %d before any overflow, want 0", ring.DroppedCount())
	}

	if ring.Push(wire.EventRecord{PID: 9999}) {
		t.Fatal("Push on a full ring returned true, want false")
	}
	if ring.DroppedCount() != 1 {
		t.Fatalf("DroppedCount() = %d after one overflow, want 1", ring.DroppedCount())
	}

	// Draining one slot makes room for exactly one more push.
	if _, ok := ring.Pop(); !ok {
		t.Fatal("Pop() ok = false on a full ring, want true")
	}
	if !ring.Push(wire.EventRecord{PID: 10000}) {
		t.Fatal("Push after draining one slot returned false, want true")
	}
}

func TestCommandRingRoundTrip(t *testing.T) {
	seg := newTestSegment(t)
	ring := seg.CommandRing()

	want := wire.CommandRecord{
		Type:  wire.CommandAddRanges,
		Count: 2,
	}
	want.Ranges[0] = wire.AddressRange{Base: 0x400000, BeginRVA: 0x1000, EndRVA: 0x1010}
	want.Ranges[1] = wire.AddressRange{Base: 0x400000, BeginRVA: 0x2000, EndRVA: 0x2020}

	if ok := ring.Push(want); !ok {
		t.Fatal("Push on empty ring returned false")
	}
	got, ok := ring.Pop()
	if !ok {
		t.Fatal("Pop() ok = false, want true")
	}
	if got != want {
		t.Fatalf("Pop() = %+v, want %+v", got, want)
	}
}
