package viewercore_test

import (
	"testing"

	"github.com/bbtrace/bbtrace/internal/shm"
	"github.com/bbtrace/bbtrace/internal/viewercore"
	"github.com/bbtrace/bbtrace/internal/wire"
)

func TestCommandSenderAddRangesEmptyIsNoOp(t *testing.T) {
	seg := shm.NewInMemory(0x1, 100)
	seg.InitHeader(0x1, 100)
	sender := viewercore.NewCommandSender(seg, nil)

	if err := sender.AddRanges(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := seg.CommandRing().Pop(); ok {
		t.Fatal("AddRanges with no ranges must not push a command")
	}
}

func TestCommandSenderAddRangesRejectsTooMany(t *testing.T) {
	seg := shm.NewInMemory(0x1, 100)
	seg.InitHeader(0x1, 100)
	sender := viewercore.NewCommandSender(seg, nil)

	ranges := make([]wire.AddressRange, wire.MaxRangesPerCommand+1)
	if err := sender.AddRanges(ranges); err == nil {
		t.Fatal("expected an error for more than MaxRangesPerCommand ranges")
	}
}

func TestCommandSenderAddRangesAndClearRangesRoundTrip(t *testing.T) {
	seg := shm.NewInMemory(0x1, 100)
	seg.InitHeader(0x1, 100)
	sender := viewercore.NewCommandSender(seg, nil)

	ranges := []wire.AddressRange{{Base: 0x400000, BeginRVA: 0x10, EndRVA: 0x20}}
	if err := sender.AddRanges(ranges); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := seg.CommandRing().Pop()
	if !ok {
		t.Fatal("expected a queued AddRanges command")
	}
	if rec.Type != wire.CommandAddRanges || rec.Count != 1 || rec.Ranges[0] != ranges[0] {
		t.Fatalf("got %+v", rec)
	}

	if err := sender.ClearRanges(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok = seg.CommandRing().Pop()
	if !ok || rec.Type != wire.CommandClearRanges {
		t.Fatalf("got %+v, ok=%v", rec, ok)
	}
}
