package agentcore_test

import (
	"context"
	"testing"
	"time"

	"github.com/bbtrace/bbtrace/internal/agentcore"
	"github.com/bbtrace/bbtrace/internal/dbihost"
	"github.com/bbtrace/bbtrace/internal/shm"
	"github.com/bbtrace/bbtrace/internal/wire"
)

// fakeHost is a minimal dbihost.Host double: it records registered
// callbacks and lets a test fire them directly, and it treats every
// InsertCleanCall as "the block executed once, right now."
type fakeHost struct {
	bbCallback func(dbihost.BasicBlock) bool
	loadFn     func(dbihost.ModuleLoadEvent)
	unloadFn   func(uint64)

	pid, tid uint32
	clock    uint64
}

func (h *fakeHost) RegisterModuleLoadCallback(fn func(dbihost.ModuleLoadEvent)) { h.loadFn = fn }
func (h *fakeHost) RegisterModuleUnloadCallback(fn func(uint64))                { h.unloadFn = fn }
func (h *fakeHost) RegisterBBCallback(fn func(dbihost.BasicBlock) bool)         { h.bbCallback = fn }

func (h *fakeHost) InsertCleanCall(_ uintptr, args dbihost.CleanCallArgs, onBB func(dbihost.CleanCallArgs)) {
	onBB(args)
}

func (h *fakeHost) CurrentThreadID() uint32  { return h.tid }
func (h *fakeHost) CurrentProcessID() uint32 { return h.pid }
func (h *fakeHost) MonotonicMicros() uint64  { h.clock++; return h.clock }

func newFakeHost() *fakeHost {
	return &fakeHost{pid: 111, tid: 222}
}

func TestBBDiscoveryRejectsBlockWithNoLastInstruction(t *testing.T) {
	host := newFakeHost()
	c := agentcore.New(nil)
	c.Attach(host)

	host.loadFn(dbihost.ModuleLoadEvent{Start: 0x400000, End: 0x500000, FullPath: `C:\app.exe`})

	accepted := host.bbCallback(dbihost.BasicBlock{StartPC: 0x401000, HasLastInstruction: false})
	if accepted {
		t.Fatal("BB with no last instruction was accepted")
	}
}

func TestBBDiscoveryRejectsBlockOutsideMainModule(t *testing.T) {
	host := newFakeHost()
	c := agentcore.New(nil)
	c.Attach(host)

	host.loadFn(dbihost.ModuleLoadEvent{Start: 0x400000, End: 0x500000, FullPath: `C:\app.exe`})

	accepted := host.bbCallback(dbihost.BasicBlock{
		StartPC:            0x700000,
		EndExclusivePC:     0x700010,
		HasLastInstruction: true,
	})
	if accepted {
		t.Fatal("BB outside the main module range was accepted")
	}
}

func TestOnBBNoOpBeforeAttach(t *testing.T) {
	host := newFakeHost()
	c := agentcore.New(nil)
	c.Attach(host)

	host.loadFn(dbihost.ModuleLoadEvent{Start: 0x400000, End: 0x500000, FullPath: `C:\app.exe`})

	// No Init() call yet: the channel is not attached, so the clean call
	// must be a no-op even though the block itself is accepted for
	// instrumentation.
	accepted := host.bbCallback(dbihost.BasicBlock{
		StartPC:            0x401000,
		EndExclusivePC:     0x401010,
		HasLastInstruction: true,
	})
	if !accepted {
		t.Fatal("BB inside the main module range was rejected")
	}
}

func TestDeferredModuleAddFlushesOnFirstPostAttachHit(t *testing.T) {
	host := newFakeHost()
	c := agentcore.New(nil)
	c.Attach(host)

	// Module loads before attach.
	host.loadFn(dbihost.ModuleLoadEvent{Start: 0x400000, End: 0x401000, FullPath: "a.exe"})

	seg := shm.NewInMemory(0x1, 999)
	c.Init(seg)

	host.bbCallback(dbihost.BasicBlock{
		StartPC:            0x400010,
		EndExclusivePC:     0x400020,
		HasLastInstruction: true,
	})

	events := drainAll(seg.EventRing())
	if len(events) != 2 {
		t.Fatalf("got %d events after first post-attach hit, want 2 (ModuleAdd, BasicBlockHit)", len(events))
	}

	modEvt := events[0]
	if modEvt.Type != wire.EventModuleAdd {
		t.Fatalf("events[0].Type = %v, want ModuleAdd", modEvt.Type)
	}
	if modEvt.PathIndex != 0 || modEvt.PathLength != 5 {
		t.Fatalf("ModuleAdd pathIndex/pathLength = %d/%d, want 0/5", modEvt.PathIndex, modEvt.PathLength)
	}

	heap := seg.StringHeap()
	if got := string(heap[0:5]); got != "a.exe" {
		t.Fatalf("string heap[0:5] = %q, want %q", got, "a.exe")
	}
	if heap[5] != 0 {
		t.Fatalf("string heap[5] = %d, want NUL terminator", heap[5])
	}

	hitEvt := events[1]
	if hitEvt.Type != wire.EventBasicBlockHit {
		t.Fatalf("events[1].Type = %v, want BasicBlockHit", hitEvt.Type)
	}
	if hitEvt.AppPCStart != 0x400010 || hitEvt.AppPCEndExclusive != 0x400020 {
		t.Fatalf("BasicBlockHit PCs = %#x/%#x, want 0x400010/0x400020", hitEvt.AppPCStart, hitEvt.AppPCEndExclusive)
	}
}

func TestModuleUnloadBeforeAttachIsDropped(t *testing.T) {
	host := newFakeHost()
	c := agentcore.New(nil)
	c.Attach(host)

	host.unloadFn(0x400000)

	seg := shm.NewInMemory(0x1, 999)
	c.Init(seg)

	if _, ok := seg.EventRing().Pop(); ok {
		t.Fatal("a pre-attach ModuleRemove was delivered after attach, want it dropped")
	}
}

func TestCommandPollerAppliesAddAndClearRanges(t *testing.T) {
	c := agentcore.New(nil)
	seg := shm.NewInMemory(0x1, 999)
	c.Init(seg)

	add := wire.CommandRecord{Type: wire.CommandAddRanges, Count: 1}
	add.Ranges[0] = wire.AddressRange{Base: 0x400000, BeginRVA: 0x1000, EndRVA: 0x2000}
	seg.CommandRing().Push(add)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go c.Run(ctx)

	waitUntil(t, 500*time.Millisecond, func() bool {
		return c.ShouldInstrument(0x400000+0x1500) && !c.ShouldInstrument(0x400000+0x5000)
	})

	clear := wire.CommandRecord{Type: wire.CommandClearRanges}
	seg.CommandRing().Push(clear)

	waitUntil(t, 500*time.Millisecond, func() bool {
		return c.ShouldInstrument(0x400000 + 0x5000)
	})
}

func drainAll(ring *shm.EventRing) []wire.EventRecord {
	var out []wire.EventRecord
	for {
		rec, ok := ring.Pop()
		if !ok {
			return out
		}
		out = append(out, rec)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not satisfied within timeout")
}
