package agentcore

import (
	"github.com/bbtrace/bbtrace/internal/dbihost"
	"github.com/bbtrace/bbtrace/internal/wire"
)

// onBBDiscovery is the per-basic-block discovery callback registered with
// the DBI host. It accepts the block only when both its extent is known
// (the host reported a last instruction) and its start PC falls inside
// the main module's address range — anything else (non-main-module code,
// a block the host could not bound) is never instrumented. Accepted
// blocks get a clean call inserted at their head whose body is onBB, the
// hot path below.
func (c *Context) onBBDiscovery(host dbihost.Host, bb dbihost.BasicBlock) bool {
	if !bb.HasLastInstruction {
		return false
	}

	mm := c.mainModule.Load()
	if mm == nil || !mm.contains(bb.StartPC) {
		return false
	}

	host.InsertCleanCall(bb.Tag, dbihost.CleanCallArgs{
		Start:        bb.StartPC,
		Tag:          bb.Tag,
		EndExclusive: bb.EndExclusivePC,
	}, func(args dbihost.CleanCallArgs) {
		c.onBB(host, args)
	})

	return true
}

// onBB is the clean-call body inserted at an accepted basic block's head.
// It is the hot path: it must never block, allocate on the heap, or call
// into the DBI host beyond the identity/clock accessors it was already
// given. A not-yet-attached context returns immediately with no side
// effects.
func (c *Context) onBB(host dbihost.Host, args dbihost.CleanCallArgs) {
	if !c.ipcReady.Load() {
		return
	}

	c.flushPending()

	c.pushEvent(wire.EventRecord{
		Type:              wire.EventBasicBlockHit,
		PID:               host.CurrentProcessID(),
		TID:               host.CurrentThreadID(),
		TimestampUs:       host.MonotonicMicros(),
		AppPCStart:        args.Start,
		AppPCEndExclusive: args.EndExclusive,
	})
}
