// Package agentcore implements the producer side of a bbtrace channel: the
// per-basic-block instrumentation hook, the module tracker, and the
// command poller described by the on-wire protocol in internal/wire. It is
// driven entirely through the dbihost.Host interface, so none of it
// depends on a real DynamoRIO client being present.
//
// All agent-wide mutable state — the main module's address range, the
// string-heap bump cursor, the IPC-ready flag, the active-range table, and
// the pending module-event queue — lives on a single Context value with an
// explicit Init/Shutdown lifecycle, rather than as package-level globals.
// Callbacks reach it through the handle the caller holds, never through
// free functions closing over package state.
package agentcore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bbtrace/bbtrace/internal/dbihost"
	"github.com/bbtrace/bbtrace/internal/shm"
	"github.com/bbtrace/bbtrace/internal/wire"
)

// MaxActiveRanges bounds the agent-side active-range table. It is larger
// than wire.MaxRangesPerCommand (the per-CommandRecord limit) because the
// table accumulates across many AddRanges commands.
const MaxActiveRanges = 256

// commandPollInterval is how often the command poller drains the command
// ring. A dedicated sleep-based thread is sufficient; no OS event
// primitive is required to wake it promptly.
const commandPollInterval = 10 * time.Millisecond

type moduleRange struct {
	start, end uint64
}

func (r moduleRange) contains(pc uint64) bool {
	return pc >= r.start && pc < r.end
}

// pendingModuleAdd is a ModuleAdd event discovered before the channel
// attached. Its path_index is already assigned (string_cursor is
// monotonic and never reassigns an index); the path bytes themselves are
// copied into the real string heap only once attach completes.
type pendingModuleAdd struct {
	base, size uint64
	pathIndex  uint16
	pathLength uint16
	path       []byte
}

// activeRanges is the agent's address-range allow-list, as maintained by
// the command poller. count is published with a release store and read
// with an acquire load; slots within [0, count) are write-once per poll
// cycle (AddRanges only ever appends).
type activeRanges struct {
	count atomic.Uint32
	slots [MaxActiveRanges]wire.AddressRange
}

// Context is the agent's single mutable-state handle. Construct with New,
// bring it up with Init once the channel's shared segment is attached, and
// release it with Shutdown at client exit.
type Context struct {
	logger *slog.Logger

	ipcReady atomic.Bool

	eventRing   *shm.EventRing
	commandRing *shm.CommandRing
	stringHeap  []byte

	mainModule atomic.Pointer[moduleRange]

	stringCursor atomic.Uint32

	pendingMu sync.Mutex
	pending   []pendingModuleAdd

	ranges activeRanges
}

// New constructs an unattached Context. Module-load/unload and
// basic-block discovery may be registered against a Host before Init is
// called; events observed before attach are queued per §4.4's deferred
// ModuleAdd semantics (module unloads observed before attach are dropped,
// since an unload for a module the consumer never learned about carries
// no information).
func New(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{logger: logger}
}

// Init attaches Context to a mapped shared segment, publishing its rings
// and string heap and marking the context ready. It must be called
// exactly once, from the client's attach path.
func (c *Context) Init(seg *shm.Segment) {
	c.eventRing = seg.EventRing()
	c.commandRing = seg.CommandRing()
	c.stringHeap = seg.StringHeap()
	c.ipcReady.Store(true)
	c.logger.Info("agentcore: context attached")
}

// Shutdown marks the context not-ready. Subsequent hook invocations become
// no-ops, matching the client-exit lifecycle boundary.
func (c *Context) Shutdown() {
	c.ipcReady.Store(false)
	c.logger.Info("agentcore: context shut down")
}

// Attach wires this Context's callbacks into host: module load/unload and
// basic-block discovery.
func (c *Context) Attach(host dbihost.Host) {
	host.RegisterModuleLoadCallback(c.onModuleLoad)
	host.RegisterModuleUnloadCallback(c.onModuleUnload)
	host.RegisterBBCallback(func(bb dbihost.BasicBlock) bool {
		return c.onBBDiscovery(host, bb)
	})
}

// Run drives the command poller until ctx is cancelled. Callers run it in
// its own goroutine; it is the Context's one dedicated thread besides the
// callbacks the DBI host drives directly.
func (c *Context) Run(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drainCommands()
		}
	}
}

// ShouldInstrument reports whether pc falls within the active range
// table. It is wired end-to-end via the command poller, but not consulted
// from the basic-block discovery callback. An empty range table accepts
// every pc; this is the observable behavior to preserve, not an
// incomplete filter to finish.
func (c *Context) ShouldInstrument(pc uint64) bool {
	count := c.ranges.count.Load()
	if count == 0 {
		return true
	}
	for i := uint32(0); i < count; i++ {
		r := c.ranges.slots[i]
		va := r.Base + (r.BeginRVA)
		end := r.Base + r.EndRVA
		if pc >= va && pc < end {
			return true
		}
	}
	return false
}
