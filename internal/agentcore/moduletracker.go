package agentcore

import (
	"log/slog"
	"strings"

	"github.com/bbtrace/bbtrace/internal/dbihost"
	"github.com/bbtrace/bbtrace/internal/wire"
)

func isExePath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".exe")
}

// onModuleLoad is the module-load callback registered with the DBI host.
// It assigns the module's string-heap index immediately and
// unconditionally — string_cursor is monotonic and never reassigns an
// index once handed out — then either publishes the ModuleAdd event now
// (if the channel is attached) or queues it for the first basic-block hit
// after attach.
func (c *Context) onModuleLoad(ev dbihost.ModuleLoadEvent) {
	if isExePath(ev.FullPath) {
		mr := moduleRange{start: ev.Start, end: ev.End}
		c.mainModule.Store(&mr)
	}

	pathBytes := []byte(ev.FullPath)
	pathLength := len(pathBytes)

	reserved := c.stringCursor.Add(uint32(pathLength) + 1)
	pathIndex := reserved - uint32(pathLength) - 1
	if int(pathIndex)+pathLength+1 > wire.StringHeapSize {
		c.logger.Warn("agentcore: module tracker: string heap exhausted, dropping module path",
			slog.String("path", ev.FullPath))
		return
	}

	size := ev.End - ev.Start

	if !c.ipcReady.Load() {
		c.pendingMu.Lock()
		c.pending = append(c.pending, pendingModuleAdd{
			base:       ev.Start,
			size:       size,
			pathIndex:  uint16(pathIndex),
			pathLength: uint16(pathLength),
			path:       pathBytes,
		})
		c.pendingMu.Unlock()
		return
	}

	c.writePathAndPush(ev.Start, size, uint16(pathIndex), uint16(pathLength), pathBytes)
}

// onModuleUnload is the module-unload callback registered with the DBI
// host. An unload observed before attach carries no information the
// consumer could ever have used (it never learned the module existed) and
// is dropped.
func (c *Context) onModuleUnload(base uint64) {
	if !c.ipcReady.Load() {
		return
	}
	c.pushEvent(wire.EventRecord{
		Type: wire.EventModuleRemove,
		Base: base,
	})
}

// writePathAndPush copies path into the string heap at pathIndex and
// pushes the corresponding ModuleAdd event. It is called either
// immediately from onModuleLoad (already attached) or from the
// first post-attach flush (see hook.go).
func (c *Context) writePathAndPush(base, size uint64, pathIndex, pathLength uint16, path []byte) {
	copy(c.stringHeap[pathIndex:], path)
	c.stringHeap[int(pathIndex)+len(path)] = 0

	c.pushEvent(wire.EventRecord{
		Type:       wire.EventModuleAdd,
		Base:       base,
		Size:       size,
		PathIndex:  pathIndex,
		PathLength: pathLength,
	})
}

// flushPending drains every module-add event queued before attach,
// writing each into the now-available string heap and publishing it. It
// is called at the head of every onBB invocation after attach; after the
// first, the queue is normally empty.
func (c *Context) flushPending() {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	for _, p := range pending {
		c.writePathAndPush(p.base, p.size, p.pathIndex, p.pathLength, p.path)
	}
}

// pushEvent pushes rec onto the event ring. It never blocks: a full ring
// drops the record and the drop is counted by the ring itself.
func (c *Context) pushEvent(rec wire.EventRecord) {
	c.eventRing.Push(rec)
}
