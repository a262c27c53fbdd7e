package agentcore

import (
	"github.com/bbtrace/bbtrace/internal/wire"
)

// drainCommands pops every command currently queued in the command ring
// and applies it to the active-range table. Called once per poll tick by
// Run.
func (c *Context) drainCommands() {
	if !c.ipcReady.Load() {
		return
	}
	for {
		rec, ok := c.commandRing.Pop()
		if !ok {
			return
		}
		c.applyCommand(rec)
	}
}

// applyCommand applies one CommandRecord to the active-range table.
func (c *Context) applyCommand(rec wire.CommandRecord) {
	switch rec.Type {
	case wire.CommandClearRanges:
		c.ranges.count.Store(0)

	case wire.CommandAddRanges:
		n := int(rec.Count)
		if n > wire.MaxRangesPerCommand {
			n = wire.MaxRangesPerCommand
		}

		cur := c.ranges.count.Load()
		remaining := MaxActiveRanges - int(cur)
		if remaining <= 0 || n == 0 {
			return
		}
		if n > remaining {
			n = remaining
		}

		for i := 0; i < n; i++ {
			c.ranges.slots[int(cur)+i] = rec.Ranges[i]
		}
		// Publish the new count only after every slot below it has been
		// written: a reader that observes the updated count via
		// ShouldInstrument must see fully-written range entries.
		c.ranges.count.Store(cur + uint32(n))
	}
}
