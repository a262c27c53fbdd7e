package viewercore

import (
	"fmt"

	"github.com/bbtrace/bbtrace/internal/metrics"
	"github.com/bbtrace/bbtrace/internal/shm"
	"github.com/bbtrace/bbtrace/internal/wire"
)

// CommandSender owns the command ring's write side: the viewer's control
// surface (internal/viewerapi) pushes AddRanges/ClearRanges through it; the
// agent's command poller drains the other end.
type CommandSender struct {
	ring    *shm.CommandRing
	metrics *metrics.Metrics
}

// NewCommandSender wraps seg's command ring for sending. m may be nil, in
// which case no metrics are recorded.
func NewCommandSender(seg *shm.Segment, m *metrics.Metrics) *CommandSender {
	return &CommandSender{ring: seg.CommandRing(), metrics: m}
}

// AddRanges pushes an AddRanges command. AddRanges({}) is a no-op, matching
// the idempotence property; more than wire.MaxRangesPerCommand ranges is
// rejected rather than silently truncated, so the caller can split the
// request itself.
func (c *CommandSender) AddRanges(ranges []wire.AddressRange) error {
	if len(ranges) == 0 {
		return nil
	}
	if len(ranges) > wire.MaxRangesPerCommand {
		return fmt.Errorf("viewercore: AddRanges: %d ranges exceeds the per-command limit of %d", len(ranges), wire.MaxRangesPerCommand)
	}

	var rec wire.CommandRecord
	rec.Type = wire.CommandAddRanges
	rec.Count = uint16(len(ranges))
	copy(rec.Ranges[:], ranges)

	if !c.ring.Push(rec) {
		c.bumpDropped()
		return fmt.Errorf("viewercore: AddRanges: command ring full")
	}
	return nil
}

// ClearRanges pushes a ClearRanges command.
func (c *CommandSender) ClearRanges() error {
	rec := wire.CommandRecord{Type: wire.CommandClearRanges}
	if !c.ring.Push(rec) {
		c.bumpDropped()
		return fmt.Errorf("viewercore: ClearRanges: command ring full")
	}
	return nil
}

func (c *CommandSender) bumpDropped() {
	if c.metrics != nil {
		c.metrics.CommandRingDropped.Add(1)
	}
}
