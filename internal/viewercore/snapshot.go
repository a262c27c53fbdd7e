package viewercore

import "github.com/bbtrace/bbtrace/internal/project"

// Snapshot is the plain, renderer-facing view of the current projection
// state: the one read a live visualization loop needs per refresh, without
// reaching into BlockLineMap/HitLog internals directly.
type Snapshot struct {
	Extents []project.LineExtent
	HitLog  []int
	Cells   []project.Cell
}

// Snapshot builds a point-in-time copy of the current block-line and
// projection state. Safe to call concurrently with Run.
func (r *Receiver) Snapshot() Snapshot {
	return Snapshot{
		Extents: r.BlockLines.Snapshot(),
		HitLog:  r.HitLog.Snapshot(),
		Cells:   project.Project(r.HitLog, r.BlockLines),
	}
}
