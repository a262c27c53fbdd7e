// Package viewercore implements the consumer half of bbtrace: the
// transport receiver that drains the event ring, the module table it
// maintains, and the orchestration wiring it into the symbolicator and the
// block-line/projection models.
package viewercore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bbtrace/bbtrace/internal/metrics"
	"github.com/bbtrace/bbtrace/internal/pdbsym"
	"github.com/bbtrace/bbtrace/internal/project"
	"github.com/bbtrace/bbtrace/internal/shm"
	"github.com/bbtrace/bbtrace/internal/wire"
)

// batchSize is how many events the receiver drains per loop iteration
// before yielding.
const batchSize = 8

// idleYield is how long the receiver sleeps when it finds the event ring
// empty. The viewer has its own main loop, so no blocking primitive is
// required here.
const idleYield = time.Millisecond

// Receiver owns the event ring's read side and the module/block-line
// models it feeds. It runs on one dedicated goroutine; the renderer reads
// BlockLines/HitLog concurrently, safely, because both are internally
// mutex-guarded.
type Receiver struct {
	logger *slog.Logger
	ring   *shm.EventRing
	heap   []byte
	symbol pdbsym.Session

	// ProjectionFileSuffix is a configurable predicate for the
	// source-file filter: only hits whose resolved file ends with this
	// suffix are projected.
	ProjectionFileSuffix string

	modules    *moduleTable
	BlockLines *project.BlockLineMap
	HitLog     *project.HitLog

	metrics *metrics.Metrics
}

// NewReceiver constructs a Receiver bound to seg's event ring and string
// heap, resolving addresses through symbol. m may be nil, in which case no
// metrics are recorded.
func NewReceiver(logger *slog.Logger, seg *shm.Segment, symbol pdbsym.Session, projectionFileSuffix string, m *metrics.Metrics) *Receiver {
	return &Receiver{
		logger:               logger,
		ring:                 seg.EventRing(),
		heap:                 seg.StringHeap(),
		symbol:               symbol,
		ProjectionFileSuffix: projectionFileSuffix,
		modules:              newModuleTable(),
		BlockLines:           project.NewBlockLineMap(),
		HitLog:               project.NewHitLog(),
		metrics:              m,
	}
}

// Run drains the event ring until ctx is cancelled. It never blocks: an
// empty ring yields for idleYield before re-polling.
func (r *Receiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		drained := 0
		for drained < batchSize {
			rec, ok := r.ring.Pop()
			if !ok {
				break
			}
			r.dispatch(rec)
			drained++
		}

		if r.metrics != nil {
			r.metrics.EventRingDropped.Store(int64(r.ring.DroppedCount()))
		}

		if drained == 0 {
			time.Sleep(idleYield)
		}
	}
}

func (r *Receiver) dispatch(rec wire.EventRecord) {
	switch rec.Type {
	case wire.EventModuleAdd:
		r.handleModuleAdd(rec)
	case wire.EventModuleRemove:
		r.modules.remove(rec.Base)
	case wire.EventBasicBlockHit:
		r.handleBasicBlockHit(rec)
	default:
		r.logger.Warn("viewercore: unknown event type", slog.Int("type", int(rec.Type)))
	}
}

func (r *Receiver) handleModuleAdd(rec wire.EventRecord) {
	path := readPathFromHeap(r.heap, rec.PathIndex, rec.PathLength)
	info := ModuleInfo{Base: rec.Base, Size: rec.Size, Path: path}
	r.modules.add(info)

	if isExePath(path) {
		r.symbol.SetLoadAddress(info.Base, info.Size)
		r.logger.Info("viewercore: main module loaded",
			slog.String("path", path),
			slog.Uint64("base", info.Base),
			slog.Uint64("size", info.Size),
		)
	}
}

func readPathFromHeap(heap []byte, index, length uint16) string {
	end := int(index) + int(length)
	if int(index) < 0 || end > len(heap) {
		return ""
	}
	return string(heap[index:end])
}

func (r *Receiver) handleBasicBlockHit(rec wire.EventRecord) {
	startPos, ok := r.symbol.VAToLine(rec.AppPCStart)
	if !ok {
		r.bumpSymbolicationMiss()
		return
	}

	// end_exclusive is one past the block's last byte; va_to_line is
	// queried against the last instruction's own address, not the byte
	// past it, so blocks of exactly one instruction (end_exclusive =
	// start+1) still resolve.
	endVA := rec.AppPCEndExclusive - 1
	if endVA < rec.AppPCStart {
		endVA = rec.AppPCStart
	}
	endPos, ok := r.symbol.VAToLine(endVA)
	if !ok {
		r.bumpSymbolicationMiss()
		return
	}

	if !matchesFilter(startPos.File, r.ProjectionFileSuffix) || !matchesFilter(endPos.File, r.ProjectionFileSuffix) {
		return
	}
	if startPos.Line == 0 || endPos.Line == 0 {
		return
	}

	startLine := int(startPos.Line) - 1
	endLine := int(endPos.Line) - 1
	if endLine < startLine {
		startLine, endLine = endLine, startLine
	}

	r.BlockLines.Insert(startLine, endLine)
	r.HitLog.Append(startLine)
	if r.metrics != nil {
		r.metrics.BasicBlockHits.Add(1)
	}
}

func (r *Receiver) bumpSymbolicationMiss() {
	if r.metrics != nil {
		r.metrics.SymbolicationMisses.Add(1)
	}
}

func matchesFilter(file, suffix string) bool {
	if suffix == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(file), strings.ToLower(suffix))
}
