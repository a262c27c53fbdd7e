// Package project holds the consumer-side block-line and projection models:
// the structures the receiver feeds with resolved basic-block hits, and that
// a renderer later reads to lay traced lines out on a grid. Both models are
// pure in-memory data structures, each guarded by its own coarse mutex —
// contention is low next to rendering cost. No lock spans both, so a reader
// that snapshots one and then the other does not see them at one instant.
package project

import (
	"sort"
	"sync"
)

// LineExtent is the zero-based, inclusive [StartLine, EndLine] vertical
// range a block occupies once overlap-trimmed.
type LineExtent struct {
	StartLine int
	EndLine   int
}

// BlockLineMap accumulates the distinct basic blocks seen so far, keyed by
// their zero-based start line, trimming overlaps deterministically as new
// blocks arrive in arbitrary order.
type BlockLineMap struct {
	mu      sync.Mutex
	extents map[int]LineExtent
	keys    []int // kept sorted; re-sorted on every insert
}

// NewBlockLineMap returns an empty BlockLineMap.
func NewBlockLineMap() *BlockLineMap {
	return &BlockLineMap{extents: make(map[int]LineExtent)}
}

// Insert records a block spanning [startLine, endLine] (zero-based,
// inclusive) if startLine has not already been seen, then re-runs the
// overlap-trim pass over every adjacent pair in key order. Insertion is a
// no-op when startLine already has an entry, matching the "no entry for
// start_line" gate.
func (m *BlockLineMap) Insert(startLine, endLine int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.extents[startLine]; exists {
		return
	}

	m.extents[startLine] = LineExtent{StartLine: startLine, EndLine: endLine}
	m.keys = append(m.keys, startLine)
	sort.Ints(m.keys)

	m.trimLocked()
}

// trimLocked enforces map[k1].EndLine <= k2-1 for every adjacent pair
// k1 < k2 in key order. The earlier block's start wins on grid position;
// the later block's start wins on boundary.
func (m *BlockLineMap) trimLocked() {
	for i := 0; i+1 < len(m.keys); i++ {
		k1, k2 := m.keys[i], m.keys[i+1]
		a := m.extents[k1]
		if bound := k2 - 1; a.EndLine > bound {
			a.EndLine = bound
			m.extents[k1] = a
		}
	}
}

// Lookup returns the current extent recorded for startLine.
func (m *BlockLineMap) Lookup(startLine int) (LineExtent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.extents[startLine]
	return e, ok
}

// Snapshot returns every recorded extent in ascending key order. The
// renderer calls this once per frame under the same mutex the receiver
// inserts under.
func (m *BlockLineMap) Snapshot() []LineExtent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LineExtent, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.extents[k])
	}
	return out
}

// Len reports the number of distinct start lines recorded.
func (m *BlockLineMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// HitLog is the ordered sequence of start lines observed, one entry per
// accepted basic-block hit, in arrival order. The projection model walks it
// to assign render columns.
type HitLog struct {
	mu    sync.Mutex
	lines []int
}

// NewHitLog returns an empty HitLog.
func NewHitLog() *HitLog {
	return &HitLog{}
}

// Append records startLine as the next hit.
func (h *HitLog) Append(startLine int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, startLine)
}

// Snapshot returns every recorded start line in arrival order.
func (h *HitLog) Snapshot() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.lines))
	copy(out, h.lines)
	return out
}

// Len reports the number of hits recorded.
func (h *HitLog) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lines)
}
