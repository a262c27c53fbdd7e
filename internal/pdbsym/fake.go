package pdbsym

import "fmt"

// FakeSession is an in-memory Session test double: callers register the
// (va -> position) and (path, line -> ranges) mappings they want to
// exercise and never touch the real DIA-compatible reader.
type FakeSession struct {
	Lines        map[uint64]SourcePosition
	RVARanges    map[string][]RVARange
	ClosedCalled bool
	LoadBase     uint64
	LoadSize     uint64
}

// NewFakeSession returns an empty FakeSession ready for its maps to be
// populated by the caller.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		Lines:     make(map[uint64]SourcePosition),
		RVARanges: make(map[string][]RVARange),
	}
}

// SetLoadAddress records base and size; FakeSession does not use them to
// compute VAToLine answers itself, but callers can assert against them.
func (f *FakeSession) SetLoadAddress(base, size uint64) {
	f.LoadBase, f.LoadSize = base, size
}

// VAToLine looks up va in Lines. A miss reports ok=false, matching the
// real implementation's "unknown location" policy.
func (f *FakeSession) VAToLine(va uint64) (SourcePosition, bool) {
	pos, ok := f.Lines[va]
	return pos, ok
}

// FileLineToRvaRanges looks up "path:line" in RVARanges.
func (f *FakeSession) FileLineToRvaRanges(path string, line uint32) ([]RVARange, error) {
	key := fileLineKey(path, line)
	ranges, ok := f.RVARanges[key]
	if !ok {
		return nil, fmt.Errorf("pdbsym: fake session has no ranges for %s:%d", path, line)
	}
	return ranges, nil
}

// Close records that it was called; FakeSession holds no real resources.
func (f *FakeSession) Close() error {
	f.ClosedCalled = true
	return nil
}

// PutLine registers a VAToLine answer for va.
func (f *FakeSession) PutLine(va uint64, pos SourcePosition) {
	f.Lines[va] = pos
}

// PutRanges registers a FileLineToRvaRanges answer for path:line.
func (f *FakeSession) PutRanges(path string, line uint32, ranges []RVARange) {
	f.RVARanges[fileLineKey(path, line)] = ranges
}

func fileLineKey(path string, line uint32) string {
	return fmt.Sprintf("%s:%d", path, line)
}
