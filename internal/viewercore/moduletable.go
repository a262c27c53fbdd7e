package viewercore

import "strings"

// ModuleInfo is the consumer's view of one loaded module.
type ModuleInfo struct {
	Base uint64
	Size uint64
	Path string
}

func (m ModuleInfo) contains(va uint64) bool {
	return va >= m.Base && va < m.Base+m.Size
}

// moduleTable tracks every module the receiver has seen ModuleAdd/Remove
// events for, keyed by load base. It is only ever touched from the
// receiver goroutine, so it needs no internal locking.
type moduleTable struct {
	byBase map[uint64]*ModuleInfo
	main   *ModuleInfo
}

func newModuleTable() *moduleTable {
	return &moduleTable{byBase: make(map[uint64]*ModuleInfo)}
}

func (t *moduleTable) add(info ModuleInfo) {
	stored := info
	t.byBase[info.Base] = &stored
	if isExePath(info.Path) {
		// Re-delivering the same ModuleAdd (same base) must leave
		// main_module_range idempotent.
		t.main = &stored
	}
}

func (t *moduleTable) remove(base uint64) {
	delete(t.byBase, base)
	if t.main != nil && t.main.Base == base {
		t.main = nil
	}
}

func isExePath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".exe")
}
