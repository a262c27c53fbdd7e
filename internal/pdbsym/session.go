// Package pdbsym resolves runtime virtual addresses to source (file, line,
// column) positions via a PDB reader session, and performs the reverse
// (file, line) -> RVA-range lookup the viewer uses when a caller names a
// source line directly. Session is the interface agentcore/viewercore-
// facing code depends on; comSession (returned by NewCOMLoader's OpenForExe
// on windows) is the concrete implementation, built on an unregistered
// DIA-compatible reader DLL loaded with LoadLibrary and driven through
// go-ole COM interface pointers.
package pdbsym

// SourcePosition is a resolved (file, line, column) triple.
type SourcePosition struct {
	File   string
	Line   uint32
	Column uint32
}

// RVARange is a half-open [Start, End) range of relative virtual addresses
// that map to one source line, as returned by FileLineToRvaRanges. A
// single source line commonly maps to several ranges due to inlining and
// optimization.
type RVARange struct {
	Start, End uint32
}

// Session is a loaded PDB reader bound to one executable image. Its
// concrete implementation wraps an external, unregistered DIA-compatible
// COM reader; callers needing a test double can implement this interface
// directly instead.
type Session interface {
	// SetLoadAddress records the main module's base and size, enabling
	// VAToLine to convert a runtime address to an RVA. The transport
	// receiver calls this once it observes the main module's ModuleAdd
	// event.
	SetLoadAddress(base, size uint64)

	// VAToLine resolves a runtime virtual address to a source position.
	// It returns ok=false ("unknown location") when va falls outside the
	// loaded image, or the reader has no line information at that
	// address — never as an error, per the symbolication-miss policy.
	VAToLine(va uint64) (pos SourcePosition, ok bool)

	// FileLineToRvaRanges performs the reverse lookup: every RVA range
	// that maps back to (path, line). path is matched against the
	// reader's source file records by case-insensitive suffix.
	FileLineToRvaRanges(path string, line uint32) ([]RVARange, error)

	// Close releases the underlying reader session.
	Close() error
}

// Loader opens a Session for a target executable, given a reader DLL path
// and an optional symbol-server specification.
type Loader interface {
	OpenForExe(exePath string, symbolServer string) (Session, error)
}

// moduleBase is threaded through VAToLine implementations that need to
// convert a virtual address to an RVA; it is set once via
// Session.SetLoadAddress (called by the transport receiver upon observing
// the main module's ModuleAdd event, mirroring the original
// put_load_address hook).
type moduleBase struct {
	base  uint64
	size  uint64
	known bool
}

func (m *moduleBase) set(base, size uint64) {
	m.base, m.size, m.known = base, size, true
}

func (m *moduleBase) rva(va uint64) (uint32, bool) {
	if !m.known || va < m.base || va >= m.base+m.size {
		return 0, false
	}
	return uint32(va - m.base), true
}
