//go:build windows

package pdbsym

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

// comLoader loads a DIA-compatible PDB reader DLL without requiring it to
// be registered as a system COM server: it resolves the DLL's
// DllGetClassObject export directly, asks the resulting class factory for
// an IDiaDataSource, and drives the session from there. Any DIA-SDK-
// compatible reader DLL (e.g. msdia140.dll) satisfies the same vtable
// layout.
type comLoader struct {
	dllPath string
}

// NewCOMLoader returns a Loader backed by the DIA-compatible reader DLL at
// dllPath.
func NewCOMLoader(dllPath string) Loader {
	return &comLoader{dllPath: dllPath}
}

// diaSourceCLSID is the DIA SDK's DiaSource CLSID, constant across
// msdia*.dll versions.
var diaSourceCLSID = ole.NewGUID("{E6756135-1E65-4D17-8576-610761398C3C}")

// iidIDiaDataSource is IDiaDataSource's interface id.
var iidIDiaDataSource = ole.NewGUID("{79F1BB5F-B66E-48e5-B6A9-1545C323CA3D}")

// iidIClassFactory is the standard COM class factory interface id.
var iidIClassFactory = ole.NewGUID("{00000001-0000-0000-C000-000000000046}")

func (l *comLoader) OpenForExe(exePath string, symbolServer string) (Session, error) {
	mod, err := windows.LoadLibrary(l.dllPath)
	if err != nil {
		return nil, fmt.Errorf("pdbsym: load %q: %w", l.dllPath, err)
	}

	proc, err := windows.GetProcAddress(mod, "DllGetClassObject")
	if err != nil {
		windows.FreeLibrary(mod)
		return nil, fmt.Errorf("pdbsym: %q has no DllGetClassObject export: %w", l.dllPath, err)
	}

	var classFactory *ole.IUnknown
	hr, _, _ := syscall.SyscallN(proc,
		uintptr(unsafe.Pointer(diaSourceCLSID)),
		uintptr(unsafe.Pointer(iidIClassFactory)),
		uintptr(unsafe.Pointer(&classFactory)),
	)
	if hr != 0 || classFactory == nil {
		windows.FreeLibrary(mod)
		return nil, fmt.Errorf("pdbsym: DllGetClassObject for DiaSource: hresult %#x", hr)
	}
	defer classFactory.Release()

	dataSource, err := createInstanceFromFactory(classFactory, iidIDiaDataSource)
	if err != nil {
		windows.FreeLibrary(mod)
		return nil, fmt.Errorf("pdbsym: create IDiaDataSource instance: %w", err)
	}

	if err := diaLoadDataForExe(dataSource, exePath, symbolServer); err != nil {
		dataSource.Release()
		windows.FreeLibrary(mod)
		return nil, fmt.Errorf("pdbsym: loadDataForExe %q: %w", exePath, err)
	}

	session, err := diaOpenSession(dataSource)
	if err != nil {
		dataSource.Release()
		windows.FreeLibrary(mod)
		return nil, fmt.Errorf("pdbsym: openSession: %w", err)
	}

	return &comSession{
		mod:        mod,
		dataSource: dataSource,
		session:    session,
	}, nil
}

// comSession is a Session backed by a live IDiaSession. All calls happen
// on the viewer's single receiver thread; no internal locking is needed
// beyond the guard used for the base/size pair set at module-add time.
type comSession struct {
	mod        windows.Handle
	dataSource *ole.IUnknown
	session    *ole.IUnknown

	mu   sync.Mutex
	base moduleBase
}

// SetLoadAddress records the main module's base and size, enabling
// VAToLine to convert a runtime address to an RVA. It must be called once
// the transport receiver observes the main module's ModuleAdd event.
func (s *comSession) SetLoadAddress(base, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.set(base, size)
}

func (s *comSession) VAToLine(va uint64) (SourcePosition, bool) {
	s.mu.Lock()
	rva, ok := s.base.rva(va)
	s.mu.Unlock()
	if !ok {
		return SourcePosition{}, false
	}

	// findSymbolByRVA double-check: a line-table match at an RVA that
	// does not also resolve to a function symbol is treated as a stale
	// or padding PC and discarded.
	if !diaFindSymbolByRVA(s.session, rva) {
		return SourcePosition{}, false
	}

	lines, err := diaFindLinesByRVA(s.session, rva, 16)
	if err != nil {
		return SourcePosition{}, false
	}
	for _, ln := range lines {
		length := ln.length
		if length == 0 {
			length = 1
		}
		if rva >= ln.rva && rva < ln.rva+length {
			return SourcePosition{File: ln.file, Line: ln.line, Column: ln.column}, true
		}
	}
	return SourcePosition{}, false
}

func (s *comSession) FileLineToRvaRanges(path string, line uint32) ([]RVARange, error) {
	compilands, err := diaEnumCompilands(s.session)
	if err != nil {
		return nil, fmt.Errorf("pdbsym: enumerate compilands: %w", err)
	}

	var ranges []RVARange
	for _, compiland := range compilands {
		sourceFiles, err := diaFindFile(s.session, compiland, path)
		if err != nil {
			continue
		}
		for _, sf := range sourceFiles {
			if !strings.HasSuffix(strings.ToLower(sf), strings.ToLower(path)) {
				continue
			}
			lines, err := diaFindLines(s.session, compiland, sf)
			if err != nil {
				continue
			}
			for _, ln := range lines {
				if ln.line != line {
					continue
				}
				length := ln.length
				if length == 0 {
					length = 1
				}
				ranges = append(ranges, RVARange{Start: ln.rva, End: ln.rva + length})
			}
		}
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	if len(ranges) == 0 {
		return nil, fmt.Errorf("pdbsym: no RVA ranges found for %s:%d", path, line)
	}
	return ranges, nil
}

func (s *comSession) Close() error {
	if s.session != nil {
		s.session.Release()
	}
	if s.dataSource != nil {
		s.dataSource.Release()
	}
	if s.mod != 0 {
		return windows.FreeLibrary(s.mod)
	}
	return nil
}
