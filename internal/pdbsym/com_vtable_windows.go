//go:build windows

package pdbsym

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// Vtable slot indices below follow the DIA SDK's dia2.h declaration order
// (IUnknown's three slots first, then each interface's own methods in the
// order the header declares them). A reader DLL that implements the DIA
// SDK's documented ABI — any msdia*.dll, registered or not — satisfies
// this layout regardless of version.
const (
	vtblIDiaDataSourceLoadDataForExe = 3 + 3 // lastError, loadDataFromPdb, loadAndValidateDataFromPdb precede it
	vtblIDiaDataSourceOpenSession    = vtblIDiaDataSourceLoadDataForExe + 2

	vtblIDiaSessionGetGlobalScope = 3 + 2 // get_loadAddress, put_loadAddress precede it
	vtblIDiaSessionFindChildren   = vtblIDiaSessionGetGlobalScope + 3
	vtblIDiaSessionFindSymbolByRVA = vtblIDiaSessionFindChildren + 6
	vtblIDiaSessionFindFile       = vtblIDiaSessionFindSymbolByRVA + 7
	vtblIDiaSessionFindLines      = vtblIDiaSessionFindFile + 2
	vtblIDiaSessionFindLinesByRVA = vtblIDiaSessionFindLines + 2

	vtblIDiaEnumNext = 3 + 1 // get_Count precedes Next on DIA enumerators

	vtblIDiaLineNumberGetRVA    = 3 + 7
	vtblIDiaLineNumberGetLength = vtblIDiaLineNumberGetRVA + 1
	vtblIDiaLineNumberGetSourceFile = vtblIDiaLineNumberGetLength + 2
	vtblIDiaLineNumberGetLineNumber = vtblIDiaLineNumberGetSourceFile + 1
	vtblIDiaLineNumberGetColumnNumber = vtblIDiaLineNumberGetLineNumber + 1

	vtblIDiaSourceFileGetFileName = 3 + 1

	vtblIDiaSymbolGetSymTag = 3 + 1

	vtblIClassFactoryCreateInstance = 3 + 0
)

func vcall(obj *ole.IUnknown, slot uintptr, args ...uintptr) (uintptr, error) {
	if obj == nil {
		return 0, fmt.Errorf("pdbsym: nil COM pointer")
	}
	vtbl := (*[1 << 10]uintptr)(unsafe.Pointer(obj.RawVTable))
	fn := vtbl[slot]
	all := append([]uintptr{uintptr(unsafe.Pointer(obj))}, args...)
	hr, _, _ := syscall.SyscallN(fn, all...)
	if int32(hr) < 0 {
		return hr, fmt.Errorf("pdbsym: hresult %#x", hr)
	}
	return hr, nil
}

func createInstanceFromFactory(factory *ole.IUnknown, iid *ole.GUID) (*ole.IUnknown, error) {
	var out *ole.IUnknown
	_, err := vcall(factory, vtblIClassFactoryCreateInstance,
		0, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func diaLoadDataForExe(src *ole.IUnknown, exePath, symbolServer string) error {
	exePtr, err := syscall.UTF16PtrFromString(exePath)
	if err != nil {
		return err
	}
	var searchPtr *uint16
	if symbolServer != "" {
		searchPtr, err = syscall.UTF16PtrFromString(symbolServer)
		if err != nil {
			return err
		}
	}
	_, err = vcall(src, vtblIDiaDataSourceLoadDataForExe,
		uintptr(unsafe.Pointer(exePtr)), uintptr(unsafe.Pointer(searchPtr)), 0)
	return err
}

func diaOpenSession(src *ole.IUnknown) (*ole.IUnknown, error) {
	var session *ole.IUnknown
	_, err := vcall(src, vtblIDiaDataSourceOpenSession, uintptr(unsafe.Pointer(&session)))
	if err != nil {
		return nil, err
	}
	return session, nil
}

func diaFindSymbolByRVA(session *ole.IUnknown, rva uint32) bool {
	var fn *ole.IUnknown
	const symTagFunction = 5 // dia2.h SymTagFunction
	_, err := vcall(session, vtblIDiaSessionFindSymbolByRVA,
		uintptr(rva), symTagFunction, uintptr(unsafe.Pointer(&fn)))
	if err != nil || fn == nil {
		return false
	}
	fn.Release()
	return true
}

type lineRecord struct {
	rva, length uint32
	file        string
	line, column uint32
}

func diaEnumLineNumbers(enum *ole.IUnknown) ([]lineRecord, error) {
	var out []lineRecord
	for {
		var item *ole.IUnknown
		var fetched uintptr
		_, err := vcall(enum, vtblIDiaEnumNext, 1, uintptr(unsafe.Pointer(&item)), uintptr(unsafe.Pointer(&fetched)))
		if err != nil || fetched == 0 || item == nil {
			break
		}

		var rva, length, lineNo, col uintptr
		vcall(item, vtblIDiaLineNumberGetRVA, uintptr(unsafe.Pointer(&rva)))
		vcall(item, vtblIDiaLineNumberGetLength, uintptr(unsafe.Pointer(&length)))
		vcall(item, vtblIDiaLineNumberGetLineNumber, uintptr(unsafe.Pointer(&lineNo)))
		vcall(item, vtblIDiaLineNumberGetColumnNumber, uintptr(unsafe.Pointer(&col)))

		var sourceFile *ole.IUnknown
		vcall(item, vtblIDiaLineNumberGetSourceFile, uintptr(unsafe.Pointer(&sourceFile)))
		var file string
		if sourceFile != nil {
			file = diaSourceFileName(sourceFile)
			sourceFile.Release()
		}

		out = append(out, lineRecord{
			rva: uint32(rva), length: uint32(length),
			file: file, line: uint32(lineNo), column: uint32(col),
		})
		item.Release()
	}
	return out, nil
}

func diaSourceFileName(sf *ole.IUnknown) string {
	var bstr *uint16
	if _, err := vcall(sf, vtblIDiaSourceFileGetFileName, uintptr(unsafe.Pointer(&bstr))); err != nil {
		return ""
	}
	if bstr == nil {
		return ""
	}
	defer ole.SysFreeString((*int16)(unsafe.Pointer(bstr)))
	return ole.BstrToString(bstr)
}

func diaFindLinesByRVA(session *ole.IUnknown, rva uint32, length uint32) ([]lineRecord, error) {
	var enum *ole.IUnknown
	if _, err := vcall(session, vtblIDiaSessionFindLinesByRVA,
		uintptr(rva), uintptr(length), uintptr(unsafe.Pointer(&enum))); err != nil {
		return nil, err
	}
	defer enum.Release()
	return diaEnumLineNumbers(enum)
}

func diaFindLines(session, compiland, sourceFile *ole.IUnknown) ([]lineRecord, error) {
	var enum *ole.IUnknown
	if _, err := vcall(session, vtblIDiaSessionFindLines,
		uintptr(unsafe.Pointer(compiland)), uintptr(unsafe.Pointer(sourceFile)), uintptr(unsafe.Pointer(&enum))); err != nil {
		return nil, err
	}
	defer enum.Release()
	return diaEnumLineNumbers(enum)
}

func diaFindFile(session *ole.IUnknown, compiland *ole.IUnknown, path string) ([]string, error) {
	namePtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	const nsCaseInsensitive = 8 // dia2.h NameSearchOptions
	var enum *ole.IUnknown
	if _, err := vcall(session, vtblIDiaSessionFindFile,
		uintptr(unsafe.Pointer(compiland)), uintptr(unsafe.Pointer(namePtr)), nsCaseInsensitive, uintptr(unsafe.Pointer(&enum))); err != nil {
		return nil, err
	}
	defer enum.Release()

	var names []string
	for {
		var item *ole.IUnknown
		var fetched uintptr
		if _, err := vcall(enum, vtblIDiaEnumNext, 1, uintptr(unsafe.Pointer(&item)), uintptr(unsafe.Pointer(&fetched))); err != nil || fetched == 0 || item == nil {
			break
		}
		names = append(names, diaSourceFileName(item))
		item.Release()
	}
	return names, nil
}

func diaEnumCompilands(session *ole.IUnknown) ([]*ole.IUnknown, error) {
	var global *ole.IUnknown
	if _, err := vcall(session, vtblIDiaSessionGetGlobalScope, uintptr(unsafe.Pointer(&global))); err != nil {
		return nil, err
	}
	defer global.Release()

	const symTagCompiland = 11 // dia2.h SymTagCompiland
	const nsNone = 0
	var enum *ole.IUnknown
	if _, err := vcall(global, vtblIDiaSessionFindChildren,
		symTagCompiland, 0, nsNone, uintptr(unsafe.Pointer(&enum))); err != nil {
		return nil, err
	}
	defer enum.Release()

	var compilands []*ole.IUnknown
	for {
		var item *ole.IUnknown
		var fetched uintptr
		if _, err := vcall(enum, vtblIDiaEnumNext, 1, uintptr(unsafe.Pointer(&item)), uintptr(unsafe.Pointer(&fetched))); err != nil || fetched == 0 || item == nil {
			break
		}
		compilands = append(compilands, item)
	}
	return compilands, nil
}
