//go:build windows

package shm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/bbtrace/bbtrace/internal/wire"
)

// CreateSegment creates a new named file-mapping object of the fixed
// segment size and maps it into this process's address space. It returns
// an error wrapping ErrAlreadyExists and windows.ERROR_ALREADY_EXISTS if an
// object of that name is already present; in that case the returned
// Segment is a mapped view of the existing object, which the caller uses
// instead of creating a new one.
func CreateSegment(name string) (*Segment, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("shm: create %q: %w", name, err)
	}

	handle, err := windows.CreateFileMapping(
		windows.InvalidHandle,
		nil,
		windows.PAGE_READWRITE,
		0,
		uint32(wire.SegmentSize),
		namePtr,
	)
	if handle == 0 {
		return nil, fmt.Errorf("shm: create %q: %w", name, err)
	}
	alreadyExisted := errors.Is(err, windows.ERROR_ALREADY_EXISTS)

	view, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, 0, 0, uintptr(wire.SegmentSize))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("shm: map %q: %w", name, err)
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(view)), wire.SegmentSize)
	seg, err := wrap(buf, func() error {
		if uerr := windows.UnmapViewOfFile(view); uerr != nil {
			windows.CloseHandle(handle)
			return uerr
		}
		return windows.CloseHandle(handle)
	})
	if err != nil {
		windows.UnmapViewOfFile(view)
		windows.CloseHandle(handle)
		return nil, err
	}

	if alreadyExisted {
		return seg, fmt.Errorf("shm: create %q: %w: %w", name, ErrAlreadyExists, windows.ERROR_ALREADY_EXISTS)
	}
	return seg, nil
}

// OpenSegment opens and maps an existing named file-mapping object. It
// returns an error if no object of that name exists yet; callers that
// expect to race the producer's creation should retry with backoff rather
// than treat this as fatal (see internal/session).
func OpenSegment(name string) (*Segment, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("shm: open %q: %w", name, err)
	}

	handle, err := windows.OpenFileMapping(windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, false, namePtr)
	if err != nil {
		return nil, fmt.Errorf("shm: open %q: %w", name, err)
	}

	view, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, 0, 0, uintptr(wire.SegmentSize))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("shm: map %q: %w", name, err)
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(view)), wire.SegmentSize)
	seg, err := wrap(buf, func() error {
		if uerr := windows.UnmapViewOfFile(view); uerr != nil {
			windows.CloseHandle(handle)
			return uerr
		}
		return windows.CloseHandle(handle)
	})
	if err != nil {
		windows.UnmapViewOfFile(view)
		windows.CloseHandle(handle)
		return nil, err
	}
	return seg, nil
}

// CurrentProcessID returns the calling process's id, for stamping into a
// freshly created segment's header.
func CurrentProcessID() uint32 {
	return windows.GetCurrentProcessId()
}
