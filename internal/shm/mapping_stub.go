// This file provides a stub segment mapper for non-Windows platforms. On
// Windows, the real implementation in mapping_windows.go is compiled
// instead. bbtrace's channels are a Windows-only mechanism (they wrap
// CreateFileMapping/MapViewOfFile); this stub exists so the rest of the
// module still builds and tests on a non-Windows development machine.
//
//go:build !windows

package shm

import "fmt"

// CreateSegment always returns an error on non-Windows platforms.
func CreateSegment(name string) (*Segment, error) {
	return nil, fmt.Errorf("shm: create %q: named file mappings are only supported on windows", name)
}

// OpenSegment always returns an error on non-Windows platforms.
func OpenSegment(name string) (*Segment, error) {
	return nil, fmt.Errorf("shm: open %q: named file mappings are only supported on windows", name)
}

// CurrentProcessID returns 0 on non-Windows platforms.
func CurrentProcessID() uint32 {
	return 0
}
