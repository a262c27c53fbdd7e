//go:build !windows

package pdbsym

import "fmt"

// stubLoader reports that no DIA-compatible reader is available on this
// platform, mirroring internal/shm's mapping_stub.go split.
type stubLoader struct {
	dllPath string
}

// NewCOMLoader returns a Loader that always fails to open a session. The
// real implementation requires a Windows DIA-compatible reader DLL and is
// built only under GOOS=windows.
func NewCOMLoader(dllPath string) Loader {
	return &stubLoader{dllPath: dllPath}
}

func (l *stubLoader) OpenForExe(exePath string, symbolServer string) (Session, error) {
	return nil, fmt.Errorf("pdbsym: PDB symbolication is only supported on windows (dll %q)", l.dllPath)
}
