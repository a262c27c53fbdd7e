package session

import (
	"context"
	"reflect"
	"testing"
)

func TestLauncherCommandArgOrder(t *testing.T) {
	l := NewLauncher(LauncherConfig{
		DrrunPath:     `C:\dr\bin64\drrun.exe`,
		ClientDLLPath: `C:\bbtrace\trace_client.dll`,
		TargetExePath: `C:\apps\target.exe`,
		TargetArgs:    []string{"--flag", "value"},
	}, nil)

	cmd := l.command(context.Background(), `Local\bbtrace_shm_abc`)

	want := []string{
		`C:\dr\bin64\drrun.exe`,
		"-c", `C:\bbtrace\trace_client.dll`,
		"--channel", `Local\bbtrace_shm_abc`,
		"--", `C:\apps\target.exe`,
		"--flag", "value",
	}
	got := cmd.Args
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("command args = %v, want %v", got, want)
	}
}
