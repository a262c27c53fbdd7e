package session

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// LauncherConfig names the pieces needed to spawn the DBI-injected
// producer: drrun itself, the client DLL it loads, and the target
// executable to trace.
type LauncherConfig struct {
	// DrrunPath is the path to the DynamoRIO drrun launcher executable.
	DrrunPath string

	// ClientDLLPath is the path to the instrumentation client DLL passed
	// to drrun via -c.
	ClientDLLPath string

	// TargetExePath is the executable drrun runs under instrumentation.
	TargetExePath string

	// TargetArgs are passed through to TargetExePath after the `--`
	// separator.
	TargetArgs []string
}

// Launcher starts a drrun process that injects the bbtrace client DLL into
// the configured target executable, wiring it to the given channel name.
type Launcher struct {
	cfg    LauncherConfig
	logger *slog.Logger
}

// NewLauncher constructs a Launcher. A nil logger falls back to
// slog.Default().
func NewLauncher(cfg LauncherConfig, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// command builds the drrun invocation: drrun -c <dll> --channel <name> --
// <exe> <args...>, exactly the argument order the original standalone
// viewer used to launch its own instrumented target.
func (l *Launcher) command(ctx context.Context, channel string) *exec.Cmd {
	args := []string{"-c", l.cfg.ClientDLLPath, "--channel", channel, "--", l.cfg.TargetExePath}
	args = append(args, l.cfg.TargetArgs...)
	return exec.CommandContext(ctx, l.cfg.DrrunPath, args...)
}

// Start launches drrun against the configured target with the given
// channel name and returns the running *exec.Cmd without waiting for it to
// exit. The caller is responsible for calling Wait (or Process.Kill) on the
// returned command as part of its own shutdown sequence.
func (l *Launcher) Start(ctx context.Context, channel string) (*exec.Cmd, error) {
	cmd := l.command(ctx, channel)
	l.logger.Info("launcher: starting drrun",
		slog.String("channel", channel),
		slog.String("target", l.cfg.TargetExePath),
		slog.String("drrun", l.cfg.DrrunPath),
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("session: launcher: start drrun: %w", err)
	}
	return cmd, nil
}
