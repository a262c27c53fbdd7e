// Command bbtrace-agent is the producer-side harness: it creates a
// channel's shared segment, launches drrun against the configured target
// with the instrumentation client DLL, wires an agentcore.Context to a
// dbihost.Host, and drains the command ring until the target exits or a
// shutdown signal arrives.
//
// The real dbihost.Host implementation is the DynamoRIO client shim loaded
// into the traced process; this harness wires dbihost.NoopHost instead, so
// the channel lifecycle and command poller can be exercised end to end
// without that native component present.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bbtrace/bbtrace/internal/agentcore"
	"github.com/bbtrace/bbtrace/internal/config"
	"github.com/bbtrace/bbtrace/internal/dbihost"
	"github.com/bbtrace/bbtrace/internal/session"
)

func main() {
	configPath := flag.String("config", "/etc/bbtrace/agent.yaml", "path to the bbtrace agent YAML configuration file")
	channelFlag := flag.String("channel", "", "channel name to create; a fresh one is generated when empty")
	flag.Parse()

	cfg, err := config.LoadAgentConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bbtrace-agent: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	channelName := *channelFlag
	if channelName == "" {
		channelName = session.NewChannelName(cfg.ChannelPrefix)
	}

	logger.Info("configuration loaded",
		slog.String("channel", channelName),
		slog.String("drrun_path", cfg.DrrunPath),
		slog.String("target_exe_path", cfg.TargetExePath),
	)

	coordinator := session.NewCoordinator(logger, nil)
	seg, created, err := coordinator.CreateOrAttach(channelName, uint32(os.Getpid()))
	if err != nil {
		logger.Error("failed to create or attach channel segment", slog.Any("error", err))
		os.Exit(1)
	}
	defer seg.Close()
	logger.Info("channel segment ready", slog.Bool("created", created))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	launcher := session.NewLauncher(session.LauncherConfig{
		DrrunPath:     cfg.DrrunPath,
		ClientDLLPath: cfg.ClientDLLPath,
		TargetExePath: cfg.TargetExePath,
		TargetArgs:    cfg.TargetArgs,
	}, logger)

	cmd, err := launcher.Start(ctx, channelName)
	if err != nil {
		logger.Error("failed to start drrun", slog.Any("error", err))
		os.Exit(1)
	}

	agentCtx := agentcore.New(logger)
	agentCtx.Init(seg)
	host := dbihost.NewNoopHost(uint32(cmd.Process.Pid), 0)
	agentCtx.Attach(host)

	go agentCtx.Run(ctx)

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-exitCh
	case err := <-exitCh:
		if err != nil {
			logger.Warn("traced process exited with error", slog.Any("error", err))
		} else {
			logger.Info("traced process exited")
		}
	}

	agentCtx.Shutdown()
	logger.Info("bbtrace agent exited cleanly")
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
