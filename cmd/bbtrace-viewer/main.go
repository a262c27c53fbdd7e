// Command bbtrace-viewer is the consumer-side main binary. It launches
// drrun against the configured target with the instrumentation client DLL,
// waits out the create-or-attach race against the client's shared segment,
// loads PDB symbols for the target executable, drains the event ring into
// the block-line/projection model, and exposes a local HTTP control
// surface for reading snapshots and editing the active address-range
// filter.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bbtrace/bbtrace/internal/audit"
	"github.com/bbtrace/bbtrace/internal/config"
	"github.com/bbtrace/bbtrace/internal/metrics"
	"github.com/bbtrace/bbtrace/internal/pdbsym"
	"github.com/bbtrace/bbtrace/internal/session"
	"github.com/bbtrace/bbtrace/internal/viewerapi"
	"github.com/bbtrace/bbtrace/internal/viewercore"
)

func main() {
	configPath := flag.String("config", "/etc/bbtrace/viewer.yaml", "path to the bbtrace viewer YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadViewerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bbtrace-viewer: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("target_exe_path", cfg.TargetExePath),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("audit_log_path", cfg.AuditLogPath),
	)

	auditLogger, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		logger.Error("failed to open audit log", slog.Any("error", err))
		os.Exit(1)
	}
	defer auditLogger.Close()

	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channelName := session.NewChannelName(cfg.ChannelPrefix)
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

	coordinator := session.NewCoordinator(logger, auditLogger)
	seg, err := coordinator.AttachWithBackoff(ctx, channelName, cfg.AttachTimeout)
	if err != nil {
		logger.Error("failed to attach to channel segment", slog.Any("error", err))
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		os.Exit(1)
	}
	defer seg.Close()
	m.SessionAttached.Store(1)

	loader := pdbsym.NewCOMLoader(cfg.PDBReaderDLLPath)
	symbolSession, err := loader.OpenForExe(cfg.TargetExePath, cfg.SymbolServer)
	if err != nil {
		logger.Error("failed to open PDB symbol session", slog.Any("error", err))
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		os.Exit(1)
	}
	defer symbolSession.Close()

	receiver := viewercore.NewReceiver(logger, seg, symbolSession, cfg.ProjectionFileSuffix, m)
	commandSender := viewercore.NewCommandSender(seg, m)

	srv := viewerapi.NewServer(receiver, commandSender, auditLogger)
	router := viewerapi.NewRouter(srv)

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", m.Handler())

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("control surface listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control surface error", slog.Any("error", err))
		}
	}()

	go receiver.Run(ctx)

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

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control surface shutdown error", slog.Any("error", err))
	}

	logger.Info("bbtrace viewer exited cleanly")
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
