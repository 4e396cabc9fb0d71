// Package daemonrun assembles and runs the daemon process: logging, stores,
// renderer gateway, worker pool, scheduler, IPC server, and shutdown
// ordering.
package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/archive"
	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/deadline"
	"inkwell/internal/ipc"
	"inkwell/internal/logging"
	"inkwell/internal/pool"
	"inkwell/internal/recorder"
	"inkwell/internal/registry"
	"inkwell/internal/render"
	"inkwell/internal/scheduler"
	"inkwell/internal/watchlist"
)

// Options configures daemon process runtime behavior.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// Run starts the daemon and blocks until a signal or an IPC stop request.
func Run(cmdCtx context.Context, opts Options) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, cfgPath, _, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.NewForDaemon(level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	manager := config.NewManager(cfg, cfgPath, logger)
	if err := manager.Watch(signalCtx); err != nil {
		logger.Warn("config live reload unavailable", logging.Error(err))
	}

	arch, err := archive.Open(cfg.ArchiveDBPath())
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()
	wl, err := watchlist.Open(cfg.WatchlistDBPath())
	if err != nil {
		return fmt.Errorf("open watchlist: %w", err)
	}
	defer wl.Close()

	degraded := ""
	if err := render.Preflight(cfg.Convert.SofficeBinary); err != nil {
		if cfg.Convert.StrictPreflight {
			return fmt.Errorf("renderer preflight: %w", err)
		}
		degraded = err.Error()
		logger.Warn("starting degraded; conversions will fail until the converter is available",
			logging.Error(err))
	}

	binary := func() string { return manager.Snapshot().Convert.SofficeBinary }
	fontDir := func() string { return manager.Snapshot().Convert.FontDir }
	gateway := render.NewGateway(
		render.NewSoffice(render.FamilyWord, binary, fontDir, logger),
		render.NewSoffice(render.FamilyCell, binary, fontDir, logger),
		render.NewSoffice(render.FamilySlide, binary, fontDir, logger),
		func() bool { return manager.Snapshot().Convert.EnableSlides },
		logger,
	)

	reg := registry.New()
	workers := pool.New(func() pool.Sizing {
		snap := manager.Snapshot()
		return pool.Sizing{
			Core:  snap.Pool.CoreWorkers,
			Max:   snap.Pool.MaxWorkers,
			Queue: snap.Pool.QueueCapacity,
			Idle:  time.Duration(snap.Pool.IdleSeconds) * time.Second,
		}
	}, logger)
	rec := recorder.New(reg, arch, func() int { return manager.Snapshot().Scheduler.RecentLimit }, logger)

	sched, err := scheduler.New(scheduler.Options{
		Config:     manager,
		Registry:   reg,
		Pool:       workers,
		Deadlines:  deadline.New(logger),
		Dispatcher: gateway,
		Recorder:   rec,
		Watchlist:  wl,
		Archive:    arch,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("wire scheduler: %w", err)
	}

	d, err := daemon.New(manager, sched, workers, logger)
	if err != nil {
		return fmt.Errorf("wire daemon: %w", err)
	}
	if degraded != "" {
		d.SetDegraded(degraded)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	stopRequested := make(chan struct{}, 1)
	server, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, func() {
		select {
		case stopRequested <- struct{}{}:
		default:
		}
	}, logger)
	if err != nil {
		d.Stop()
		return fmt.Errorf("start ipc server: %w", err)
	}
	server.Serve()

	logger.Info("inkwell daemon ready",
		logging.String("socket", cfg.SocketPath()),
		logging.String("config", cfgPath),
	)

	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
	case <-stopRequested:
		logger.Info("shutdown requested over ipc")
	}

	// Interrupt in-flight renders so the pool drains promptly, then tear
	// down in dependency order.
	gateway.Interrupt()
	d.Stop()
	server.Close()
	return nil
}
