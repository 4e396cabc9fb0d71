package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/pool"
	"inkwell/internal/scheduler"
)

// Daemon coordinates the scheduling core and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg       *config.Manager
	logger    *slog.Logger
	scheduler *scheduler.Manager
	pool      *pool.Pool

	sessionID string
	lockPath  string
	lock      *flock.Flock
	degraded  string

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon around an already-wired scheduler.
func New(cfg *config.Manager, sched *scheduler.Manager, workers *pool.Pool, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || sched == nil || workers == nil {
		return nil, errors.New("daemon requires config, scheduler, and pool")
	}
	lockPath := cfg.Snapshot().LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		scheduler: sched,
		pool:      workers,
		sessionID: uuid.NewString(),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// SetDegraded records a degraded-start reason surfaced in status output,
// such as a missing converter binary under lax preflight.
func (d *Daemon) SetDegraded(reason string) {
	d.degraded = reason
}

// SessionID identifies this daemon process in logs and status output.
func (d *Daemon) SessionID() string {
	return d.sessionID
}

// Start acquires the instance lock, restores durable state, and launches the
// periodic scheduling duties.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another inkwell daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.scheduler.Seed(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("seed scheduler: %w", err)
	}
	if err := d.scheduler.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("session_id", d.sessionID),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop shuts the service down in dependency order: scan duties first, then
// the worker pool, then the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.scheduler.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Running reports whether the scheduling core is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status assembles the daemon status view.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	cfg := d.cfg.Snapshot()
	watched, err := d.scheduler.Watched(ctx)
	if err != nil {
		d.logger.Warn("could not list watched directories", logging.Error(err))
	}
	return api.DaemonStatus{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		SessionID:   d.sessionID,
		SocketPath:  cfg.SocketPath(),
		LockPath:    d.lockPath,
		ArchivePath: cfg.ArchiveDBPath(),
		Workers:     d.pool.Active(),
		Outstanding: d.pool.Outstanding(),
		Capacity:    cfg.Pool.Capacity(),
		Watched:     watched,
		Degraded:    d.degraded,
	}
}

// Missions returns the live and recent mission views.
func (d *Daemon) Missions() (active, recent []api.Mission) {
	liveSnaps, recentSnaps := d.scheduler.Missions()
	return api.FromSnapshots(liveSnaps), api.FromSnapshots(recentSnaps)
}

// Add ingests a single file.
func (d *Daemon) Add(ctx context.Context, sourcePath, targetDir string) (int64, error) {
	return d.scheduler.Add(ctx, sourcePath, targetDir)
}

// AddDir ingests a directory once.
func (d *Daemon) AddDir(ctx context.Context, dir, targetDir string) (int, error) {
	return d.scheduler.AddDir(ctx, dir, targetDir)
}

// Cancel cancels a live mission.
func (d *Daemon) Cancel(ctx context.Context, id int64) error {
	return d.scheduler.Cancel(ctx, id)
}

// Watch registers a directory for periodic ingestion.
func (d *Daemon) Watch(ctx context.Context, dir string) error {
	return d.scheduler.Watch(ctx, dir)
}

// Unwatch removes a watched directory.
func (d *Daemon) Unwatch(ctx context.Context, dir string) (bool, error) {
	return d.scheduler.Unwatch(ctx, dir)
}
