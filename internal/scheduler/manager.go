package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"inkwell/internal/archive"
	"inkwell/internal/config"
	"inkwell/internal/deadline"
	"inkwell/internal/logging"
	"inkwell/internal/mission"
	"inkwell/internal/pool"
	"inkwell/internal/recorder"
	"inkwell/internal/registry"
	"inkwell/internal/watchlist"
)

// ErrMissionNotFound reports an operation against an id the registry does
// not track.
var ErrMissionNotFound = errors.New("mission not found")

// ErrDuplicateSource reports a source file that was already ingested.
var ErrDuplicateSource = errors.New("source already ingested")

// Dispatcher is the slice of the renderer gateway the scheduler drives.
type Dispatcher interface {
	Supported(sourcePath string) bool
	Dispatch(ctx context.Context, sourcePath, targetPath string) error
}

// Options collects the manager's collaborators.
type Options struct {
	Config     *config.Manager
	Registry   *registry.Registry
	Pool       *pool.Pool
	Deadlines  *deadline.Supervisor
	Dispatcher Dispatcher
	Recorder   *recorder.Recorder
	Watchlist  *watchlist.Store
	Archive    *archive.Store
	Logger     *slog.Logger
}

// Manager owns the mission lifecycle from ingestion to terminal record.
type Manager struct {
	logger     *slog.Logger
	cfg        *config.Manager
	registry   *registry.Registry
	pool       *pool.Pool
	deadlines  *deadline.Supervisor
	dispatcher Dispatcher
	recorder   *recorder.Recorder
	watchlist  *watchlist.Store
	archive    *archive.Store

	idSeq atomic.Int64

	handlesMu sync.Mutex
	handles   map[int64]*pool.Handle

	// admitMu serializes admission passes so capacity checks stay honest.
	admitMu sync.Mutex

	stopping atomic.Bool

	cron *cron.Cron
}

// New wires a manager. Call Seed before Start on a daemon with prior state.
func New(opts Options) (*Manager, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("scheduler requires a config manager")
	case opts.Registry == nil, opts.Pool == nil, opts.Deadlines == nil:
		return nil, errors.New("scheduler requires registry, pool, and deadline supervisor")
	case opts.Dispatcher == nil:
		return nil, errors.New("scheduler requires a dispatcher")
	case opts.Recorder == nil, opts.Watchlist == nil:
		return nil, errors.New("scheduler requires recorder and watchlist")
	}
	return &Manager{
		logger:     logging.NewComponentLogger(opts.Logger, "scheduler"),
		cfg:        opts.Config,
		registry:   opts.Registry,
		pool:       opts.Pool,
		deadlines:  opts.Deadlines,
		dispatcher: opts.Dispatcher,
		recorder:   opts.Recorder,
		watchlist:  opts.Watchlist,
		archive:    opts.Archive,
		handles:    make(map[int64]*pool.Handle),
	}, nil
}

// Seed restores durable state after a restart: the id sequence continues
// above the highest archived id, archived source files rejoin the
// duplicate-suppression set, and the recent view is repopulated.
func (m *Manager) Seed(ctx context.Context) error {
	if m.archive == nil {
		return nil
	}
	maxID, err := m.archive.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("seed id sequence: %w", err)
	}
	if maxID > m.idSeq.Load() {
		m.idSeq.Store(maxID)
	}

	sources, err := m.archive.SourcePaths(ctx)
	if err != nil {
		return fmt.Errorf("seed seen set: %w", err)
	}
	for _, source := range sources {
		if err := m.watchlist.MarkSeen(ctx, source); err != nil {
			return fmt.Errorf("seed seen set: %w", err)
		}
	}

	limit := m.cfg.Snapshot().Scheduler.RecentLimit
	recent, err := m.archive.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("seed recent view: %w", err)
	}
	// Recent returns newest first; the recorder wants oldest first.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	m.recorder.Seed(recent)

	m.logger.Info("seeded from archive",
		logging.Int64("max_id", maxID),
		logging.Int("seen_sources", len(sources)),
		logging.Int("recent", len(recent)),
	)
	return nil
}

// Start launches the two periodic duties. Scan intervals are read once at
// start; changing them requires a daemon restart.
func (m *Manager) Start(ctx context.Context) error {
	if m.cron != nil {
		return errors.New("scheduler already started")
	}
	cfg := m.cfg.Snapshot()

	runner := cron.New()
	if _, err := runner.AddFunc(fmt.Sprintf("@every %ds", cfg.Scheduler.IngestIntervalSeconds), func() {
		m.ingestPass(ctx)
	}); err != nil {
		return fmt.Errorf("schedule ingestion scan: %w", err)
	}
	if _, err := runner.AddFunc(fmt.Sprintf("@every %ds", cfg.Scheduler.AdmitIntervalSeconds), func() {
		m.admitPass()
	}); err != nil {
		return fmt.Errorf("schedule admission scan: %w", err)
	}
	runner.Start()
	m.cron = runner

	m.logger.Info("scheduler started",
		logging.Int("ingest_interval_s", cfg.Scheduler.IngestIntervalSeconds),
		logging.Int("admit_interval_s", cfg.Scheduler.AdmitIntervalSeconds),
	)
	return nil
}

// Stop halts the periodic duties and marks the manager as shutting down so
// in-flight completions stop classifying pool drainage as faults. The worker
// pool itself is shut down by the daemon, after Stop returns.
func (m *Manager) Stop() {
	m.stopping.Store(true)
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.cron = nil
}

// Add ingests a single source file and kicks an admission pass. The target
// directory defaults to the configured one.
func (m *Manager) Add(ctx context.Context, sourcePath, targetDir string) (int64, error) {
	sourcePath, err := config.ExpandPath(sourcePath)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory; use AddDir", sourcePath)
	}

	seen, err := m.watchlist.Seen(ctx, sourcePath)
	if err != nil {
		return 0, err
	}
	if seen {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateSource, sourcePath)
	}

	id, err := m.ingestFile(ctx, sourcePath, m.resolveTargetDir(targetDir))
	if err != nil {
		return 0, err
	}
	go m.admitPass()
	return id, nil
}

// AddDir ingests every supported file directly inside dir once, without
// registering the directory for periodic scans. Returns how many missions
// were created.
func (m *Manager) AddDir(ctx context.Context, dir, targetDir string) (int, error) {
	dir, err := config.ExpandPath(dir)
	if err != nil {
		return 0, err
	}
	added, err := m.ingestDir(ctx, dir, m.resolveTargetDir(targetDir))
	if err != nil {
		return 0, err
	}
	go m.admitPass()
	return added, nil
}

// Watch registers a directory for the periodic ingestion scan and scans it
// immediately.
func (m *Manager) Watch(ctx context.Context, dir string) error {
	dir, err := config.ExpandPath(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := m.watchlist.AddDir(ctx, dir); err != nil {
		return err
	}
	if _, err := m.ingestDir(ctx, dir, m.resolveTargetDir("")); err != nil {
		m.logger.Warn("initial scan of watched directory failed",
			logging.String("dir", dir), logging.Error(err))
	}
	go m.admitPass()
	return nil
}

// Unwatch removes a directory from the periodic scan. Already ingested files
// keep their missions.
func (m *Manager) Unwatch(ctx context.Context, dir string) (bool, error) {
	dir, err := config.ExpandPath(dir)
	if err != nil {
		return false, err
	}
	return m.watchlist.RemoveDir(ctx, dir)
}

// Watched lists the registered scan directories.
func (m *Manager) Watched(ctx context.Context) ([]string, error) {
	return m.watchlist.Dirs(ctx)
}

// Cancel requests cancellation of a live mission. Terminal and unknown
// missions report errors. For a running or queued mission the status flips
// to CANCEL first and the dispatch handle is canceled after, so the fault
// handler can tell a user cancel from a timeout.
func (m *Manager) Cancel(ctx context.Context, id int64) error {
	target := m.registry.Get(id)
	if target == nil {
		return fmt.Errorf("%w: %d", ErrMissionNotFound, id)
	}
	if err := target.Transition(mission.StatusCancel); err != nil {
		return err
	}
	m.logger.Info("mission canceled", logging.MissionID(id),
		logging.String("source", target.SourcePath()))

	if handle := m.handleOf(id); handle != nil {
		// The completion callback observes CANCEL and finalizes.
		handle.Cancel()
		return nil
	}
	// Never admitted; finalize directly.
	m.recorder.Record(ctx, target, func() { m.dropHandle(id) })
	return nil
}

// Missions returns the live missions in admission order plus the bounded
// recent-outcome view, newest outcome first.
func (m *Manager) Missions() (active, recent []mission.Snapshot) {
	for _, live := range m.registry.Values() {
		active = append(active, live.Snapshot())
	}
	return active, m.recorder.Recent()
}

func (m *Manager) resolveTargetDir(targetDir string) string {
	if targetDir != "" {
		if expanded, err := config.ExpandPath(targetDir); err == nil {
			return expanded
		}
	}
	if targetDir != "" {
		return targetDir
	}
	return m.cfg.Snapshot().Paths.TargetDir
}

func (m *Manager) nextID() int64 {
	return m.idSeq.Add(1)
}

func (m *Manager) handleOf(id int64) *pool.Handle {
	m.handlesMu.Lock()
	defer m.handlesMu.Unlock()
	return m.handles[id]
}

func (m *Manager) storeHandle(id int64, handle *pool.Handle) {
	m.handlesMu.Lock()
	m.handles[id] = handle
	m.handlesMu.Unlock()
}

func (m *Manager) dropHandle(id int64) {
	m.handlesMu.Lock()
	delete(m.handles, id)
	m.handlesMu.Unlock()
}
