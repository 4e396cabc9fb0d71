package testsupport

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/archive"
	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/deadline"
	"inkwell/internal/logging"
	"inkwell/internal/pool"
	"inkwell/internal/recorder"
	"inkwell/internal/registry"
	"inkwell/internal/scheduler"
	"inkwell/internal/watchlist"
)

// StubDispatcher satisfies the scheduler's dispatcher with a fixed outcome.
// With Block set it holds every render until cancellation.
type StubDispatcher struct {
	Err   error
	Block bool
}

func (StubDispatcher) Supported(string) bool { return true }

func (d StubDispatcher) Dispatch(ctx context.Context, _, _ string) error {
	if d.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return d.Err
}

// Stack is a fully wired daemon for integration-style tests.
type Stack struct {
	Config    *config.Manager
	Registry  *registry.Registry
	Pool      *pool.Pool
	Archive   *archive.Store
	Watchlist *watchlist.Store
	Recorder  *recorder.Recorder
	Scheduler *scheduler.Manager
	Daemon    *daemon.Daemon
}

// NewStack wires registry, pool, stores, recorder, scheduler, and daemon
// around the given dispatcher. Everything is torn down via t.Cleanup in
// dependency order.
func NewStack(t testing.TB, dispatcher scheduler.Dispatcher, opts ...ConfigOption) *Stack {
	t.Helper()
	manager := NewConfigManager(t, opts...)
	snap := manager.Snapshot()

	arch, err := archive.Open(snap.ArchiveDBPath())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = arch.Close() })
	wl, err := watchlist.Open(snap.WatchlistDBPath())
	if err != nil {
		t.Fatalf("open watchlist: %v", err)
	}
	t.Cleanup(func() { _ = wl.Close() })

	reg := registry.New()
	workers := pool.New(func() pool.Sizing {
		s := manager.Snapshot()
		return pool.Sizing{
			Core:  s.Pool.CoreWorkers,
			Max:   s.Pool.MaxWorkers,
			Queue: s.Pool.QueueCapacity,
			Idle:  time.Duration(s.Pool.IdleSeconds) * time.Second,
		}
	}, logging.NewNop())
	rec := recorder.New(reg, arch, func() int { return manager.Snapshot().Scheduler.RecentLimit }, logging.NewNop())

	sched, err := scheduler.New(scheduler.Options{
		Config:     manager,
		Registry:   reg,
		Pool:       workers,
		Deadlines:  deadline.New(logging.NewNop()),
		Dispatcher: dispatcher,
		Recorder:   rec,
		Watchlist:  wl,
		Archive:    arch,
		Logger:     logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("wire scheduler: %v", err)
	}
	d, err := daemon.New(manager, sched, workers, logging.NewNop())
	if err != nil {
		t.Fatalf("wire daemon: %v", err)
	}
	// Cleanups run last in, first out: daemon first, pool second (idempotent
	// when the daemon already stopped it), stores last.
	t.Cleanup(workers.Stop)
	t.Cleanup(d.Stop)

	return &Stack{
		Config:    manager,
		Registry:  reg,
		Pool:      workers,
		Archive:   arch,
		Watchlist: wl,
		Recorder:  rec,
		Scheduler: sched,
		Daemon:    d,
	}
}
