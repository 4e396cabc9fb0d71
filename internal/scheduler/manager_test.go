package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"inkwell/internal/archive"
	"inkwell/internal/config"
	"inkwell/internal/deadline"
	"inkwell/internal/logging"
	"inkwell/internal/mission"
	"inkwell/internal/pool"
	"inkwell/internal/recorder"
	"inkwell/internal/registry"
	"inkwell/internal/render"
	"inkwell/internal/watchlist"
)

// fakeDispatcher scripts render outcomes per call. Anything ending in .zip
// counts as unsupported so ingestion-filter tests have a knob.
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   int
	results []error // consumed one per call; defaultErr afterwards

	defaultErr error
	block      chan struct{} // when set, Dispatch waits for it or ctx
	started    chan string   // when set, receives source at dispatch start
}

func (d *fakeDispatcher) Supported(sourcePath string) bool {
	return !strings.HasSuffix(sourcePath, ".zip")
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, sourcePath, _ string) error {
	d.mu.Lock()
	d.calls++
	n := d.calls
	var err error
	if n <= len(d.results) {
		err = d.results[n-1]
	} else {
		err = d.defaultErr
	}
	block := d.block
	started := d.started
	d.mu.Unlock()

	if started != nil {
		started <- sourcePath
	}
	if block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-block:
		}
	}
	return err
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type testEnv struct {
	t    *testing.T
	mgr  *Manager
	cfg  *config.Manager
	reg  *registry.Registry
	pool *pool.Pool
	disp *fakeDispatcher
	arch *archive.Store
	wl   *watchlist.Store
	rec  *recorder.Recorder
	dir  string
}

func newTestEnv(t *testing.T, mutate func(*config.Config), disp *fakeDispatcher) *testEnv {
	t.Helper()
	dataDir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = dataDir
	cfg.Paths.LogDir = filepath.Join(dataDir, "logs")
	cfg.Paths.TargetDir = filepath.Join(dataDir, "converted")
	cfg.Pool.CoreWorkers = 2
	cfg.Pool.MaxWorkers = 2
	cfg.Pool.QueueCapacity = 4
	cfg.Pool.IdleSeconds = 1
	cfg.Convert.MaxRetries = 2
	cfg.Convert.TimeoutSeconds = 60
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	manager := config.NewManager(&cfg, "", logging.NewNop())

	arch, err := archive.Open(manager.Snapshot().ArchiveDBPath())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = arch.Close() })
	wl, err := watchlist.Open(manager.Snapshot().WatchlistDBPath())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = wl.Close() })

	reg := registry.New()
	workers := pool.New(func() pool.Sizing {
		snap := manager.Snapshot()
		return pool.Sizing{
			Core:  snap.Pool.CoreWorkers,
			Max:   snap.Pool.MaxWorkers,
			Queue: snap.Pool.QueueCapacity,
			Idle:  time.Duration(snap.Pool.IdleSeconds) * time.Second,
		}
	}, logging.NewNop())
	rec := recorder.New(reg, arch, func() int { return manager.Snapshot().Scheduler.RecentLimit }, logging.NewNop())

	mgr, err := New(Options{
		Config:     manager,
		Registry:   reg,
		Pool:       workers,
		Deadlines:  deadline.New(logging.NewNop()),
		Dispatcher: disp,
		Recorder:   rec,
		Watchlist:  wl,
		Archive:    arch,
		Logger:     logging.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	// Pool must stop before the stores close; cleanups run last in, first out.
	t.Cleanup(workers.Stop)
	t.Cleanup(mgr.Stop)

	return &testEnv{t: t, mgr: mgr, cfg: manager, reg: reg, pool: workers,
		disp: disp, arch: arch, wl: wl, rec: rec, dir: dataDir}
}

func (e *testEnv) sourceFile(name string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		e.t.Fatal(err)
	}
	return path
}

// pumpUntil runs admission passes while polling, standing in for the cron
// duty the tests do not start.
func (e *testEnv) pumpUntil(cond func() bool, msg string) {
	e.t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		e.mgr.admitPass()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.t.Fatal("timed out waiting for " + msg)
}

func (e *testEnv) recordOf(id int64) (mission.Snapshot, bool) {
	for _, snap := range e.rec.Recent() {
		if snap.ID == id {
			return snap, true
		}
	}
	return mission.Snapshot{}, false
}

func TestAddAndConvertFinishes(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	ctx := context.Background()

	id, err := env.mgr.Add(ctx, env.sourceFile("report.docx"), "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	env.pumpUntil(func() bool {
		_, done := env.recordOf(id)
		return done
	}, "mission to finish")

	snap, _ := env.recordOf(id)
	if snap.Status != mission.StatusFinish {
		t.Fatalf("status = %s", snap.Status)
	}
	if snap.RetryCount != 0 || snap.Errors != "" {
		t.Fatalf("clean run recorded failures: %+v", snap)
	}
	want := filepath.Join(env.cfg.Snapshot().Paths.TargetDir, "report.docx.pdf")
	if snap.TargetPath != want {
		t.Fatalf("target = %s, want %s", snap.TargetPath, want)
	}
	if env.reg.Get(id) != nil {
		t.Fatal("finished mission still registered")
	}
}

func TestRetriableFaultsRetryThenSucceed(t *testing.T) {
	disp := &fakeDispatcher{results: []error{
		render.NewFault(render.FamilyWord, errors.New("converter crashed")),
		render.NewFault(render.FamilyWord, errors.New("fonts missing")),
		nil,
	}}
	env := newTestEnv(t, func(c *config.Config) { c.Convert.MaxRetries = 5 }, disp)

	id, err := env.mgr.Add(context.Background(), env.sourceFile("flaky.docx"), "")
	if err != nil {
		t.Fatal(err)
	}
	env.pumpUntil(func() bool {
		snap, done := env.recordOf(id)
		return done && snap.Status == mission.StatusFinish
	}, "third attempt to succeed")

	snap, _ := env.recordOf(id)
	if snap.RetryCount != 2 {
		t.Fatalf("retryCount = %d, want 2", snap.RetryCount)
	}
	lines := strings.Split(snap.Errors, "\n")
	if len(lines) != 2 {
		t.Fatalf("error log lines = %q", snap.Errors)
	}
	if !strings.Contains(lines[0], "converter crashed") || !strings.Contains(lines[1], "fonts missing") {
		t.Fatalf("error log order wrong: %q", snap.Errors)
	}
	if disp.callCount() != 3 {
		t.Fatalf("dispatch calls = %d", disp.callCount())
	}
}

func TestRepeatedFaultMessageIsDeduplicated(t *testing.T) {
	fault := render.NewFault(render.FamilyCell, errors.New("bad sector"))
	disp := &fakeDispatcher{results: []error{fault, fault, nil}}
	env := newTestEnv(t, nil, disp)

	id, err := env.mgr.Add(context.Background(), env.sourceFile("dup.xlsx"), "")
	if err != nil {
		t.Fatal(err)
	}
	env.pumpUntil(func() bool {
		snap, done := env.recordOf(id)
		return done && snap.Status == mission.StatusFinish
	}, "mission to finish after duplicate faults")

	snap, _ := env.recordOf(id)
	if snap.RetryCount != 2 {
		t.Fatalf("retryCount = %d", snap.RetryCount)
	}
	if strings.Count(snap.Errors, "bad sector") != 1 {
		t.Fatalf("duplicate message not collapsed: %q", snap.Errors)
	}
}

func TestTimeoutExhaustionBecomesError(t *testing.T) {
	disp := &fakeDispatcher{defaultErr: context.DeadlineExceeded}
	env := newTestEnv(t, func(c *config.Config) { c.Convert.MaxRetries = 2 }, disp)

	id, err := env.mgr.Add(context.Background(), env.sourceFile("slow.docx"), "")
	if err != nil {
		t.Fatal(err)
	}
	env.pumpUntil(func() bool {
		_, done := env.recordOf(id)
		return done
	}, "timeouts to exhaust the retry budget")

	snap, _ := env.recordOf(id)
	if snap.Status != mission.StatusError {
		t.Fatalf("status = %s", snap.Status)
	}
	if !strings.Contains(snap.Errors, "Timeout") {
		t.Fatalf("error log missing timeout: %q", snap.Errors)
	}
	if disp.callCount() != 3 {
		t.Fatalf("dispatch calls = %d, want 3", disp.callCount())
	}
	if env.reg.Get(id) != nil {
		t.Fatal("errored mission still registered")
	}
	archived, err := env.arch.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 || archived[0].Status != mission.StatusError {
		t.Fatalf("archive = %+v", archived)
	}
}

func TestDeadlineCancelsSlowRender(t *testing.T) {
	disp := &fakeDispatcher{block: make(chan struct{})}
	env := newTestEnv(t, func(c *config.Config) {
		c.Convert.TimeoutSeconds = 1
		c.Convert.MaxRetries = 0
	}, disp)

	id, err := env.mgr.Add(context.Background(), env.sourceFile("hang.docx"), "")
	if err != nil {
		t.Fatal(err)
	}
	env.pumpUntil(func() bool {
		_, done := env.recordOf(id)
		return done
	}, "deadline to cancel the hung render")

	snap, _ := env.recordOf(id)
	if snap.Status != mission.StatusError {
		t.Fatalf("status = %s", snap.Status)
	}
	if !strings.Contains(snap.Errors, "Timeout after 1s") {
		t.Fatalf("error log = %q", snap.Errors)
	}
}

func TestUnsupportedTypeIsNotRetried(t *testing.T) {
	disp := &fakeDispatcher{defaultErr: fmt.Errorf("%w: .docx", render.ErrUnsupportedType)}
	env := newTestEnv(t, nil, disp)

	id, err := env.mgr.Add(context.Background(), env.sourceFile("odd.docx"), "")
	if err != nil {
		t.Fatal(err)
	}
	env.pumpUntil(func() bool {
		_, done := env.recordOf(id)
		return done
	}, "unsupported mission to fail")

	snap, _ := env.recordOf(id)
	if snap.Status != mission.StatusError {
		t.Fatalf("status = %s", snap.Status)
	}
	if !strings.Contains(snap.Errors, "unsupported") {
		t.Fatalf("error log = %q", snap.Errors)
	}
	if disp.callCount() != 1 {
		t.Fatalf("unsupported type retried: %d calls", disp.callCount())
	}
}

func TestUnknownFaultIsNotRetried(t *testing.T) {
	disp := &fakeDispatcher{defaultErr: errors.New("wire tripped")}
	env := newTestEnv(t, nil, disp)

	id, err := env.mgr.Add(context.Background(), env.sourceFile("weird.docx"), "")
	if err != nil {
		t.Fatal(err)
	}
	env.pumpUntil(func() bool {
		_, done := env.recordOf(id)
		return done
	}, "unknown fault to finalize")

	snap, _ := env.recordOf(id)
	if snap.Status != mission.StatusError || disp.callCount() != 1 {
		t.Fatalf("status=%s calls=%d", snap.Status, disp.callCount())
	}
}

func TestCancelUnadmittedMissionNeverRenders(t *testing.T) {
	disp := &fakeDispatcher{}
	env := newTestEnv(t, nil, disp)
	ctx := context.Background()

	id, err := env.mgr.ingestFile(ctx, env.sourceFile("parked.docx"), env.cfg.Snapshot().Paths.TargetDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.mgr.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	snap, done := env.recordOf(id)
	if !done || snap.Status != mission.StatusCancel {
		t.Fatalf("record = %+v done=%v", snap, done)
	}
	if snap.EndTime.IsZero() {
		t.Fatal("cancel did not stamp end time")
	}
	if disp.callCount() != 0 {
		t.Fatal("canceled mission was rendered")
	}
	if env.reg.Get(id) != nil {
		t.Fatal("canceled mission still registered")
	}
}

func TestCancelRunningMission(t *testing.T) {
	disp := &fakeDispatcher{block: make(chan struct{}), started: make(chan string, 1)}
	env := newTestEnv(t, nil, disp)
	ctx := context.Background()

	id, err := env.mgr.Add(ctx, env.sourceFile("live.docx"), "")
	if err != nil {
		t.Fatal(err)
	}
	env.pumpUntil(func() bool {
		select {
		case <-disp.started:
			return true
		default:
			return false
		}
	}, "render to start")

	if err := env.mgr.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	env.pumpUntil(func() bool {
		_, done := env.recordOf(id)
		return done
	}, "cancel to finalize")

	snap, _ := env.recordOf(id)
	if snap.Status != mission.StatusCancel {
		t.Fatalf("status = %s", snap.Status)
	}
	if disp.callCount() != 1 {
		t.Fatalf("canceled mission re-attempted: %d calls", disp.callCount())
	}
}

func TestCancelUnknownIDIsError(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	err := env.mgr.Cancel(context.Background(), 404)
	if !errors.Is(err, ErrMissionNotFound) {
		t.Fatalf("expected ErrMissionNotFound, got %v", err)
	}
}

func TestAdmissionRespectsCapacity(t *testing.T) {
	disp := &fakeDispatcher{block: make(chan struct{})}
	env := newTestEnv(t, func(c *config.Config) {
		c.Pool.CoreWorkers = 1
		c.Pool.MaxWorkers = 1
		c.Pool.QueueCapacity = 1
	}, disp)
	ctx := context.Background()
	targetDir := env.cfg.Snapshot().Paths.TargetDir

	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := env.mgr.ingestFile(ctx, env.sourceFile(fmt.Sprintf("f%d.docx", i)), targetDir)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	env.mgr.admitPass()
	env.mgr.admitPass()

	if got := env.pool.Outstanding(); got != 2 {
		t.Fatalf("outstanding = %d, want capacity 2", got)
	}
	waiting := 0
	for _, id := range ids {
		if m := env.reg.Get(id); m != nil && m.Status() == mission.StatusWaitOutside {
			waiting++
		}
	}
	if waiting != 2 {
		t.Fatalf("missions still outside = %d, want 2", waiting)
	}

	// Capacity frees up as renders finish; the rest are admitted.
	close(disp.block)
	env.pumpUntil(func() bool {
		for _, id := range ids {
			if _, done := env.recordOf(id); !done {
				return false
			}
		}
		return true
	}, "all missions to drain through the bounded pool")
}

func TestAddRejectsDuplicateSource(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	ctx := context.Background()
	source := env.sourceFile("once.docx")

	if _, err := env.mgr.Add(ctx, source, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := env.mgr.Add(ctx, source, ""); !errors.Is(err, ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
}

func TestAddDirIngestsSupportedFilesOnce(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	ctx := context.Background()

	dir := filepath.Join(env.dir, "incoming")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.docx", "b.xlsx", "c.zip"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	added, err := env.mgr.AddDir(ctx, dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2 (zip unsupported)", added)
	}

	// A second pass finds nothing new.
	added, err = env.mgr.AddDir(ctx, dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Fatalf("re-ingest added %d", added)
	}
}

func TestVanishedSourceRollsBackSeenMark(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	ctx := context.Background()
	gone := filepath.Join(env.dir, "vanished.docx")

	if _, err := env.mgr.ingestFile(ctx, gone, env.dir); err == nil {
		t.Fatal("ingest of a missing file must fail")
	}
	seen, err := env.wl.Seen(ctx, gone)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("seen mark survived a failed ingest")
	}

	// The file reappearing is ingested normally.
	env.sourceFile("vanished.docx")
	id, err := env.mgr.ingestFile(ctx, gone, env.dir)
	if err != nil {
		t.Fatalf("ingest after reappearance: %v", err)
	}
	if env.reg.Get(id) == nil {
		t.Fatal("reappeared file was not registered")
	}
}

func TestWatchUnwatchRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	ctx := context.Background()

	dir := filepath.Join(env.dir, "watched")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "seed.docx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := env.mgr.Watch(ctx, dir); err != nil {
		t.Fatal(err)
	}
	watched, err := env.mgr.Watched(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(watched) != 1 || watched[0] != dir {
		t.Fatalf("watched = %v", watched)
	}
	// Watch scans immediately.
	if env.reg.Len() != 1 {
		t.Fatalf("registry len = %d after initial scan", env.reg.Len())
	}

	removed, err := env.mgr.Unwatch(ctx, dir)
	if err != nil || !removed {
		t.Fatalf("Unwatch: removed=%v err=%v", removed, err)
	}
	watched, err = env.mgr.Watched(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(watched) != 0 {
		t.Fatalf("watched after unwatch = %v", watched)
	}
}

func TestIngestPassIsolatesBadDirectories(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	ctx := context.Background()

	good := filepath.Join(env.dir, "good")
	if err := os.MkdirAll(good, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(good, "ok.docx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := env.wl.AddDir(ctx, filepath.Join(env.dir, "vanished")); err != nil {
		t.Fatal(err)
	}
	if err := env.wl.AddDir(ctx, good); err != nil {
		t.Fatal(err)
	}

	env.mgr.ingestPass(ctx)

	if env.reg.Len() != 1 {
		t.Fatalf("registry len = %d; good dir not scanned past the bad one", env.reg.Len())
	}
}

func TestSeedRestoresIDSequenceAndHistory(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDispatcher{})
	ctx := context.Background()

	prior := mission.Snapshot{
		ID:         41,
		SourcePath: filepath.Join(env.dir, "old.docx"),
		TargetPath: filepath.Join(env.dir, "old.docx.pdf"),
		Status:     mission.StatusFinish,
		JoinTime:   time.Now().Add(-time.Hour),
		EndTime:    time.Now().Add(-time.Hour),
	}
	if err := env.arch.Append(ctx, prior); err != nil {
		t.Fatal(err)
	}

	if err := env.mgr.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	recent := env.rec.Recent()
	if len(recent) != 1 || recent[0].ID != 41 {
		t.Fatalf("recent after seed = %+v", recent)
	}
	seen, err := env.wl.Seen(ctx, prior.SourcePath)
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("archived source not back in the seen set")
	}

	id, err := env.mgr.ingestFile(ctx, env.sourceFile("new.docx"), env.dir)
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 {
		t.Fatalf("next id = %d, want 42", id)
	}
}
