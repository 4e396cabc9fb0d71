package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"inkwell/internal/logging"
	"inkwell/internal/mission"
	"inkwell/internal/registry"
)

type memoryArchive struct {
	mu      sync.Mutex
	records []mission.Snapshot
	err     error
}

func (a *memoryArchive) Append(_ context.Context, snap mission.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, snap)
	return nil
}

func (a *memoryArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

func newFinishedMission(t *testing.T, id int64) *mission.Mission {
	t.Helper()
	source := filepath.Join(t.TempDir(), "doc.docx")
	if err := os.WriteFile(source, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := mission.New(id, source, source+".pdf")
	if err := m.Transition(mission.StatusWaitInPool); err != nil {
		t.Fatal(err)
	}
	if err := m.BeginAttempt(); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(mission.StatusFinish); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRecordFinalizesMission(t *testing.T) {
	reg := registry.New()
	store := &memoryArchive{}
	rec := New(reg, store, nil, logging.NewNop())

	m := newFinishedMission(t, 1)
	reg.Put(m)

	var handleDropped bool
	rec.Record(context.Background(), m, func() {
		handleDropped = true
		if reg.Get(1) == nil {
			t.Error("registry entry removed before handle teardown")
		}
	})

	if !handleDropped {
		t.Fatal("handle teardown not invoked")
	}
	if reg.Get(1) != nil {
		t.Fatal("mission still registered")
	}
	if store.count() != 1 {
		t.Fatalf("archive records = %d", store.count())
	}
	recent := rec.Recent()
	if len(recent) != 1 || recent[0].ID != 1 {
		t.Fatalf("recent view = %+v", recent)
	}
}

func TestRecordStaleCompletionIsNoOp(t *testing.T) {
	reg := registry.New()
	store := &memoryArchive{}
	rec := New(reg, store, nil, logging.NewNop())

	stale := newFinishedMission(t, 2)
	replacement := newFinishedMission(t, 2)
	reg.Put(replacement)

	rec.Record(context.Background(), stale, nil)

	if reg.Get(2) != replacement {
		t.Fatal("replacement mission evicted by stale completion")
	}
	if store.count() != 0 {
		t.Fatal("stale completion reached the archive")
	}
	if len(rec.Recent()) != 0 {
		t.Fatal("stale completion entered the recent view")
	}
}

func TestArchiveFailureIsAtMostOnce(t *testing.T) {
	reg := registry.New()
	store := &memoryArchive{err: errors.New("disk full")}
	rec := New(reg, store, nil, logging.NewNop())

	m := newFinishedMission(t, 3)
	reg.Put(m)
	rec.Record(context.Background(), m, nil)

	if reg.Get(3) != nil {
		t.Fatal("mission re-inserted after archive failure")
	}
	if store.count() != 0 {
		t.Fatal("record persisted despite failure")
	}
	// The outcome still shows in the recent view for operators.
	if len(rec.Recent()) != 1 {
		t.Fatal("recent view lost the outcome")
	}
}

func TestRecentViewIsBoundedNewestFirst(t *testing.T) {
	reg := registry.New()
	store := &memoryArchive{}
	rec := New(reg, store, func() int { return 3 }, logging.NewNop())

	for id := int64(1); id <= 5; id++ {
		m := newFinishedMission(t, id)
		reg.Put(m)
		rec.Record(context.Background(), m, nil)
	}

	recent := rec.Recent()
	if len(recent) != 3 {
		t.Fatalf("recent view size = %d", len(recent))
	}
	if recent[0].ID != 5 || recent[1].ID != 4 || recent[2].ID != 3 {
		t.Fatalf("recent view order = %d, %d, %d", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestSeedRestoresHistory(t *testing.T) {
	rec := New(registry.New(), &memoryArchive{}, nil, logging.NewNop())
	rec.Seed([]mission.Snapshot{
		{ID: 10, Status: mission.StatusFinish},
		{ID: 11, Status: mission.StatusError},
	})

	recent := rec.Recent()
	if len(recent) != 2 || recent[0].ID != 11 {
		t.Fatalf("seeded view = %+v", recent)
	}
}
