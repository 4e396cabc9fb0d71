package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"inkwell/internal/mission"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSnapshot(id int64, status mission.Status) mission.Snapshot {
	now := time.Now()
	return mission.Snapshot{
		ID:         id,
		SourcePath: "/incoming/report.docx",
		TargetPath: "/converted/report.docx.pdf",
		FileSize:   2048,
		JoinTime:   now.Add(-time.Minute),
		StartTime:  now.Add(-30 * time.Second),
		EndTime:    now,
		Status:     status,
		RetryCount: 2,
		Errors:     "word render failed: exit status 1",
	}
}

func TestAppendAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, sampleSnapshot(1, mission.StatusFinish)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, sampleSnapshot(2, mission.StatusError)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, sampleSnapshot(3, mission.StatusCancel)); err != nil {
		t.Fatal(err)
	}

	snaps, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Recent(2) returned %d records", len(snaps))
	}
	if snaps[0].ID != 3 || snaps[1].ID != 2 {
		t.Fatalf("unexpected order: %d, %d", snaps[0].ID, snaps[1].ID)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("Recent(0) returned %d records", len(all))
	}
}

func TestAppendPreservesFields(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := sampleSnapshot(7, mission.StatusError)
	if err := store.Append(ctx, want); err != nil {
		t.Fatal(err)
	}

	snaps, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := snaps[0]
	if got.ID != want.ID || got.SourcePath != want.SourcePath || got.TargetPath != want.TargetPath {
		t.Fatalf("identity fields mangled: %+v", got)
	}
	if got.Status != mission.StatusError || got.RetryCount != 2 || got.FileSize != 2048 {
		t.Fatalf("lifecycle fields mangled: %+v", got)
	}
	if got.Errors != want.Errors {
		t.Fatalf("error log mangled: %q", got.Errors)
	}
	if !got.EndTime.Equal(want.EndTime.Truncate(0)) && got.EndTime.Unix() != want.EndTime.Unix() {
		t.Fatalf("end time mangled: %v vs %v", got.EndTime, want.EndTime)
	}
}

func TestDuplicateAppendRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, sampleSnapshot(1, mission.StatusFinish)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, sampleSnapshot(1, mission.StatusError)); err == nil {
		t.Fatal("duplicate id accepted")
	}
}

func TestSourcePathsAndMaxID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	max, err := store.MaxID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if max != 0 {
		t.Fatalf("empty archive MaxID = %d", max)
	}

	a := sampleSnapshot(4, mission.StatusFinish)
	a.SourcePath = "/incoming/a.doc"
	b := sampleSnapshot(9, mission.StatusFinish)
	b.SourcePath = "/incoming/b.xlsx"
	if err := store.Append(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, b); err != nil {
		t.Fatal(err)
	}

	paths, err := store.SourcePaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("SourcePaths = %v", paths)
	}

	max, err = store.MaxID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if max != 9 {
		t.Fatalf("MaxID = %d", max)
	}
}

func TestArchiveSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	store, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, sampleSnapshot(1, mission.StatusFinish)); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	snaps, err := reopened.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].ID != 1 {
		t.Fatalf("archive lost across reopen: %+v", snaps)
	}
}
