package scheduler

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"inkwell/internal/fileutil"
	"inkwell/internal/logging"
	"inkwell/internal/mission"
)

// ingestPass scans every watched directory once. Per-directory failures are
// isolated so one unreadable mount never starves the others.
func (m *Manager) ingestPass(ctx context.Context) {
	dirs, err := m.watchlist.Dirs(ctx)
	if err != nil {
		m.logger.Error("ingestion scan could not list watched dirs", logging.Error(err))
		return
	}
	targetDir := m.cfg.Snapshot().Paths.TargetDir

	total := 0
	for _, dir := range dirs {
		added, err := m.ingestDir(ctx, dir, targetDir)
		if err != nil {
			m.logger.Warn("ingestion scan failed for directory",
				logging.String("dir", dir), logging.Error(err))
			continue
		}
		total += added
	}
	if total > 0 {
		m.logger.Info("ingestion scan created missions", logging.Int("count", total))
		go m.admitPass()
	}
}

// ingestDir creates missions for the not-yet-seen supported files directly
// inside dir. Per-file work runs through a bounded errgroup; individual file
// failures are logged and skipped.
func (m *Manager) ingestDir(ctx context.Context, dir, targetDir string) (int, error) {
	files, err := fileutil.ListFiles(dir)
	if err != nil {
		return 0, err
	}

	parallelism := m.cfg.Snapshot().Scheduler.IngestParallelism
	if parallelism < 1 {
		parallelism = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	results := make(chan int64, len(files))
	for _, file := range files {
		file := file
		group.Go(func() error {
			if !m.dispatcher.Supported(file) {
				m.logger.Debug("skipping unsupported file", logging.String("path", file))
				return nil
			}
			seen, err := m.watchlist.Seen(groupCtx, file)
			if err != nil {
				m.logger.Warn("seen check failed", logging.String("path", file), logging.Error(err))
				return nil
			}
			if seen {
				return nil
			}
			id, err := m.ingestFile(groupCtx, file, targetDir)
			if err != nil {
				m.logger.Warn("ingest failed", logging.String("path", file), logging.Error(err))
				return nil
			}
			results <- id
			return nil
		})
	}
	_ = group.Wait()
	close(results)

	added := 0
	for range results {
		added++
	}
	return added, nil
}

// ingestFile marks the source seen, creates the mission, and registers it.
// A source that disappeared since listing gets its seen mark rolled back so a
// later scan retries the file.
func (m *Manager) ingestFile(ctx context.Context, sourcePath, targetDir string) (int64, error) {
	if err := m.watchlist.MarkSeen(ctx, sourcePath); err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	// The file can vanish between the directory listing and here. Roll the
	// seen mark back so the file is ingested normally if it reappears.
	if _, err := os.Stat(sourcePath); err != nil {
		if forgetErr := m.watchlist.ForgetSeen(ctx, sourcePath); forgetErr != nil {
			m.logger.Warn("could not roll back seen mark",
				logging.String("path", sourcePath), logging.Error(forgetErr))
		}
		return 0, fmt.Errorf("stat source: %w", err)
	}

	id := m.nextID()
	created := mission.New(id, sourcePath, fileutil.TargetPath(sourcePath, targetDir))
	m.registry.Put(created)

	m.logger.Info("mission created",
		logging.MissionID(id),
		logging.String("source", sourcePath),
		logging.String("target", created.TargetPath()),
		logging.String("size", fileutil.ReadableSize(created.FileSize())),
	)
	return id, nil
}
