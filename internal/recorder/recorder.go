package recorder

import (
	"context"
	"log/slog"
	"sync"

	"inkwell/internal/logging"
	"inkwell/internal/mission"
	"inkwell/internal/registry"
)

// Archive is the durable sink for terminal mission records.
type Archive interface {
	Append(ctx context.Context, snap mission.Snapshot) error
}

// Recorder finalizes missions that reached a terminal status.
type Recorder struct {
	logger   *slog.Logger
	registry *registry.Registry
	archive  Archive
	limit    func() int

	mu     sync.Mutex
	recent []mission.Snapshot
}

// New builds a recorder. limit bounds the in-memory recent view and is
// consulted per record so config reloads apply live.
func New(reg *registry.Registry, archive Archive, limit func() int, logger *slog.Logger) *Recorder {
	if limit == nil {
		limit = func() int { return 50 }
	}
	return &Recorder{
		logger:   logging.NewComponentLogger(logger, "recorder"),
		registry: reg,
		archive:  archive,
		limit:    limit,
	}
}

// Record finalizes one terminal mission. dropHandle tears down the dispatch
// handle and runs strictly before the registry removal so no observer can see
// a registered mission without its handle entry already gone. The archive
// write happens last; a write failure is logged and the mission is not put
// back, so persistence is at most once.
func (r *Recorder) Record(ctx context.Context, m *mission.Mission, dropHandle func()) {
	if m == nil {
		return
	}
	if dropHandle != nil {
		dropHandle()
	}
	removed := r.registry.CompareAndRemove(m.ID(), m)
	if !removed {
		// A stale completion for an attempt the registry no longer tracks.
		r.logger.Debug("skipping stale terminal record", logging.MissionID(m.ID()))
		return
	}

	snap := m.Snapshot()
	r.remember(snap)

	if err := r.archive.Append(ctx, snap); err != nil {
		r.logger.Error("archive write failed; record dropped",
			logging.MissionID(snap.ID),
			logging.String("status", string(snap.Status)),
			logging.Error(err),
		)
		return
	}
	r.logger.Info("mission archived",
		logging.MissionID(snap.ID),
		logging.String("status", string(snap.Status)),
		logging.Int("retries", snap.RetryCount),
	)
}

// Seed preloads the recent view, oldest first. Used at startup to restore
// history from the archive.
func (r *Recorder) Seed(snaps []mission.Snapshot) {
	for _, snap := range snaps {
		r.remember(snap)
	}
}

// Recent returns the most recently finalized missions, newest first.
func (r *Recorder) Recent() []mission.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mission.Snapshot, len(r.recent))
	for i, snap := range r.recent {
		out[len(r.recent)-1-i] = snap
	}
	return out
}

func (r *Recorder) remember(snap mission.Snapshot) {
	limit := r.limit()
	if limit <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, snap)
	if excess := len(r.recent) - limit; excess > 0 {
		r.recent = append(r.recent[:0], r.recent[excess:]...)
	}
}
