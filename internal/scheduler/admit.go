package scheduler

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/deadline"
	"inkwell/internal/logging"
	"inkwell/internal/mission"
	"inkwell/internal/pool"
)

// attempt carries per-attempt bookkeeping between the run closure and the
// completion callback. The pool runs them sequentially on one worker, so no
// locking is needed.
type attempt struct {
	token    deadline.Token
	deadline time.Duration
}

// admitPass walks the registry in admission order and submits waiting
// missions while pool capacity remains. Passes are serialized so the
// capacity check stays honest against concurrent kicks.
func (m *Manager) admitPass() {
	m.admitMu.Lock()
	defer m.admitMu.Unlock()

	capacity := m.cfg.Snapshot().Pool.Capacity()
	for _, candidate := range m.registry.Values() {
		if m.pool.Outstanding() >= capacity {
			// Capacity exhausted; the rest of the pass would only spin.
			return
		}
		status := candidate.Status()
		if status != mission.StatusWaitOutside && status != mission.StatusRetry {
			continue
		}
		m.admit(candidate, status)
	}
}

// admit moves one mission into the pool. A rejected submit rolls the status
// back so the mission is picked up again on a later pass.
func (m *Manager) admit(target *mission.Mission, previous mission.Status) {
	if err := target.Transition(mission.StatusWaitInPool); err != nil {
		// Canceled between the status check and here.
		return
	}

	// The run closure waits for the handle to be registered before touching
	// the mission, so a completion can never observe a missing handle entry.
	ready := make(chan struct{})
	att := &attempt{}

	run := func(ctx context.Context, h *pool.Handle) error {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := target.BeginAttempt(); err != nil {
			// Canceled before the attempt started.
			return context.Canceled
		}
		cfg := m.cfg.Snapshot()
		base := time.Duration(cfg.Convert.TimeoutSeconds) * time.Second
		att.deadline = base * time.Duration(target.RetryCount()+1)
		att.token = m.deadlines.Arm(h, att.deadline, target.ID())

		m.logger.Info("attempt started",
			logging.MissionID(target.ID()),
			logging.Int("attempt", target.RetryCount()+1),
			logging.Duration("deadline", att.deadline),
		)
		return m.dispatcher.Dispatch(ctx, target.SourcePath(), target.TargetPath())
	}
	done := func(err error) {
		m.completion(target, att, err)
	}

	handle, err := m.pool.Submit(run, done)
	if err != nil {
		if abortErr := target.AbortAdmission(previous); abortErr != nil {
			m.logger.Error("admission rollback failed",
				logging.MissionID(target.ID()), logging.Error(abortErr))
		}
		if errors.Is(err, pool.ErrSaturated) {
			m.logger.Debug("pool saturated during admission", logging.MissionID(target.ID()))
		} else {
			m.logger.Warn("submit failed", logging.MissionID(target.ID()), logging.Error(err))
		}
		return
	}
	m.storeHandle(target.ID(), handle)
	close(ready)
}
