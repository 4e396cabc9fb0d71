package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"

	"inkwell/internal/logging"
	"inkwell/internal/mission"
	"inkwell/internal/pool"
	"inkwell/internal/render"
)

// completion classifies one attempt outcome. It runs exactly once per
// accepted submission, on a pool worker. The deadline is disarmed first,
// unconditionally, so a stale timer can never cancel a later attempt.
func (m *Manager) completion(target *mission.Mission, att *attempt, err error) {
	m.deadlines.Disarm(att.token)
	id := target.ID()

	switch {
	case err == nil:
		if terr := target.Transition(mission.StatusFinish); terr != nil {
			// Canceled at the finish line; the cancel wins.
			m.finalize(target)
			return
		}
		m.logger.Info("mission finished", logging.MissionID(id),
			logging.String("target", target.TargetPath()))
		m.finalize(target)

	case errors.Is(err, pool.ErrStopped):
		// Shutdown drained the attempt before it ran. In-flight state is not
		// persisted; the mission is simply abandoned with the process.
		m.dropHandle(id)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if target.Status() == mission.StatusCancel {
			// User cancel: already terminal, not a failure.
			m.removeTarget(target)
			m.finalize(target)
			return
		}
		if m.stopping.Load() {
			m.dropHandle(id)
			return
		}
		m.retryOrFail(target, fmt.Sprintf("Timeout after %s", att.deadline))

	case errors.Is(err, render.ErrUnsupportedType):
		m.fail(target, err.Error())

	case render.IsRetriable(err):
		m.retryOrFail(target, err.Error())

	default:
		m.logger.Error("unclassified fault", logging.MissionID(id), logging.Error(err))
		m.fail(target, err.Error())
	}
}

// retryOrFail records a retriable fault: another attempt while the retry
// budget lasts, terminal ERROR once it is spent.
func (m *Manager) retryOrFail(target *mission.Mission, faultMsg string) {
	maxRetries := m.cfg.Snapshot().Convert.MaxRetries
	if target.RetryCount() < maxRetries {
		if err := target.MarkRetry(faultMsg); err != nil {
			// Raced with a cancel; finalize with the status that won.
			m.finalize(target)
			return
		}
		m.registry.Requeue(target.ID())
		m.dropHandle(target.ID())
		m.removeTarget(target)
		m.logger.Warn("attempt failed, will retry",
			logging.MissionID(target.ID()),
			logging.Int("retries", target.RetryCount()),
			logging.String("fault", faultMsg),
		)
		return
	}
	m.fail(target, faultMsg)
}

// fail drives a mission to terminal ERROR with the fault recorded.
func (m *Manager) fail(target *mission.Mission, faultMsg string) {
	target.AppendError(faultMsg)
	if err := target.Transition(mission.StatusError); err != nil {
		// Raced with a cancel; CANCEL is terminal too, record as-is.
		m.logger.Debug("error transition lost to cancel", logging.MissionID(target.ID()))
	}
	m.removeTarget(target)
	m.logger.Error("mission failed",
		logging.MissionID(target.ID()),
		logging.Int("retries", target.RetryCount()),
		logging.String("fault", faultMsg),
	)
	m.finalize(target)
}

// finalize hands a terminal mission to the recorder. The handle entry goes
// first, then the registry slot, then the durable record.
func (m *Manager) finalize(target *mission.Mission) {
	m.recorder.Record(context.Background(), target, func() { m.dropHandle(target.ID()) })
}

// removeTarget clears a partial output so failed and canceled conversions
// leave nothing behind.
func (m *Manager) removeTarget(target *mission.Mission) {
	if err := os.Remove(target.TargetPath()); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("could not remove partial output",
			logging.MissionID(target.ID()), logging.Error(err))
	}
}
