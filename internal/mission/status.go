package mission

// Status represents the lifecycle of a mission.
type Status string

const (
	// StatusWaitOutside marks a mission created but not yet admitted.
	StatusWaitOutside Status = "WAIT_OUTSIDE"
	// StatusWaitInPool marks a mission submitted to the worker pool.
	StatusWaitInPool Status = "WAIT_IN_POOL"
	// StatusRun marks a mission whose attempt is executing.
	StatusRun Status = "RUN"
	// StatusFinish is the terminal success state.
	StatusFinish Status = "FINISH"
	// StatusRetry marks a failed attempt waiting for re-admission.
	StatusRetry Status = "RETRY"
	// StatusError is the terminal failure state.
	StatusError Status = "ERROR"
	// StatusCancel is the terminal user-cancellation state.
	StatusCancel Status = "CANCEL"
)

var allStatuses = []Status{
	StatusWaitOutside,
	StatusWaitInPool,
	StatusRun,
	StatusFinish,
	StatusRetry,
	StatusError,
	StatusCancel,
}

// Valid reports whether s is one of the seven defined statuses.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinish, StatusError, StatusCancel:
		return true
	}
	return false
}

// transitions is the closed set of allowed status changes. Cancellation is
// handled separately because it is reachable from any non-terminal state.
var transitions = map[Status][]Status{
	StatusWaitOutside: {StatusWaitInPool},
	StatusWaitInPool:  {StatusRun, StatusError},
	StatusRun:         {StatusFinish, StatusRetry, StatusError},
	StatusRetry:       {StatusWaitInPool},
}

func transitionAllowed(from, to Status) bool {
	if to == StatusCancel {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
