package pool

import (
	"context"
	"sync"
)

// Handle is the cancelable in-flight reference for one submitted attempt.
// Cancel is idempotent and may race with natural completion; whichever
// happens first wins and the completion callback still runs exactly once.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc

	once   sync.Once
	doneCh chan struct{}

	mu  sync.Mutex
	err error
}

func newHandle() *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
}

// Cancel requests cooperative cancellation of the attempt. Safe to call any
// number of times, before or after the attempt starts.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the attempt has fully completed (run returned, or the
// attempt was discarded before running).
func (h *Handle) Done() <-chan struct{} {
	return h.doneCh
}

// Completed reports whether the attempt has finished.
func (h *Handle) Completed() bool {
	select {
	case <-h.doneCh:
		return true
	default:
		return false
	}
}

// Err returns the attempt outcome once Done is closed; nil means success.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) finish(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		h.cancel()
		close(h.doneCh)
	})
}
