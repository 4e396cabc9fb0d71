package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"inkwell/internal/logging"
)

// ErrSaturated reports that outstanding work has reached the admissible
// limit. Callers treat it as a no-op and retry on a later scheduling pass.
var ErrSaturated = errors.New("worker pool saturated")

// ErrStopped reports that the pool shut down before the attempt ran.
var ErrStopped = errors.New("worker pool stopped")

// Sizing is a point-in-time view of pool capacity settings.
type Sizing struct {
	Core  int
	Max   int
	Queue int
	Idle  time.Duration
}

// Limit returns the maximum admissible outstanding work.
func (s Sizing) Limit() int {
	return s.Max + s.Queue
}

// Run executes one attempt. The context is canceled on timeout, user cancel,
// or pool shutdown; the handle identifies the attempt to the deadline
// supervisor.
type Run func(ctx context.Context, h *Handle) error

// Done receives the attempt outcome. It is invoked exactly once per accepted
// submission, on a worker goroutine.
type Done func(err error)

type task struct {
	handle *Handle
	run    Run
	done   Done
}

// Pool is a bounded concurrent executor with core/max worker slots and a
// bounded backlog. Workers above the core count exit after the configured
// idle period.
type Pool struct {
	logger *slog.Logger
	sizing func() Sizing
	tasks  chan *task

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	workers int
	stopped bool

	pendingMu sync.Mutex
	pending   map[*Handle]struct{}

	outstanding atomic.Int64
	active      atomic.Int64
}

// New constructs a pool. The backlog channel is allocated from the initial
// sizing; later sizing changes move every other knob live, but an admissible
// limit above the initial allocation is clamped until restart.
func New(sizing func() Sizing, logger *slog.Logger) *Pool {
	initial := sizing()
	backlog := initial.Limit()
	if backlog < 1 {
		backlog = 1
	}
	return &Pool{
		logger:  logging.NewComponentLogger(logger, "pool"),
		sizing:  sizing,
		tasks:   make(chan *task, backlog),
		stopCh:  make(chan struct{}),
		pending: make(map[*Handle]struct{}),
	}
}

// Submit queues one attempt for execution. The returned handle is live
// immediately; run may begin before Submit returns. Saturation is reported
// as ErrSaturated without side effects.
func (p *Pool) Submit(run Run, done Done) (*Handle, error) {
	if run == nil || done == nil {
		return nil, errors.New("pool submit requires run and done")
	}
	s := p.sizing()
	if int(p.outstanding.Load()) >= s.Limit() {
		return nil, ErrSaturated
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, ErrStopped
	}
	t := &task{handle: newHandle(), run: run, done: done}
	p.outstanding.Add(1)
	// Register before the channel send: a worker may receive and settle the
	// task immediately, and settle must find the pending entry to remove.
	p.pendingMu.Lock()
	p.pending[t.handle] = struct{}{}
	p.pendingMu.Unlock()
	select {
	case p.tasks <- t:
	default:
		p.pendingMu.Lock()
		delete(p.pending, t.handle)
		p.pendingMu.Unlock()
		p.outstanding.Add(-1)
		p.mu.Unlock()
		return nil, ErrSaturated
	}
	p.spawnLocked(s)
	p.mu.Unlock()
	return t.handle, nil
}

// spawnLocked starts a worker when the pool is under-provisioned: always up
// to the core count, and up to max while backlog is waiting.
func (p *Pool) spawnLocked(s Sizing) {
	if p.workers >= s.Max {
		return
	}
	if p.workers >= s.Core && len(p.tasks) == 0 {
		return
	}
	p.workers++
	p.wg.Add(1)
	go p.worker()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		s := p.sizing()
		idle := s.Idle
		if idle <= 0 {
			idle = time.Minute
		}
		select {
		case <-p.stopCh:
			p.release()
			return
		case t := <-p.tasks:
			p.execute(t)
		case <-time.After(idle):
			if p.releaseAboveCore(s.Core) {
				return
			}
		}
	}
}

func (p *Pool) release() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}

func (p *Pool) releaseAboveCore(core int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers <= core {
		return false
	}
	p.workers--
	return true
}

func (p *Pool) execute(t *task) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.outstanding.Add(-1)
	}()

	var err error
	if ctxErr := t.handle.ctx.Err(); ctxErr != nil {
		// Canceled while still queued; never run the attempt.
		err = ctxErr
	} else {
		err = p.safeRun(t)
	}
	p.settle(t, err)
}

func (p *Pool) safeRun(t *task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("attempt panicked: %v", rec)
		}
	}()
	return t.run(t.handle.ctx, t.handle)
}

func (p *Pool) settle(t *task, err error) {
	p.pendingMu.Lock()
	delete(p.pending, t.handle)
	p.pendingMu.Unlock()
	t.handle.finish(err)
	p.safeDone(t, err)
}

func (p *Pool) safeDone(t *task, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("completion callback panicked", logging.Any("panic", rec))
		}
	}()
	t.done(err)
}

// Outstanding returns submitted-but-not-completed work (active + queued).
func (p *Pool) Outstanding() int {
	return int(p.outstanding.Load())
}

// Active returns the number of attempts currently executing.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Stop shuts the pool down: running attempts are canceled, queued attempts
// are discarded with ErrStopped, and Stop returns once all workers exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	// Cancel every incomplete attempt, queued or running, so workers drain
	// promptly instead of waiting out long renders.
	p.pendingMu.Lock()
	for h := range p.pending {
		h.Cancel()
	}
	p.pendingMu.Unlock()

	// Discard backlog no worker will pick up, then wait for workers. A
	// worker may race us to a task; channel receive guarantees each task is
	// settled exactly once either way.
	for {
		select {
		case t := <-p.tasks:
			p.settle(t, ErrStopped)
			p.outstanding.Add(-1)
		default:
			p.wg.Wait()
			select {
			case t := <-p.tasks:
				p.settle(t, ErrStopped)
				p.outstanding.Add(-1)
				continue
			default:
			}
			return
		}
	}
}
