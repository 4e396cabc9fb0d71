package mission

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrBadTransition reports a status change the state machine forbids.
var ErrBadTransition = errors.New("illegal status transition")

// Mission is one tracked conversion request and its attempt history. Identity
// and paths are immutable after creation; the mutable lifecycle fields are
// guarded because completion callbacks, the admission scan, and status
// reporting all touch a mission concurrently.
type Mission struct {
	id         int64
	sourcePath string
	targetPath string
	fileSize   int64
	joinTime   time.Time

	mu         sync.Mutex
	startTime  time.Time
	endTime    time.Time
	status     Status
	retryCount int
	errorLog   []string
}

// New creates a mission in WAIT_OUTSIDE for the given source and derived
// target path. The source file size is captured at creation; a vanished file
// records size zero and fails later at render time.
func New(id int64, sourcePath, targetPath string) *Mission {
	var size int64
	if info, err := os.Stat(sourcePath); err == nil {
		size = info.Size()
	}
	return &Mission{
		id:         id,
		sourcePath: sourcePath,
		targetPath: targetPath,
		fileSize:   size,
		joinTime:   time.Now(),
		status:     StatusWaitOutside,
	}
}

// ID returns the mission id. Ids are assigned once and never reused.
func (m *Mission) ID() int64 { return m.id }

// SourcePath returns the file being converted.
func (m *Mission) SourcePath() string { return m.sourcePath }

// TargetPath returns the conversion output path, derived once at creation.
func (m *Mission) TargetPath() string { return m.targetPath }

// FileSize returns the source size in bytes at creation time.
func (m *Mission) FileSize() int64 { return m.fileSize }

// JoinTime returns when the mission entered the system.
func (m *Mission) JoinTime() time.Time { return m.joinTime }

// Status returns the current lifecycle state.
func (m *Mission) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RetryCount returns how many attempts have failed so far.
func (m *Mission) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// Transition moves the mission to the requested status, enforcing the state
// machine. Terminal statuses additionally stamp the end time.
func (m *Mission) Transition(to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

func (m *Mission) transitionLocked(to Status) error {
	if !transitionAllowed(m.status, to) {
		return fmt.Errorf("%w: %s -> %s (mission %d)", ErrBadTransition, m.status, to, m.id)
	}
	m.status = to
	if to.Terminal() {
		m.endTime = time.Now()
	}
	return nil
}

// BeginAttempt marks the mission RUN and refreshes the start time. Retried
// attempts overwrite the previous start time.
func (m *Mission) BeginAttempt() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(StatusRun); err != nil {
		return err
	}
	m.startTime = time.Now()
	return nil
}

// AbortAdmission returns a WAIT_IN_POOL mission to its pre-admission state
// after the pool rejected the submit. The rejection is a no-op for the
// mission: no attempt ran, nothing is logged, and a later scheduling pass
// picks it up again.
func (m *Mission) AbortAdmission(previous Status) error {
	if previous != StatusWaitOutside && previous != StatusRetry {
		return fmt.Errorf("%w: cannot abort admission back to %s", ErrBadTransition, previous)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusWaitInPool {
		return fmt.Errorf("%w: abort admission from %s (mission %d)", ErrBadTransition, m.status, m.id)
	}
	m.status = previous
	return nil
}

// MarkRetry records a failed attempt: status RETRY, retry count incremented,
// and the fault message appended to the error log if it is new.
func (m *Mission) MarkRetry(faultMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(StatusRetry); err != nil {
		return err
	}
	m.retryCount++
	m.appendErrorLocked(faultMsg)
	return nil
}

// AppendError adds a distinct fault message to the error log. Duplicate
// messages across attempts are dropped so the log stays diagnosable.
func (m *Mission) AppendError(faultMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErrorLocked(faultMsg)
}

func (m *Mission) appendErrorLocked(faultMsg string) {
	faultMsg = strings.TrimSpace(faultMsg)
	if faultMsg == "" {
		return
	}
	for _, existing := range m.errorLog {
		if existing == faultMsg {
			return
		}
	}
	m.errorLog = append(m.errorLog, faultMsg)
}

// ErrorLog returns the distinct fault messages joined for display.
func (m *Mission) ErrorLog() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.errorLog, "\n")
}

// Snapshot is an immutable view of a mission for status reporting.
type Snapshot struct {
	ID         int64
	SourcePath string
	TargetPath string
	FileSize   int64
	JoinTime   time.Time
	StartTime  time.Time
	EndTime    time.Time
	Status     Status
	RetryCount int
	Errors     string
}

// Snapshot captures a consistent view of the mission under its lock.
func (m *Mission) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ID:         m.id,
		SourcePath: m.sourcePath,
		TargetPath: m.targetPath,
		FileSize:   m.fileSize,
		JoinTime:   m.joinTime,
		StartTime:  m.startTime,
		EndTime:    m.endTime,
		Status:     m.status,
		RetryCount: m.retryCount,
		Errors:     strings.Join(m.errorLog, "\n"),
	}
}
