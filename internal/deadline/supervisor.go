package deadline

import (
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/logging"
)

// Canceler is the slice of a dispatch handle the supervisor needs.
type Canceler interface {
	Cancel()
}

// Token identifies one armed timer. The zero Token is never issued.
type Token uint64

// Supervisor arms and disarms per-attempt deadline timers.
type Supervisor struct {
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	timers map[Token]*time.Timer
}

// New returns an empty supervisor.
func New(logger *slog.Logger) *Supervisor {
	return &Supervisor{
		logger: logging.NewComponentLogger(logger, "deadline"),
		timers: make(map[Token]*time.Timer),
	}
}

// Arm schedules cancellation of the handle after d. The returned token must
// be disarmed when the attempt completes on its own.
func (s *Supervisor) Arm(handle Canceler, d time.Duration, missionID int64) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	token := Token(s.seq)
	s.timers[token] = time.AfterFunc(d, func() {
		s.expire(token, handle, missionID, d)
	})
	return token
}

func (s *Supervisor) expire(token Token, handle Canceler, missionID int64, d time.Duration) {
	s.mu.Lock()
	_, live := s.timers[token]
	delete(s.timers, token)
	s.mu.Unlock()
	if !live {
		// Disarm won the race; the attempt already completed.
		return
	}
	s.logger.Info("attempt deadline expired, canceling",
		logging.Int64(logging.FieldMissionID, missionID),
		logging.Duration("deadline", d),
	)
	handle.Cancel()
}

// Disarm stops the timer if it has not fired. Safe to call with an already
// expired or unknown token.
func (s *Supervisor) Disarm(token Token) {
	if token == 0 {
		return
	}
	s.mu.Lock()
	timer, ok := s.timers[token]
	delete(s.timers, token)
	s.mu.Unlock()
	if ok {
		timer.Stop()
	}
}

// Armed returns the number of live timers, for tests and status reporting.
func (s *Supervisor) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
