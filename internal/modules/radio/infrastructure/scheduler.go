package infrastructure

import (
	"sync"
	"time"

	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
)

// TimerScheduler runs functions after a delay using runtime timers.
// Stop cancels every function that has not fired yet.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

// NewTimerScheduler creates a new TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[*time.Timer]struct{}),
	}
}

// Schedule calls fn on its own goroutine once delay has elapsed.
// Calls after Stop are ignored.
func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, pending := s.timers[timer]
		delete(s.timers, timer)
		s.mu.Unlock()

		if pending {
			fn()
		}
	})
	s.timers[timer] = struct{}{}
}

// Pending returns the number of functions that have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

// Stop cancels all pending functions. It is safe to call multiple times.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for timer := range s.timers {
		timer.Stop()
		delete(s.timers, timer)
	}
}

// Ensure TimerScheduler implements ports.Scheduler.
var _ ports.Scheduler = (*TimerScheduler)(nil)
