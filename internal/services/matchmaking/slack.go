package matchmaking

import (
	"sync"
	"time"

	"github.com/mcoot/dicemeister/internal/dependencies/clock"
)

// SlackClock measures time since the last successful match
type SlackClock struct {
	mu    sync.Mutex
	clock clock.Clock
	start time.Time
}

// NewSlackClock starts a slack clock at the current time
func NewSlackClock(c clock.Clock) *SlackClock {
	return &SlackClock{clock: c, start: c.Now()}
}

// Elapsed returns the time since the clock was last reset
func (s *SlackClock) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.start)
}

// Reset restarts the clock from zero
func (s *SlackClock) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = s.clock.Now()
}
