package lifecycle

import (
	"sync/atomic"
	"time"
)

// State tracks process phase for the health endpoint and shutdown sequence.
type State struct {
	shuttingDown atomic.Bool
	startedAt    time.Time
}

// New returns a State that started at startedAt.
func New(startedAt time.Time) *State {
	return &State{startedAt: startedAt}
}

// BeginShutdown flags the process as draining. Call when SIGTERM/SIGINT is received;
// /health answers 503 shutting-down from then on.
func (s *State) BeginShutdown() {
	s.shuttingDown.Store(true)
}

// ShuttingDown reports whether the process is draining and should not receive new traffic.
func (s *State) ShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Uptime returns the time elapsed since start, truncated to whole seconds.
func (s *State) Uptime(now time.Time) time.Duration {
	return now.Sub(s.startedAt).Truncate(time.Second)
}
