package agent

import "sync"

// State tracks the mutable control surface of a running agent: whether a
// stop has been forced, and how many actions in a row have failed. It is
// shared between the agent loop and the orchestrator's kill path, so all
// access goes through the mutex.
type State struct {
	mu       sync.Mutex
	stopped  bool
	failures int
}

// NewState returns a fresh state.
func NewState() *State {
	return &State{}
}

// ForceStop marks the agent for termination. The loop observes the flag at
// its next step boundary; ForceStop itself never blocks.
func (s *State) ForceStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Stopped reports whether a stop has been forced.
func (s *State) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// RecordFailure increments the consecutive-failure count and returns it.
func (s *State) RecordFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	return s.failures
}

// ResetFailures clears the consecutive-failure count after a successful
// action.
func (s *State) ResetFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
}

// Failures returns the current consecutive-failure count.
func (s *State) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}
