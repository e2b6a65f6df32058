package mode

import (
	"sync"
	"time"
)

const (
	historyCap  = 50
	historyTrim = 25
)

// State is the live runtime state of the mode machine. Mutation happens
// on the manager's evaluation goroutine; reads may come from the bus
// control handler, so everything is guarded.
type State struct {
	mu sync.RWMutex

	current   string
	previous  string
	enteredAt time.Time

	history []string

	userContext map[string]any
}

// NewState starts the machine in the given mode.
func NewState(initial string, at time.Time) *State {
	return &State{
		current:     initial,
		enteredAt:   at,
		userContext: map[string]any{},
	}
}

// Current returns the active mode name.
func (s *State) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Previous returns the mode active before the last transition.
func (s *State) Previous() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// EnteredAt returns when the current mode became active.
func (s *State) EnteredAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enteredAt
}

// TimeInMode returns how long the current mode has been active.
func (s *State) TimeInMode(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.enteredAt)
}

// History returns a copy of the recorded transitions, oldest first.
// Entries have the form "from->to:reason".
func (s *State) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// record moves the machine to a new mode and appends a history entry.
// When the history exceeds its cap it is trimmed to the most recent
// half so long-lived agents keep a bounded footprint.
func (s *State) record(to, reason string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.current + "->" + to + ":" + reason
	s.previous = s.current
	s.current = to
	s.enteredAt = at
	s.history = append(s.history, entry)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyTrim:]
	}
}

// restore seeds the machine from a persisted snapshot: the previous
// mode and the saved history, subject to the usual cap.
func (s *State) restore(previous string, history []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = previous
	s.history = append(s.history, history...)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyTrim:]
	}
}

// SetContext stores a user-context value consulted by context_aware
// rules and injected into hook contexts.
func (s *State) SetContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userContext[key] = value
}

// Context returns a user-context value and whether it was set.
func (s *State) Context(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.userContext[key]
	return v, ok
}

// ClearContext removes a user-context key.
func (s *State) ClearContext(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userContext, key)
}

// ContextSnapshot returns a copy of the user context.
func (s *State) ContextSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.userContext))
	for k, v := range s.userContext {
		out[k] = v
	}
	return out
}
