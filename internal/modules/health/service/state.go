package service

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SessionStatus последнее состояние WS-сессии.
type SessionStatus struct {
	State    string    `json:"state"`
	Failures int       `json:"failures"`
	Since    time.Time `json:"since"`
	LastErr  string    `json:"lastError,omitempty"`
}

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastTickUnix atomic.Int64 // unix ms

	mu       sync.RWMutex
	sessions map[string]SessionStatus
}

func NewState() *State {
	return &State{startedAt: time.Now(), sessions: make(map[string]SessionStatus)}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// SetSession фиксирует переход; Since меняется только при смене состояния.
func (s *State) SetSession(name, state string, failures int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.sessions[name]
	st := SessionStatus{State: state, Failures: failures, Since: prev.Since}
	if !ok || prev.State != state {
		st.Since = time.Now()
	}
	if err != nil {
		st.LastErr = err.Error()
	}
	s.sessions[name] = st
}

func (s *State) Sessions() map[string]SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SessionStatus, len(s.sessions))
	for k, v := range s.sessions {
		out[k] = v
	}
	return out
}

// WSConnected все известные сессии открыты.
func (s *State) WSConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return false
	}
	for _, st := range s.sessions {
		if st.State != "open" {
			return false
		}
	}
	return true
}

func (s *State) SessionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.UnixMilli()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
