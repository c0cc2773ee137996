// Package population holds the agents of one simulated day and their
// per-agent visibility flags.
//
// Visibility is display state only. It never changes what the timeline
// functions resolve for an agent.
package population

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/daysim/internal/agents"
)

var (
	ErrUnknownAgent   = errors.New("unknown agent")
	ErrDuplicateAgent = errors.New("duplicate agent id")
)

// Store is a population keyed by agent id, with creation order preserved.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	order   []*agents.Agent
	index   map[agents.AgentID]*agents.Agent
	visible map[agents.AgentID]bool
}

// New builds a store from agents in creation order. Every agent starts visible.
func New(list []*agents.Agent) (*Store, error) {
	s := &Store{
		order:   make([]*agents.Agent, 0, len(list)),
		index:   make(map[agents.AgentID]*agents.Agent, len(list)),
		visible: make(map[agents.AgentID]bool, len(list)),
	}
	for _, a := range list {
		if a == nil || a.ID == "" {
			return nil, fmt.Errorf("%w: empty id", ErrUnknownAgent)
		}
		if _, dup := s.index[a.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAgent, a.ID)
		}
		s.order = append(s.order, a)
		s.index[a.ID] = a
		s.visible[a.ID] = true
	}
	return s, nil
}

// Len returns the number of agents.
func (s *Store) Len() int {
	return len(s.order)
}

// ListAgents returns agents in creation order. The slice is a copy.
func (s *Store) ListAgents() []*agents.Agent {
	out := make([]*agents.Agent, len(s.order))
	copy(out, s.order)
	return out
}

// Agent looks up an agent by id.
func (s *Store) Agent(id agents.AgentID) (*agents.Agent, bool) {
	a, ok := s.index[id]
	return a, ok
}

// IsVisible reports whether an agent is shown. Members default to visible;
// ids outside the population are never visible.
func (s *Store) IsVisible(id agents.AgentID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible[id]
}

// ToggleVisibility flips an agent's flag and returns the new value.
func (s *Store) ToggleVisibility(id agents.AgentID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownAgent, id)
	}
	s.visible[id] = !s.visible[id]
	return s.visible[id], nil
}

// SetVisibility sets an agent's flag explicitly.
func (s *Store) SetVisibility(id agents.AgentID, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, id)
	}
	s.visible[id] = visible
	return nil
}

// VisibleCount returns how many agents are currently shown.
func (s *Store) VisibleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, v := range s.visible {
		if v {
			n++
		}
	}
	return n
}
