// Package store provides state persistence backends for the orchestrator.
// Every backend implements orchestrator.StateStore: Load returns (nil, nil)
// when no prior state exists, and corrupt persisted data is treated as no
// prior state rather than an error.
package store

import (
	"context"
	"sync"

	"github.com/ponderlab/ponder/internal/orchestrator"
)

// MemoryStore keeps agent states in a mutex-guarded map. Intended for tests
// and ephemeral runs.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*orchestrator.AgentState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*orchestrator.AgentState)}
}

// Load implements orchestrator.StateStore.
func (s *MemoryStore) Load(ctx context.Context, agentID string) (*orchestrator.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[agentID]
	if !ok {
		return nil, nil
	}
	// Hand out a copy so a caller mutating the state cannot race another
	// load of the same agent.
	clone := *state
	clone.Turns = append([]orchestrator.AgentTurn(nil), state.Turns...)
	return &clone, nil
}

// Save implements orchestrator.StateStore.
func (s *MemoryStore) Save(ctx context.Context, agentID string, state *orchestrator.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *state
	clone.Turns = append([]orchestrator.AgentTurn(nil), state.Turns...)
	s.states[agentID] = &clone
	return nil
}
