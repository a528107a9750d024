package session

import (
	"context"
	"sync"
)

// State is the per-user session overlay: which channel or DM thread is
// current, plus the thread panel state. It survives reloads through the
// StateStore but is otherwise ephemeral.
type State struct {
	CurrentChannel     string `json:"current_channel"`
	CurrentChannelName string `json:"current_channel_name"`
	ThreadOpen         bool   `json:"thread_open"`
	PostID             string `json:"post_id"`
}

// StateStore persists session state across reloads. A missing entry is not
// an error; Get returns the zero State.
type StateStore interface {
	Get(ctx context.Context, userID string) (State, error)
	Save(ctx context.Context, userID string, state State) error
	Clear(ctx context.Context, userID string) error
}

// MemoryStateStore is the in-process StateStore used in tests and when no
// Valkey address is configured.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]State)}
}

var _ StateStore = (*MemoryStateStore)(nil)

func (s *MemoryStateStore) Get(_ context.Context, userID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID], nil
}

func (s *MemoryStateStore) Save(_ context.Context, userID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state
	return nil
}

func (s *MemoryStateStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}
