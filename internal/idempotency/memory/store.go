package memory

import (
	"context"
	"sync"
)

// Store tracks processed webhook event ids in memory. Suitable for local
// development; durability across restarts requires the postgres or redis store.
type Store struct {
	mu     sync.RWMutex
	events map[string]string
}

// NewStore creates a new in-memory processed-events ledger.
func NewStore() *Store {
	return &Store{events: make(map[string]string)}
}

// Processed reports whether an event id has already completed reconciliation.
func (s *Store) Processed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[eventID]
	return ok, nil
}

// Mark records an event id as processed for the given order.
func (s *Store) Mark(_ context.Context, eventID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[eventID] = orderID
	return nil
}
