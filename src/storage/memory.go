package storage

import "sync"

// -----------------------------------------------------------------------------

// MemorySubscriptionStore keeps connection filters in process memory.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string][]string
}

// -----------------------------------------------------------------------------

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: make(map[string][]string)}
}

// -----------------------------------------------------------------------------

func (s *MemorySubscriptionStore) SaveSubscription(connID string, tickers []string) error {
	cp := make([]string, len(tickers))
	copy(cp, tickers)

	s.mu.Lock()
	s.subs[connID] = cp
	s.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

func (s *MemorySubscriptionStore) LoadSubscription(connID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs[connID], nil
}

// -----------------------------------------------------------------------------

func (s *MemorySubscriptionStore) DeleteSubscription(connID string) error {
	s.mu.Lock()
	delete(s.subs, connID)
	s.mu.Unlock()
	return nil
}
