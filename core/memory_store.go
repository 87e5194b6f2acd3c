package core

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps pending codes in process. Expired entries stay until the
// next lookup or overwrite.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		data: make(map[string]Entry),
		now:  now,
	}
}

func (s *MemoryStore) Put(_ context.Context, accountID, code string, ttl time.Duration) (Entry, error) {
	e := Entry{
		AccountID: accountID,
		Code:      code,
		ExpiresAt: s.now().Add(ttl),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[accountID] = e
	return e, nil
}

func (s *MemoryStore) Get(_ context.Context, accountID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[accountID]
	if !ok {
		return nil, ErrNoRequestFound
	}
	return &e, nil
}

func (s *MemoryStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, accountID)
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, accountID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[accountID]
	if !ok || e.Code != code {
		return false, nil
	}
	delete(s.data, accountID)
	return true, nil
}

// Len returns the number of entries held, live or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
