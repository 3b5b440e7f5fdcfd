package store

import (
	"context"
	"sync"
)

// MemoryStatusStore keeps statuses in process, for embedders that read
// status from the same process and for tests.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]CrawlStatus
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]CrawlStatus)}
}

func (s *MemoryStatusStore) SetStatus(_ context.Context, status CrawlStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.SessionID] = status
	return nil
}

func (s *MemoryStatusStore) GetStatus(_ context.Context, sessionID string) (CrawlStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[sessionID]
	return status, ok, nil
}
