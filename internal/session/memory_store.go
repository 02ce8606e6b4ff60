package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

// MemoryStore is the single-process session backend used when no Redis URL
// is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, sessionID)
		return nil, nil
	}
	data := entry.data
	return &data, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if data.CreatedAt.IsZero() {
		data.CreatedAt = now.UTC()
	}
	s.entries[sessionID] = memoryEntry{data: data, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
