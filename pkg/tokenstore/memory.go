package tokenstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Entries older than the TTL are
// treated as absent.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a memory store. A zero ttl keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) MarkInvalid(_ context.Context, e Entry) error {
	if e.MarkedAt.IsZero() {
		e.MarkedAt = s.now()
	}
	s.mu.Lock()
	s.entries[e.Token] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (*Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[token]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
	return nil
}

// List returns live entries ordered by token.
func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for token, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, token)
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) expired(e Entry) bool {
	return s.ttl > 0 && s.now().Sub(e.MarkedAt) > s.ttl
}
