package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/city-weather-gateway/internal/models"
)

// Store is the backing map for weather entries. Freshness is decided by
// WeatherCache, not by the store: retention is only a housekeeping hint for
// remote backends and may be ignored.
type Store interface {
	Get(ctx context.Context, key string) (models.WeatherEntry, bool, error)
	// SetMulti writes the same entry under every key.
	SetMulti(ctx context.Context, keys []string, entry models.WeatherEntry, retention time.Duration) error
}

// InMemoryStore implements Store with a process-local map.
// Entries are overwritten in place and never removed.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]models.WeatherEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]models.WeatherEntry),
	}
}

// Get returns the entry for key regardless of its age.
func (s *InMemoryStore) Get(ctx context.Context, key string) (models.WeatherEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[key]
	return entry, ok, nil
}

// SetMulti writes entry under every key while holding the lock, so readers
// never observe one key updated without the others.
func (s *InMemoryStore) SetMulti(ctx context.Context, keys []string, entry models.WeatherEntry, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.data[k] = entry
	}
	return nil
}

// Len returns the number of stored keys.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
