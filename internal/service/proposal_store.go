package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	proposalKeyPrefix = "timetable:proposal:"
	jobKeyPrefix      = "timetable:job:"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// documentStore keeps short-lived JSON documents (proposals, job states) in Redis
// through the cache service, falling back to process memory when caching is off.
type documentStore struct {
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	items map[string]memoryEntry
}

func newDocumentStore(cache *CacheService, logger *zap.Logger) *documentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentStore{cache: cache, logger: logger, now: time.Now, items: make(map[string]memoryEntry)}
}

func (s *documentStore) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.cache.Enabled() {
		return s.cache.Set(ctx, key, value, ttl)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	return nil
}

// Load decodes the document into dest and reports whether it was found.
func (s *documentStore) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.cache.Enabled() {
		return s.cache.Get(ctx, key, dest)
	}
	s.mu.Lock()
	entry, ok := s.items[key]
	if ok && !s.now().Before(entry.expiresAt) {
		delete(s.items, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *documentStore) Delete(ctx context.Context, key string) {
	if s.cache.Enabled() {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to drop cached document", zap.String("key", key), zap.Error(err))
		}
		return
	}
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Sweep drops expired in-memory documents and returns how many were removed.
func (s *documentStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, entry := range s.items {
		if !now.Before(entry.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}
