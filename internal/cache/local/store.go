// Package local holds recently read scalar payloads in process memory.
package local

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

// Store is a size-bounded near cache keyed by Redis key. Entries expire after
// the configured TTL, which bounds how stale a read can be when another
// client writes the same key.
type Store struct {
	cache  *ristretto.Cache[string, []byte]
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Store holding up to maxCost bytes.
func New(maxCost int64, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(10*maxCost/1024, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ristretto cache: %w", err)
	}

	return &Store{
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Get returns the cached payload for key.
func (s *Store) Get(key string) ([]byte, bool) {
	return s.cache.Get(key)
}

// Set stores a payload; the cost is its size in bytes. A positive remaining
// lifetime of the key in the store caps the entry's TTL.
func (s *Store) Set(key string, data []byte, remaining time.Duration) {
	ttl := s.ttl
	if remaining > 0 {
		ttl = min(ttl, remaining)
	}
	if !s.cache.SetWithTTL(key, data, int64(len(data))+1, ttl) {
		s.logger.Debug("Ristretto dropped local cache entry", zap.String("key", key))
	}
}

// Delete removes keys from the near cache.
func (s *Store) Delete(keys ...string) {
	for _, key := range keys {
		s.cache.Del(key)
	}
}

// Wait blocks until buffered writes are applied.
func (s *Store) Wait() {
	s.cache.Wait()
}

// Close releases the cache goroutines.
func (s *Store) Close() {
	s.cache.Close()
}
