// Package filter keeps a Bloom filter of keys known to exist in Redis so reads
// of never-written keys can skip the round trip.
package filter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/kvrest/internal/config"
)

// Scanner is the subset of the Redis client used for rebuilds.
type Scanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// KeyFilter answers "may this key exist". False positives are possible,
// false negatives only for keys written by other clients since the last rebuild.
type KeyFilter struct {
	client Scanner
	cfg    config.KeyFilterConfig
	logger *zap.Logger

	mu         sync.RWMutex
	filter     *bloom.BloomFilter
	rebuilding bool
	pending    []string
}

// New creates an empty KeyFilter. Call Rebuild to seed it from Redis.
func New(client Scanner, cfg config.KeyFilterConfig, logger *zap.Logger) *KeyFilter {
	return &KeyFilter{
		client: client,
		cfg:    cfg,
		logger: logger,
		filter: bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate),
	}
}

// Add records a written key.
func (kf *KeyFilter) Add(keys ...string) {
	kf.mu.Lock()
	defer kf.mu.Unlock()

	for _, key := range keys {
		kf.filter.AddString(key)
		if kf.rebuilding {
			kf.pending = append(kf.pending, key)
		}
	}
}

// MayContain reports whether key might exist.
func (kf *KeyFilter) MayContain(key string) bool {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	return kf.filter.TestString(key)
}

// Rebuild reconstructs the filter from all keys in Redis. Keys added while
// the scan runs are carried over into the new filter.
func (kf *KeyFilter) Rebuild(ctx context.Context) error {
	kf.mu.Lock()
	kf.rebuilding = true
	kf.pending = nil
	kf.mu.Unlock()

	newFilter := bloom.NewWithEstimates(kf.cfg.ExpectedItems, kf.cfg.FalsePositiveRate)

	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := kf.client.Scan(ctx, cursor, "*", kf.cfg.ScanCount).Result()
		if err != nil {
			kf.mu.Lock()
			kf.rebuilding = false
			kf.pending = nil
			kf.mu.Unlock()
			return fmt.Errorf("failed to scan keys from redis: %w", err)
		}
		for _, key := range keys {
			newFilter.AddString(key)
		}
		total += len(keys)
		if cursor = next; cursor == 0 {
			break
		}
	}

	kf.mu.Lock()
	for _, key := range kf.pending {
		newFilter.AddString(key)
	}
	kf.filter = newFilter
	kf.rebuilding = false
	kf.pending = nil
	kf.mu.Unlock()

	kf.logger.Debug("Key filter rebuilt", zap.Int("keys", total))
	return nil
}

// Run rebuilds the filter every RebuildInterval until ctx is done.
func (kf *KeyFilter) Run(ctx context.Context) {
	if kf.cfg.RebuildInterval <= 0 {
		return
	}

	ticker := time.NewTicker(kf.cfg.RebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := kf.Rebuild(ctx); err != nil {
				kf.logger.Error("Failed to rebuild key filter", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
