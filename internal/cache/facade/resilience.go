package facade

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/kvrest/internal/config"
	"goflare.io/kvrest/internal/retrier"
)

// Reply prefixes Redis uses for conditions that clear up on their own.
var retryablePrefixes = []string{"LOADING", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN", "BUSY"}

// Resilience manages circuit breakers and retry mechanisms.
type Resilience struct {
	retrier  *retrier.Retrier
	globalCB *gobreaker.CircuitBreaker
	keyCBs   []*gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewResilience creates a new Resilience instance.
func NewResilience(cfg *config.Config) (*Resilience, error) {
	logger := cfg.Logger

	strategy, err := retrier.ParseStrategy(cfg.ResilienceConfig.Retry.Strategy)
	if err != nil {
		return nil, err
	}
	rc := cfg.ResilienceConfig.Retry
	r, err := retrier.New(retrier.Config{
		MaxAttempts:   rc.MaxAttempts,
		BaseDelay:     rc.BaseDelay,
		MaxDelay:      rc.MaxDelay,
		Factor:        rc.Factor,
		Jitter:        rc.Jitter,
		Strategy:      strategy,
		TempErrorFunc: isRetryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("Retrying store call", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	res := &Resilience{
		retrier:  r,
		globalCB: gobreaker.NewCircuitBreaker(breakerSettings(cfg.ResilienceConfig.GlobalCircuitBreaker, "global", logger)),
		keyCBs:   make([]*gobreaker.CircuitBreaker, cfg.ShardCount),
		logger:   logger,
	}
	for i := range res.keyCBs {
		res.keyCBs[i] = gobreaker.NewCircuitBreaker(
			breakerSettings(cfg.ResilienceConfig.KeyCircuitBreaker, fmt.Sprintf("shard-%d", i), logger))
	}
	return res, nil
}

// Execute runs fn behind the global breaker, the key's shard breaker and the retrier.
func (r *Resilience) Execute(ctx context.Context, key string, fn func() error) error {
	cb := r.keyCBs[shardIndex(uint64(len(r.keyCBs)), key)]

	_, err := r.globalCB.Execute(func() (any, error) {
		return cb.Execute(func() (any, error) {
			return nil, r.retrier.Run(ctx, fn)
		})
	})
	return err
}

func breakerSettings(s gobreaker.Settings, suffix string, logger *zap.Logger) gobreaker.Settings {
	s.Name = s.Name + "/" + suffix
	if s.IsSuccessful == nil {
		// misses and command errors come from a healthy server
		s.IsSuccessful = func(err error) bool {
			return err == nil || isReplyError(err)
		}
	}
	if s.OnStateChange == nil {
		s.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		}
	}
	return s
}

// isReplyError reports whether err is a reply from the server, including redis.Nil.
func isReplyError(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr)
}

func isRetryable(err error) bool {
	if errors.Is(err, redis.Nil) {
		return false
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		for _, prefix := range retryablePrefixes {
			if strings.HasPrefix(msg, prefix) {
				return true
			}
		}
		return false
	}
	return retrier.IsTemporary(err)
}

// shardIndex 計算分片索引
func shardIndex(totalShards uint64, key string) uint64 {
	h := fnv.New64a()
	if _, err := h.Write([]byte(key)); err != nil {
		return 0
	}
	return h.Sum64() % totalShards
}
