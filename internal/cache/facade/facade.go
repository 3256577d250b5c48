// Package facade maps typed cache operations onto Redis commands.
//
// Every value written through the facade (scalar values, hash field values,
// list items and set members) is encoded with the configured codec. Reads
// decode the stored bytes back; bytes that do not decode are returned as a
// plain string so keys written by other clients stay readable.
package facade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"goflare.io/kvrest/internal/cache/filter"
	"goflare.io/kvrest/internal/cache/local"
	"goflare.io/kvrest/internal/config"
	"goflare.io/kvrest/internal/models"
	"goflare.io/kvrest/pkg/serialization"
)

const warmupConcurrency = 8

// Operations defines the cache facade.
type Operations interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (any, bool, error)
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	Decr(ctx context.Context, key string, delta int64) (int64, error)
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetExpire(ctx context.Context, key string) (time.Duration, error)
	Exists(ctx context.Context, key string) (bool, error)

	SetMap(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error
	GetMap(ctx context.Context, key string) (map[string]any, error)
	SetField(ctx context.Context, key, field string, value any, ttl time.Duration) error
	GetField(ctx context.Context, key, field string) (any, bool, error)
	DeleteFields(ctx context.Context, key string, fields ...string) error
	HasField(ctx context.Context, key, field string) (bool, error)
	IncrField(ctx context.Context, key, field string, delta float64) (float64, error)
	DecrField(ctx context.Context, key, field string, delta float64) (float64, error)

	SetSequence(ctx context.Context, key string, ttl time.Duration, items ...any) error
	GetSequenceRange(ctx context.Context, key string, start, end int64) ([]any, error)
	GetSequenceLength(ctx context.Context, key string) (int64, error)
	GetAtIndex(ctx context.Context, key string, index int64) (any, bool, error)
	SetAtIndex(ctx context.Context, key string, index int64, value any) error
	RemoveOccurrences(ctx context.Context, key string, count int64, value any) (int64, error)

	AddToSet(ctx context.Context, key string, values ...any) (int64, error)
	AddToSetWithTTL(ctx context.Context, key string, ttl time.Duration, values ...any) (int64, error)
	Members(ctx context.Context, key string) ([]any, error)
	IsMember(ctx context.Context, key string, value any) (bool, error)
	SetSize(ctx context.Context, key string) (int64, error)
	RemoveFromSet(ctx context.Context, key string, values ...any) (int64, error)

	Ping(ctx context.Context) error
	Stats() models.Snapshot
	Close() error
}

var _ Operations = (*Facade)(nil)

// Facade implements Operations on top of a go-redis client.
type Facade struct {
	client     redis.UniversalClient
	codec      *serialization.Codec
	config     *config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
	metrics    *models.Metrics
	resilience *Resilience
	sf         singleflight.Group

	// optional tiers, nil when disabled
	local  *local.Store
	filter *filter.KeyFilter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Facade. Background work (key filter rebuilds) runs until Close.
func New(ctx context.Context, cfg *config.Config, client redis.UniversalClient) (*Facade, error) {
	codec, err := serialization.NewCodec(cfg.Serialization.Type)
	if err != nil {
		return nil, err
	}

	res, err := NewResilience(cfg)
	if err != nil {
		return nil, err
	}

	f := &Facade{
		client:     client,
		codec:      codec,
		config:     cfg,
		logger:     cfg.Logger,
		tracer:     otel.Tracer("goflare.io/kvrest/facade"),
		metrics:    models.NewMetrics(),
		resilience: res,
	}

	if cfg.LocalCache.Enabled {
		f.local, err = local.New(cfg.LocalCache.MaxCost, cfg.LocalCache.TTL, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local cache: %w", err)
		}
	}

	if cfg.KeyFilter.Enabled {
		f.filter = filter.New(client, cfg.KeyFilter, cfg.Logger)
		if err := f.filter.Rebuild(ctx); err != nil {
			f.closeLocal()
			return nil, fmt.Errorf("failed to build key filter: %w", err)
		}
	}

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	if f.filter != nil {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.filter.Run(bgCtx)
		}()
	}

	if f.local != nil && len(cfg.LocalCache.WarmupKeys) > 0 {
		f.warmup(ctx, cfg.LocalCache.WarmupKeys)
	}

	return f, nil
}

// warmup preloads scalar keys into the local cache.
func (f *Facade) warmup(ctx context.Context, keys []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if _, _, err := f.Get(gctx, key); err != nil {
				f.logger.Warn("Failed to warm up key", zap.String("key", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Ping checks the store connection.
func (f *Facade) Ping(ctx context.Context) error {
	return f.do(ctx, "Ping", "", func(ctx context.Context) error {
		return f.client.Ping(ctx).Err()
	})
}

// Stats returns the facade counters.
func (f *Facade) Stats() models.Snapshot {
	return f.metrics.Snapshot()
}

// Metrics exposes the live counters for exporters.
func (f *Facade) Metrics() *models.Metrics {
	return f.metrics
}

// Close stops background work and closes the Redis client.
func (f *Facade) Close() error {
	f.logger.Info("Closing cache facade")

	f.cancel()
	f.wg.Wait()
	f.closeLocal()

	if err := f.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}

func (f *Facade) closeLocal() {
	if f.local != nil {
		f.local.Close()
	}
}

// do runs a store call with tracing, resilience and error classification.
// redis.Nil is returned unchanged; server replies become ErrInvalidArgument
// and everything else ErrStoreUnavailable.
func (f *Facade) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	ctx, span := f.tracer.Start(ctx, "Facade."+op, trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	err := f.resilience.Execute(ctx, key, func() error { return fn(ctx) })
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if isReplyError(err) {
		f.logger.Warn("Store rejected command", zap.String("op", op), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%s %q: %w: %w", op, key, models.ErrInvalidArgument, err)
	}

	f.metrics.StoreErrors.Inc()
	f.logger.Error("Store call failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return fmt.Errorf("%s %q: %w: %w", op, key, models.ErrStoreUnavailable, err)
}

// written records keys touched by a write in the optional tiers.
func (f *Facade) written(keys ...string) {
	if f.local != nil {
		f.local.Delete(keys...)
	}
	if f.filter != nil {
		f.filter.Add(keys...)
	}
}

// absent reports whether the key filter rules the key out.
func (f *Facade) absent(key string) bool {
	if f.filter == nil || f.filter.MayContain(key) {
		return false
	}
	f.metrics.FilterRejects.Inc()
	return true
}

func (f *Facade) encode(v any) ([]byte, error) {
	data, err := f.codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot encode value: %w", models.ErrInvalidArgument, err)
	}
	return data, nil
}

func (f *Facade) encodeAll(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		data, err := f.encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func (f *Facade) decode(data []byte) any {
	var v any
	if err := f.codec.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}

func (f *Facade) decodeAll(raw []string) []any {
	out := make([]any, len(raw))
	for i, s := range raw {
		out[i] = f.decode([]byte(s))
	}
	return out
}

func checkTTL(ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("%w: ttl must not be negative", models.ErrInvalidArgument)
	}
	return nil
}

func checkDelta[T int64 | float64](delta T) error {
	if delta < 0 {
		return fmt.Errorf("%w: delta must not be negative", models.ErrInvalidArgument)
	}
	return nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
