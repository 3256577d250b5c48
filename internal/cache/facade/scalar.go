package facade

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"goflare.io/kvrest/internal/models"
)

// Set stores a scalar. With ttl > 0 the key expires after ttl; with ttl == 0
// the key is stored without expiration, replacing any previous one.
func (f *Facade) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return models.ErrEmptyKey
	}
	if err := checkTTL(ttl); err != nil {
		return err
	}
	data, err := f.encode(value)
	if err != nil {
		return err
	}

	if err := f.do(ctx, "Set", key, func(ctx context.Context) error {
		return f.client.Set(ctx, key, data, ttl).Err()
	}); err != nil {
		return err
	}
	f.written(key)
	return nil
}

// Get returns the scalar stored at key. found is false for an empty or missing key.
func (f *Facade) Get(ctx context.Context, key string) (any, bool, error) {
	if key == "" || f.absent(key) {
		f.metrics.Misses.Inc()
		return nil, false, nil
	}

	if f.local != nil {
		if data, ok := f.local.Get(key); ok {
			f.metrics.LocalHits.Inc()
			f.metrics.Hits.Inc()
			return f.decode(data), true, nil
		}
	}

	v, err, _ := f.sf.Do(key, func() (any, error) {
		var r scalarRead
		err := f.do(ctx, "Get", key, func(ctx context.Context) error {
			var err error
			r, err = f.readScalar(ctx, key)
			return err
		})
		return r, err
	})
	if errors.Is(err, redis.Nil) {
		f.metrics.Misses.Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	r := v.(scalarRead)
	f.metrics.Hits.Inc()
	if f.local != nil {
		f.local.Set(key, r.data, r.remaining)
	}
	return f.decode(r.data), true, nil
}

type scalarRead struct {
	data      []byte
	remaining time.Duration
}

// readScalar fetches the value; with the local tier on it also fetches the
// key's remaining lifetime in the same round trip.
func (f *Facade) readScalar(ctx context.Context, key string) (scalarRead, error) {
	if f.local == nil {
		data, err := f.client.Get(ctx, key).Bytes()
		return scalarRead{data: data}, err
	}

	var (
		get *redis.StringCmd
		ttl *redis.DurationCmd
	)
	if _, err := f.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	}); err != nil {
		return scalarRead{}, err
	}
	data, err := get.Bytes()
	return scalarRead{data: data, remaining: ttl.Val()}, err
}

// Incr adds delta to the integer stored at key and returns the new value.
func (f *Facade) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	return f.incrBy(ctx, "Incr", key, delta, delta)
}

// Decr subtracts delta from the integer stored at key and returns the new value.
func (f *Facade) Decr(ctx context.Context, key string, delta int64) (int64, error) {
	return f.incrBy(ctx, "Decr", key, delta, -delta)
}

func (f *Facade) incrBy(ctx context.Context, op, key string, delta, by int64) (int64, error) {
	if key == "" {
		return 0, models.ErrEmptyKey
	}
	if err := checkDelta(delta); err != nil {
		return 0, err
	}

	var n int64
	if err := f.do(ctx, op, key, func(ctx context.Context) error {
		var err error
		n, err = f.client.IncrBy(ctx, key, by).Result()
		return err
	}); err != nil {
		return 0, err
	}
	f.written(key)
	return n, nil
}

// Delete removes the given keys. Empty keys are skipped; nothing to delete is a no-op.
func (f *Facade) Delete(ctx context.Context, keys ...string) error {
	keys = nonEmpty(keys)
	if len(keys) == 0 {
		return nil
	}

	err := f.do(ctx, "Delete", keys[0], func(ctx context.Context) error {
		return f.client.Del(ctx, keys...).Err()
	})
	if f.local != nil {
		f.local.Delete(keys...)
	}
	return err
}

// Expire sets the key's time to live. ttl == 0 removes the expiration.
// The result is the store's reply: for ttl > 0 whether the key exists, for
// ttl == 0 whether an expiration was removed.
func (f *Facade) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := checkTTL(ttl); err != nil {
		return false, err
	}
	if key == "" {
		return false, nil
	}

	var ok bool
	err := f.do(ctx, "Expire", key, func(ctx context.Context) error {
		var err error
		if ttl == 0 {
			ok, err = f.client.Persist(ctx, key).Result()
		} else {
			ok, err = f.client.Expire(ctx, key, ttl).Result()
		}
		return err
	})
	if err == nil && f.local != nil {
		f.local.Delete(key)
	}
	return ok, err
}

// GetExpire returns the remaining time to live, or 0 when the key has no
// expiration or does not exist.
func (f *Facade) GetExpire(ctx context.Context, key string) (time.Duration, error) {
	if key == "" {
		return 0, nil
	}

	var ttl time.Duration
	if err := f.do(ctx, "GetExpire", key, func(ctx context.Context) error {
		var err error
		ttl, err = f.client.TTL(ctx, key).Result()
		return err
	}); err != nil {
		return 0, err
	}
	// -1 (no expiration) and -2 (missing) come back as negative durations
	return max(ttl, 0), nil
}

// Exists reports whether key exists.
func (f *Facade) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" || f.absent(key) {
		return false, nil
	}

	var n int64
	if err := f.do(ctx, "Exists", key, func(ctx context.Context) error {
		var err error
		n, err = f.client.Exists(ctx, key).Result()
		return err
	}); err != nil {
		return false, err
	}
	return n > 0, nil
}
