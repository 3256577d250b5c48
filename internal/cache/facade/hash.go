package facade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"goflare.io/kvrest/internal/models"
)

// SetMap writes all fields into the hash at key. With ttl > 0 the whole key
// expires after ttl; otherwise the key keeps whatever expiration it had.
func (f *Facade) SetMap(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	if key == "" {
		return models.ErrEmptyKey
	}
	if err := checkTTL(ttl); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	args := make([]any, 0, 2*len(fields))
	for field, value := range fields {
		data, err := f.encode(value)
		if err != nil {
			return err
		}
		args = append(args, field, data)
	}

	if err := f.do(ctx, "SetMap", key, func(ctx context.Context) error {
		_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, args...)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}); err != nil {
		return err
	}
	f.written(key)
	return nil
}

// GetMap returns every field of the hash at key; a missing key yields an empty map.
func (f *Facade) GetMap(ctx context.Context, key string) (map[string]any, error) {
	out := map[string]any{}
	if key == "" || f.absent(key) {
		return out, nil
	}

	var raw map[string]string
	if err := f.do(ctx, "GetMap", key, func(ctx context.Context) error {
		var err error
		raw, err = f.client.HGetAll(ctx, key).Result()
		return err
	}); err != nil {
		return nil, err
	}

	for field, s := range raw {
		out[field] = f.decode([]byte(s))
	}
	return out, nil
}

// SetField writes one hash field. With ttl > 0 the expiration is re-applied to
// the whole key, replacing any existing one.
func (f *Facade) SetField(ctx context.Context, key, field string, value any, ttl time.Duration) error {
	if key == "" {
		return models.ErrEmptyKey
	}
	if field == "" {
		return fmt.Errorf("%w: field must not be empty", models.ErrInvalidArgument)
	}
	if err := checkTTL(ttl); err != nil {
		return err
	}
	data, err := f.encode(value)
	if err != nil {
		return err
	}

	if err := f.do(ctx, "SetField", key, func(ctx context.Context) error {
		_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, data)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}); err != nil {
		return err
	}
	f.written(key)
	return nil
}

// GetField returns one hash field.
func (f *Facade) GetField(ctx context.Context, key, field string) (any, bool, error) {
	if key == "" || field == "" || f.absent(key) {
		return nil, false, nil
	}

	var data []byte
	err := f.do(ctx, "GetField", key, func(ctx context.Context) error {
		var err error
		data, err = f.client.HGet(ctx, key, field).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return f.decode(data), true, nil
}

// DeleteFields removes fields from the hash at key.
func (f *Facade) DeleteFields(ctx context.Context, key string, fields ...string) error {
	fields = nonEmpty(fields)
	if key == "" || len(fields) == 0 {
		return nil
	}

	return f.do(ctx, "DeleteFields", key, func(ctx context.Context) error {
		return f.client.HDel(ctx, key, fields...).Err()
	})
}

// HasField reports whether the hash at key has field.
func (f *Facade) HasField(ctx context.Context, key, field string) (bool, error) {
	if key == "" || field == "" || f.absent(key) {
		return false, nil
	}

	var ok bool
	err := f.do(ctx, "HasField", key, func(ctx context.Context) error {
		var err error
		ok, err = f.client.HExists(ctx, key, field).Result()
		return err
	})
	return ok, err
}

// IncrField adds delta to a numeric hash field, creating it at 0 when missing.
func (f *Facade) IncrField(ctx context.Context, key, field string, delta float64) (float64, error) {
	return f.hincrBy(ctx, "IncrField", key, field, delta, delta)
}

// DecrField subtracts delta from a numeric hash field.
func (f *Facade) DecrField(ctx context.Context, key, field string, delta float64) (float64, error) {
	return f.hincrBy(ctx, "DecrField", key, field, delta, -delta)
}

func (f *Facade) hincrBy(ctx context.Context, op, key, field string, delta, by float64) (float64, error) {
	if err := checkDelta(delta); err != nil {
		return 0, err
	}
	if key == "" {
		return 0, models.ErrEmptyKey
	}
	if field == "" {
		return 0, fmt.Errorf("%w: field must not be empty", models.ErrInvalidArgument)
	}

	var n float64
	if err := f.do(ctx, op, key, func(ctx context.Context) error {
		var err error
		n, err = f.client.HIncrByFloat(ctx, key, field, by).Result()
		return err
	}); err != nil {
		return 0, err
	}
	f.written(key)
	return n, nil
}
