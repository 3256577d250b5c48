package facade

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"goflare.io/kvrest/internal/models"
)

// SetSequence appends items to the tail of the list at key. With ttl > 0 the
// key expires after ttl; otherwise its expiration is left unchanged.
func (f *Facade) SetSequence(ctx context.Context, key string, ttl time.Duration, items ...any) error {
	if key == "" {
		return models.ErrEmptyKey
	}
	if err := checkTTL(ttl); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	args, err := f.encodeAll(items)
	if err != nil {
		return err
	}

	if err := f.do(ctx, "SetSequence", key, func(ctx context.Context) error {
		_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, args...)
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

// GetSequenceRange returns items start..end inclusive; end = -1 means the tail.
func (f *Facade) GetSequenceRange(ctx context.Context, key string, start, end int64) ([]any, error) {
	if key == "" || f.absent(key) {
		return []any{}, nil
	}

	var raw []string
	if err := f.do(ctx, "GetSequenceRange", key, func(ctx context.Context) error {
		var err error
		raw, err = f.client.LRange(ctx, key, start, end).Result()
		return err
	}); err != nil {
		return nil, err
	}
	return f.decodeAll(raw), nil
}

// GetSequenceLength returns the list length, 0 for a missing key.
func (f *Facade) GetSequenceLength(ctx context.Context, key string) (int64, error) {
	if key == "" || f.absent(key) {
		return 0, nil
	}

	var n int64
	err := f.do(ctx, "GetSequenceLength", key, func(ctx context.Context) error {
		var err error
		n, err = f.client.LLen(ctx, key).Result()
		return err
	})
	return n, err
}

// GetAtIndex returns the item at index; negative indexes count from the tail.
func (f *Facade) GetAtIndex(ctx context.Context, key string, index int64) (any, bool, error) {
	if key == "" || f.absent(key) {
		return nil, false, nil
	}

	var data []byte
	err := f.do(ctx, "GetAtIndex", key, func(ctx context.Context) error {
		var err error
		data, err = f.client.LIndex(ctx, key, index).Bytes()
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

// SetAtIndex replaces the item at index. An out of range index or a missing
// key is reported as ErrInvalidArgument.
func (f *Facade) SetAtIndex(ctx context.Context, key string, index int64, value any) error {
	if key == "" {
		return models.ErrEmptyKey
	}
	data, err := f.encode(value)
	if err != nil {
		return err
	}

	return f.do(ctx, "SetAtIndex", key, func(ctx context.Context) error {
		return f.client.LSet(ctx, key, index, data).Err()
	})
}

// RemoveOccurrences removes up to count items equal to value (count > 0 from
// the head, count < 0 from the tail, 0 all) and returns how many were removed.
func (f *Facade) RemoveOccurrences(ctx context.Context, key string, count int64, value any) (int64, error) {
	if key == "" {
		return 0, nil
	}
	data, err := f.encode(value)
	if err != nil {
		return 0, err
	}

	var n int64
	err = f.do(ctx, "RemoveOccurrences", key, func(ctx context.Context) error {
		var err error
		n, err = f.client.LRem(ctx, key, count, data).Result()
		return err
	})
	return n, err
}
