package facade

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"goflare.io/kvrest/internal/models"
)

// AddToSet adds members to the set at key and returns how many were new.
func (f *Facade) AddToSet(ctx context.Context, key string, values ...any) (int64, error) {
	return f.AddToSetWithTTL(ctx, key, 0, values...)
}

// AddToSetWithTTL adds members and, with ttl > 0, sets the key's expiration.
func (f *Facade) AddToSetWithTTL(ctx context.Context, key string, ttl time.Duration, values ...any) (int64, error) {
	if key == "" {
		return 0, models.ErrEmptyKey
	}
	if err := checkTTL(ttl); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	members, err := f.encodeAll(values)
	if err != nil {
		return 0, err
	}

	var added *redis.IntCmd
	if err := f.do(ctx, "AddToSet", key, func(ctx context.Context) error {
		_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			added = pipe.SAdd(ctx, key, members...)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}); err != nil {
		return 0, err
	}
	f.written(key)
	return added.Val(), nil
}

// Members returns all members of the set at key in no particular order.
func (f *Facade) Members(ctx context.Context, key string) ([]any, error) {
	if key == "" || f.absent(key) {
		return []any{}, nil
	}

	var raw []string
	if err := f.do(ctx, "Members", key, func(ctx context.Context) error {
		var err error
		raw, err = f.client.SMembers(ctx, key).Result()
		return err
	}); err != nil {
		return nil, err
	}
	return f.decodeAll(raw), nil
}

// IsMember reports whether value is in the set at key.
func (f *Facade) IsMember(ctx context.Context, key string, value any) (bool, error) {
	if key == "" || f.absent(key) {
		return false, nil
	}
	data, err := f.encode(value)
	if err != nil {
		return false, err
	}

	var ok bool
	err = f.do(ctx, "IsMember", key, func(ctx context.Context) error {
		var err error
		ok, err = f.client.SIsMember(ctx, key, data).Result()
		return err
	})
	return ok, err
}

// SetSize returns the set cardinality, 0 for a missing key.
func (f *Facade) SetSize(ctx context.Context, key string) (int64, error) {
	if key == "" || f.absent(key) {
		return 0, nil
	}

	var n int64
	err := f.do(ctx, "SetSize", key, func(ctx context.Context) error {
		var err error
		n, err = f.client.SCard(ctx, key).Result()
		return err
	})
	return n, err
}

// RemoveFromSet removes members and returns how many were present.
func (f *Facade) RemoveFromSet(ctx context.Context, key string, values ...any) (int64, error) {
	if key == "" || len(values) == 0 {
		return 0, nil
	}
	members, err := f.encodeAll(values)
	if err != nil {
		return 0, err
	}

	var n int64
	err = f.do(ctx, "RemoveFromSet", key, func(ctx context.Context) error {
		var err error
		n, err = f.client.SRem(ctx, key, members...).Result()
		return err
	})
	return n, err
}
