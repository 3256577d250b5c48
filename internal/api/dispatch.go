package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"goflare.io/kvrest/internal/models"
	"goflare.io/kvrest/pkg/serialization"
)

// resolveValue decodes the request value into a shaped Value. An explicit
// shape name wins; otherwise objects become maps, arrays become lists and
// everything else is a scalar. Sets are never inferred.
func resolveValue(raw json.RawMessage, shapeName string) (models.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.Value{}, fmt.Errorf("%w: value is required", models.ErrInvalidArgument)
	}

	shape := inferShape(raw)
	if shapeName != "" {
		var err error
		if shape, err = models.ParseShape(shapeName); err != nil {
			return models.Value{}, err
		}
	}

	v, err := serialization.UnmarshalJSONValue(raw)
	if err != nil {
		return models.Value{}, fmt.Errorf("%w: malformed value: %w", models.ErrInvalidArgument, err)
	}

	switch shape {
	case models.ShapeMap:
		m, ok := v.(map[string]any)
		if !ok {
			return models.Value{}, fmt.Errorf("%w: map value must be a JSON object", models.ErrInvalidArgument)
		}
		return models.MapValue(m), nil
	case models.ShapeList:
		return models.ListValue(asItems(v)), nil
	case models.ShapeSet:
		return models.SetValue(asItems(v)), nil
	default:
		return models.ScalarValue(v), nil
	}
}

func inferShape(raw json.RawMessage) models.Shape {
	switch raw[0] {
	case '{':
		return models.ShapeMap
	case '[':
		return models.ShapeList
	default:
		return models.ShapeScalar
	}
}

// asItems treats a single non-array value as a one element collection.
func asItems(v any) []any {
	if items, ok := v.([]any); ok {
		return items
	}
	return []any{v}
}

// maxTTLSeconds is the largest ttl a time.Duration can hold.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// secondsToTTL converts a ttl in seconds, rejecting values that overflow.
// Negative values are passed through for the facade to reject.
func secondsToTTL(seconds int64) (time.Duration, error) {
	if seconds > maxTTLSeconds || seconds < -maxTTLSeconds {
		return 0, fmt.Errorf("%w: time %d is out of range", models.ErrInvalidArgument, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// requestTTL maps the optional time field of an add request; absent or <= 0
// means no expiration.
func requestTTL(seconds *int64) (time.Duration, error) {
	if seconds == nil || *seconds <= 0 {
		return 0, nil
	}
	return secondsToTTL(*seconds)
}

// add routes a write to the facade operation matching its shape.
func (h *Handler) add(ctx context.Context, req AddCacheRequest) error {
	ttl, err := requestTTL(req.Time)
	if err != nil {
		return err
	}

	if req.Item != "" {
		v, err := serialization.UnmarshalJSONValue(bytes.TrimSpace(req.Value))
		if err != nil {
			return fmt.Errorf("%w: malformed value: %w", models.ErrInvalidArgument, err)
		}
		return h.cache.SetField(ctx, req.Key, req.Item, v, ttl)
	}

	val, err := resolveValue(req.Value, req.Shape)
	if err != nil {
		return err
	}

	switch val.Shape {
	case models.ShapeMap:
		return h.cache.SetMap(ctx, req.Key, val.Map, ttl)
	case models.ShapeList:
		return h.cache.SetSequence(ctx, req.Key, ttl, val.Items...)
	case models.ShapeSet:
		if ttl > 0 {
			_, err = h.cache.AddToSetWithTTL(ctx, req.Key, ttl, val.Items...)
		} else {
			_, err = h.cache.AddToSet(ctx, req.Key, val.Items...)
		}
		return err
	default:
		return h.cache.Set(ctx, req.Key, val.Scalar, ttl)
	}
}

// lookup reads key according to the loose type and item query parameters.
// A type naming no known shape reads nothing.
func (h *Handler) lookup(ctx context.Context, key, typ, item string) (any, error) {
	if item != "" {
		v, _, err := h.cache.GetField(ctx, key, item)
		return v, err
	}
	if typ == "" {
		v, _, err := h.cache.Get(ctx, key)
		return v, err
	}

	shape, ok := models.ShapeFromType(typ)
	if !ok {
		return nil, nil
	}
	switch shape {
	case models.ShapeMap:
		return h.cache.GetMap(ctx, key)
	case models.ShapeList:
		return h.cache.GetSequenceRange(ctx, key, 0, -1)
	default:
		return h.cache.Members(ctx, key)
	}
}
