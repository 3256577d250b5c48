package serialization

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ErrTrailingData is returned when a JSON payload holds more than one value.
var ErrTrailingData = errors.New("json: trailing data after value")

// Json decodes exactly one value per reader. Numbers decoded into an
// interface become int64 when they are integers that fit, float64 otherwise.
type Json struct {
	dec *json.Decoder
	enc *json.Encoder
}

func (j *Json) Decode(v any) error {
	if err := j.dec.Decode(v); err != nil {
		return err
	}
	if _, err := j.dec.Token(); err != io.EOF {
		return ErrTrailingData
	}
	if target, ok := v.(*any); ok {
		*target = normalizeNumbers(*target)
	}
	return nil
}

func (j *Json) Encode(v any) error {
	return j.enc.Encode(v)
}

func JsonDecoder(r io.Reader) Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Json{dec: dec}
}

// JsonEncoder leaves HTML characters unescaped so stored strings stay readable
// from redis-cli.
func JsonEncoder(w io.Writer) Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Json{enc: enc}
}

// UnmarshalJSONValue decodes a single JSON value with the same number rules
// as the JSON codec.
func UnmarshalJSONValue(data []byte) (any, error) {
	var v any
	if err := JsonDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}
