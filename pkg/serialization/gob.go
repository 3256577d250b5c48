package serialization

import (
	"encoding/gob"
	"fmt"
	"io"
	"reflect"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// envelope lets gob carry dynamically typed values.
type envelope struct {
	V any
}

// Gob is a type that wraps gob.Decoder and gob.Encoder to provide encoding and decoding functionalities.
type Gob struct {
	dec *gob.Decoder
	enc *gob.Encoder
}

// Decode decodes a value from the underlying gob.Decoder into the provided variable v.
func (g *Gob) Decode(v any) error {
	var e envelope
	if err := g.dec.Decode(&e); err != nil {
		return err
	}
	if target, ok := v.(*any); ok {
		*target = e.V
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("gob: decode target must be a non-nil pointer, got %T", v)
	}
	src := reflect.ValueOf(e.V)
	if !src.IsValid() {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		return nil
	}
	if !src.Type().AssignableTo(rv.Elem().Type()) {
		return fmt.Errorf("gob: cannot assign %s to %s", src.Type(), rv.Elem().Type())
	}
	rv.Elem().Set(src)
	return nil
}

// Encode serializes the input value v using gob encoding and returns an error if the encoding process fails.
func (g *Gob) Encode(v any) error {
	return g.enc.Encode(envelope{V: v})
}

// GobDecoder returns a Decoder that reads and decodes GOB-encoded data from the provided io.Reader.
func GobDecoder(r io.Reader) Decoder {
	return &Gob{dec: gob.NewDecoder(r)}
}

// GobEncoder returns an Encoder that writes and encodes data into GOB format using the provided io.Writer.
func GobEncoder(w io.Writer) Encoder {
	return &Gob{enc: gob.NewEncoder(w)}
}
