package serialization

import (
	"bytes"
	"fmt"
	"io"
)

const (
	// JSONType represents the serialization type for JSON format.
	JSONType = "json"

	// GobType represents the serialization type for Gob format.
	GobType = "gob"
)

// Decoder and Encoder are the interface for serialization.
type Decoder interface {
	Decode(v any) error
}

// Encoder and Decoder are the interface for serialization.
type Encoder interface {
	Encode(v any) error
}

// Codec turns values into the byte strings stored in Redis and back.
type Codec struct {
	Type    string
	Encoder func(io.Writer) Encoder
	Decoder func(io.Reader) Decoder
}

// NewCodec returns the codec registered under the given type name.
func NewCodec(typ string) (*Codec, error) {
	switch typ {
	case JSONType, "":
		return &Codec{Type: JSONType, Encoder: JsonEncoder, Decoder: JsonDecoder}, nil
	case GobType:
		return &Codec{Type: GobType, Encoder: GobEncoder, Decoder: GobDecoder}, nil
	default:
		return nil, fmt.Errorf("unsupported serialization type: %s", typ)
	}
}

// Marshal encodes v into a fresh byte slice.
func (c *Codec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	if c.Type == JSONType {
		// json.Encoder terminates every value with a newline
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v.
func (c *Codec) Unmarshal(data []byte, v any) error {
	return c.Decoder(bytes.NewReader(data)).Decode(v)
}
