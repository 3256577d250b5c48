package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec(t *testing.T) {
	c, err := NewCodec(JSONType)
	require.NoError(t, err)

	data, err := c.Marshal(map[string]any{"name": "<ember>", "age": 24})
	require.NoError(t, err)
	assert.Equal(t, `{"age":24,"name":"<ember>"}`, string(data))

	var out any
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, map[string]any{"name": "<ember>", "age": int64(24)}, out)

	data, err = c.Marshal(42)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data), "numbers stay usable by INCRBY")
}

func TestJSONCodecNumbers(t *testing.T) {
	c, err := NewCodec(JSONType)
	require.NoError(t, err)

	big := int64(9007199254740993)
	data, err := c.Marshal(big)
	require.NoError(t, err)

	var out any
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, big, out)

	require.NoError(t, c.Unmarshal([]byte(`[1.5, 2, {"n": -3}]`), &out))
	assert.Equal(t, []any{1.5, int64(2), map[string]any{"n": int64(-3)}}, out)
}

func TestJSONCodecRejectsTrailingData(t *testing.T) {
	c, err := NewCodec(JSONType)
	require.NoError(t, err)

	var out any
	assert.ErrorIs(t, c.Unmarshal([]byte("42 apples"), &out), ErrTrailingData)
	assert.ErrorIs(t, c.Unmarshal([]byte(`{"a":1}}`), &out), ErrTrailingData)
	assert.NoError(t, c.Unmarshal([]byte("42 \n"), &out))
	assert.Equal(t, int64(42), out)
}

func TestUnmarshalJSONValue(t *testing.T) {
	v, err := UnmarshalJSONValue([]byte(`9007199254740993`))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), v)

	_, err = UnmarshalJSONValue([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestGobCodec(t *testing.T) {
	c, err := NewCodec(GobType)
	require.NoError(t, err)

	data, err := c.Marshal("hello")
	require.NoError(t, err)

	var out any
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, "hello", out)

	data, err = c.Marshal(map[string]any{"k": "v"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, c.Unmarshal(data, &m))
	assert.Equal(t, "v", m["k"])
}

func TestNewCodecUnsupported(t *testing.T) {
	_, err := NewCodec("msgpack")
	require.Error(t, err)

	c, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, JSONType, c.Type)
}
