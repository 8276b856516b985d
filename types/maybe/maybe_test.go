package maybe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybe(t *testing.T) {
	s := Some(4.2)
	assert.True(t, s.IsValid())
	assert.Equal(t, 4.2, s.Value())
	assert.Equal(t, 4.2, s.ValueOrDefault(1))

	n := None[float64]()
	assert.False(t, n.IsValid())
	assert.Equal(t, 1.0, n.ValueOrDefault(1))
}

func TestFromPtr(t *testing.T) {
	v := 7
	assert.Equal(t, Some(7), FromPtr(&v))
	assert.False(t, FromPtr[int](nil).IsValid())
}

func TestMaybeJSON(t *testing.T) {
	type payload struct {
		A Maybe[float64] `json:"a"`
		B Maybe[float64] `json:"b"`
	}
	buf, err := json.Marshal(payload{A: Some(1.5), B: None[float64]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null}`, string(buf))

	var p payload
	require.NoError(t, json.Unmarshal(buf, &p))
	assert.Equal(t, Some(1.5), p.A)
	assert.False(t, p.B.IsValid())
}
