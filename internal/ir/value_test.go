package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	v, err := ParseValue([]byte(`{"b":[1,"x",true],"a":{"n":-3}}`))
	require.NoError(t, err)

	assert.Equal(t, Object{
		"a": Object{"n": Int(-3)},
		"b": Array{Int(1), String("x"), Bool(true)},
	}, v)
}

func TestParseValueRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"null", `null`},
		{"nested null", `{"a":null}`},
		{"float", `1.5`},
		{"exponent", `1e3`},
		{"out of range", `99999999999999999999`},
		{"malformed", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseValue([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestObjectJSONRoundTrip(t *testing.T) {
	in := Object{"z": Int(1), "a": Array{String("q")}}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["q"],"z":1}`, string(data))

	var out Object
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestObjectUnmarshalRejectsNonObject(t *testing.T) {
	var out Object
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &out))
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{"n": 3, "s": "x", "u": uint64(7)})
	require.NoError(t, err)
	assert.Equal(t, Object{"n": Int(3), "s": String("x"), "u": Int(7)}, v)

	_, err = FromGo(math.Pi)
	assert.Error(t, err)
}
