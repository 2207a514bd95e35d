package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOfRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"float", 3.5, KindNumber},
		{"int", 7, KindNumber},
		{"string", "hi", KindString},
		{"array", []any{1.0, "two"}, KindArray},
		{"map", map[string]any{"k": "v"}, KindMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValueOf(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}

	nested := map[string]any{
		"items": []any{1.0, true, nil},
		"meta":  map[string]any{"name": "x"},
	}
	assert.Equal(t, nested, ValueOf(nested).Interface())

	// Ints normalize to float64 on the way back out.
	assert.Equal(t, float64(7), ValueOf(7).Interface())
}

func TestValueTruthy(t *testing.T) {
	assert.False(t, Null().Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.False(t, Number(0).Truthy())
	assert.True(t, Number(-1).Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, String("x").Truthy())
	assert.False(t, Array().Truthy())
	assert.True(t, Array(Null()).Truthy())
	assert.False(t, Map(nil).Truthy())
	assert.True(t, Map(map[string]Value{"k": Null()}).Truthy())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "42", Number(42).String())
	assert.Equal(t, "1.5", Number(1.5).String())
	assert.Equal(t, "plain", String("plain").String())
	assert.Equal(t, "[1, 2]", Array(Number(1), Number(2)).String())
	// Map rendering is key-sorted, so it is stable.
	assert.Equal(t, "{a: 1, b: 2}", Map(map[string]Value{"b": Number(2), "a": Number(1)}).String())
}

func TestValueJSON(t *testing.T) {
	v := Map(map[string]Value{
		"ok":    Bool(true),
		"count": Number(2),
		"tags":  Array(String("a"), String("b")),
	})
	encoded, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"count":2,"tags":["a","b"]}`, string(encoded))

	var decoded Value
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, KindMap, decoded.Kind())
	assert.Equal(t, v.Interface(), decoded.Interface())
}
