package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(vars map[string]any) *ExecutionContext {
	ec := NewExecutionContext()
	for k, v := range vars {
		ec.Set(k, ValueOf(v))
	}
	return ec
}

func TestInterpolate(t *testing.T) {
	ctx := context.Background()
	ec := testContext(map[string]any{
		"name":  "ada",
		"count": 3.0,
		"user":  map[string]any{"email": "ada@example.com"},
	})

	t.Run("no expressions", func(t *testing.T) {
		v, err := Interpolate(ctx, "plain text", ec)
		require.NoError(t, err)
		assert.Equal(t, "plain text", v.String())
	})

	t.Run("whole string preserves type", func(t *testing.T) {
		v, err := Interpolate(ctx, "${count}", ec)
		require.NoError(t, err)
		assert.Equal(t, KindNumber, v.Kind())
		assert.Equal(t, 3.0, v.Number())

		v, err = Interpolate(ctx, "${user}", ec)
		require.NoError(t, err)
		assert.Equal(t, KindMap, v.Kind())
	})

	t.Run("mixed text concatenates", func(t *testing.T) {
		v, err := Interpolate(ctx, "hello ${name}, you have ${count} items", ec)
		require.NoError(t, err)
		assert.Equal(t, "hello ada, you have 3 items", v.String())
	})

	t.Run("expressions evaluate", func(t *testing.T) {
		v, err := Interpolate(ctx, "${count + 1}", ec)
		require.NoError(t, err)
		assert.Equal(t, 4.0, v.Number())

		v, err = Interpolate(ctx, `${user["email"]}`, ec)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", v.String())
	})

	t.Run("unclosed expression errors", func(t *testing.T) {
		_, err := Interpolate(ctx, "${name", ec)
		assert.Error(t, err)
	})

	t.Run("unknown variable errors", func(t *testing.T) {
		_, err := Interpolate(ctx, "${nope}", ec)
		assert.Error(t, err)
	})
}

func TestInterpolateAny(t *testing.T) {
	ctx := context.Background()
	ec := testContext(map[string]any{"id": 42.0})

	v, err := InterpolateAny(ctx, map[string]any{
		"url":   "https://api.example.com/items/${id}",
		"exact": "${id}",
		"list":  []any{"${id}", "static"},
		"n":     7.0,
	}, ec)
	require.NoError(t, err)

	m := v.Map()
	assert.Equal(t, "https://api.example.com/items/42", m["url"].String())
	assert.Equal(t, 42.0, m["exact"].Number())
	assert.Equal(t, 42.0, m["list"].Array()[0].Number())
	assert.Equal(t, "static", m["list"].Array()[1].String())
	assert.Equal(t, 7.0, m["n"].Number())
}

func TestCompileCondition(t *testing.T) {
	ctx := context.Background()

	cond, err := CompileCondition("x > 5 && status == \"ready\"", []string{"x", "status"})
	require.NoError(t, err)
	assert.Equal(t, "x > 5 && status == \"ready\"", cond.Raw())

	ok, err := cond.Evaluate(ctx, map[string]any{"x": 10.0, "status": "ready"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cond.Evaluate(ctx, map[string]any{"x": 1.0, "status": "ready"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CompileCondition("x >", []string{"x"})
	assert.Error(t, err)
}

func TestConditionMissingGlobalsAreNil(t *testing.T) {
	cond, err := CompileCondition("x == nil", []string{"x"})
	require.NoError(t, err)

	ok, err := cond.Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.True(t, ok)
}
