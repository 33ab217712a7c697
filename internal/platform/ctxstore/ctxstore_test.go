package ctxstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arnforge/modkit/internal/platform/ctxstore"
)

func TestWithValue(t *testing.T) {
	ctx := ctxstore.WithValue(context.Background(), "value1")
	ctx = ctxstore.WithValue(ctx, 42)
	ctx = ctxstore.WithValue(ctx, true)

	type (
		customString string
		stringAlias  = string
	)

	var cs customString

	v, ok := ctxstore.Value[string](ctx)
	assert.True(t, ok)
	assert.Equal(t, "value1", v)

	i, ok := ctxstore.Value[int](ctx)
	assert.True(t, ok)
	assert.Equal(t, 42, i)

	b, ok := ctxstore.Value[bool](ctx)
	assert.True(t, ok)
	assert.True(t, b)

	f, ok := ctxstore.Value[float64](ctx)
	assert.False(t, ok)
	assert.Zero(t, f)

	c, ok := ctxstore.Value[customString](ctx)
	assert.False(t, ok)
	assert.Equal(t, cs, c)

	sa, ok := ctxstore.Value[stringAlias](ctx)
	assert.True(t, ok)
	assert.Equal(t, "value1", sa)
}
