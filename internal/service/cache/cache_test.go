package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, c.SetBytes(ctx, "forever", []byte("x"), 0))

	b, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(b))

	now = now.Add(2 * time.Hour)
	_, ok, _ = c.GetBytes(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	type payload struct{ A int }

	var got payload
	ok, err := GetJSON(ctx, c, "p", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, c, "p", payload{A: 3}, time.Minute))
	ok, err = GetJSON(ctx, c, "p", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, got.A)

	require.NoError(t, c.SetBytes(ctx, "bad", []byte("{"), time.Minute))
	_, err = GetJSON(ctx, c, "bad", &got)
	assert.Error(t, err)
}
