package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "a", []byte("one")))
	value, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", string(value))

	// returned slices are copies
	value[0] = 'X'
	again, _ := store.Get(ctx, "a")
	assert.Equal(t, "one", string(again))

	require.NoError(t, store.Remove(ctx, "a"))
	require.NoError(t, store.Remove(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNamespaced(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	carts := Namespaced(base, "cart")
	checkouts := Namespaced(base, "checkout:")

	require.NoError(t, carts.Set(ctx, "owner-1", []byte("cart")))
	require.NoError(t, checkouts.Set(ctx, "owner-1", []byte("checkout")))

	raw, err := base.Get(ctx, "cart:owner-1")
	require.NoError(t, err)
	assert.Equal(t, "cart", string(raw))

	raw, err = base.Get(ctx, "checkout:owner-1")
	require.NoError(t, err)
	assert.Equal(t, "checkout", string(raw))

	nested := Namespaced(checkouts, "origin")
	require.NoError(t, nested.Set(ctx, "ORD-1", []byte("owner-1")))
	raw, err = base.Get(ctx, "checkout:origin:ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", string(raw))

	assert.Equal(t, 3, base.Len())
}
