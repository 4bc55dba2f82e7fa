package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", []byte(`[{"id":"1"}]`)))
		got, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"1"}]`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k2", []byte(`[1]`)))
		require.NoError(t, s.Set(ctx, "k2", []byte(`[1,2]`)))
		got, err := s.Get(ctx, "k2")
		require.NoError(t, err)
		assert.JSONEq(t, `[1,2]`, string(got))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k3", []byte(`[]`)))
		require.NoError(t, s.Delete(ctx, "k3"))
		_, err := s.Get(ctx, "k3")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, s.Delete(ctx, "never-existed"))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestScoped(t *testing.T) {
	assert.Equal(t, "milkShopOrders", Scoped(KeyOrders, ""))
	assert.Equal(t, "milkShopOrders_u1", Scoped(KeyOrders, "u1"))
	assert.Equal(t, "milkShopSellerOrders_s9", Scoped(KeySellerOrders, "s9"))
}
