package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunImageCacheContract runs a suite of tests verifying that an
// ImageCache implementation adheres to the interface contract. Adapter
// packages call it from their own tests.
func RunImageCacheContract(t *testing.T, cache ImageCache) {
	ctx := context.Background()

	t.Run("Get Missing", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, "contract/missing")
		require.NoError(t, err, "a miss is not an error")
		assert.False(t, ok)
	})

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "contract/start", "data:image/png;base64,AAAA"))

		img, ok, err := cache.Get(ctx, "contract/start")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "data:image/png;base64,AAAA", img)
	})

	t.Run("Put Overwrites", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "contract/start", "v1"))
		require.NoError(t, cache.Put(ctx, "contract/start", "v2"))

		img, ok, err := cache.Get(ctx, "contract/start")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v2", img)
	})

	t.Run("GetAll", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "contract/a", "img-a"))
		require.NoError(t, cache.Put(ctx, "contract/b", "img-b"))

		all, err := cache.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, "img-a", all["contract/a"])
		assert.Equal(t, "img-b", all["contract/b"])
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "contract/a", "img-a"))
		require.NoError(t, cache.Clear(ctx))

		_, ok, err := cache.Get(ctx, "contract/a")
		require.NoError(t, err)
		assert.False(t, ok, "Get after Clear should miss")

		all, err := cache.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
