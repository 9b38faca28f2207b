package book

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Run("creates once and returns the same book", func(t *testing.T) {
		r := NewRegistry(0)
		a := r.GetOrCreate("asset-1")
		b := r.GetOrCreate("asset-1")
		assert.Same(t, a, b)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("concurrent create-if-absent yields one book", func(t *testing.T) {
		r := NewRegistry(0)
		books := make([]*OrderBook, 16)
		var wg sync.WaitGroup
		for i := range books {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				books[i] = r.GetOrCreate("asset-1")
			}(i)
		}
		wg.Wait()

		require.Equal(t, 1, r.Len())
		for _, b := range books[1:] {
			assert.Same(t, books[0], b)
		}
	})
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(0)

	_, ok := r.Get("missing")
	assert.False(t, ok, "Get must not create")
	assert.Equal(t, 0, r.Len())

	created := r.GetOrCreate("asset-1")
	got, ok := r.Get("asset-1")
	require.True(t, ok)
	assert.Same(t, created, got)
}

func TestRegistry_AssetIDs(t *testing.T) {
	r := NewRegistry(0)
	r.GetOrCreate("b")
	r.GetOrCreate("a")
	r.GetOrCreate("c")

	assert.Equal(t, []string{"a", "b", "c"}, r.AssetIDs())
}
