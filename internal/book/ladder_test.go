package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlab/bookkeeper/internal/domain"
)

func TestLadder_Upsert(t *testing.T) {
	t.Run("insert then replace", func(t *testing.T) {
		l := NewBidLadder()
		l.Upsert(0.48, 30)
		l.Upsert(0.48, 45)

		require.Equal(t, 1, l.Len())
		size, ok := l.SizeAt(0.48)
		require.True(t, ok)
		assert.Equal(t, 45.0, size)
	})

	t.Run("idempotent", func(t *testing.T) {
		l := NewBidLadder()
		l.Upsert(0.48, 30)
		once := l.TopN(l.Len())

		l.Upsert(0.48, 30)
		assert.Equal(t, once, l.TopN(l.Len()))
		assert.Equal(t, 1, l.Len())
	})

	t.Run("zero size removes", func(t *testing.T) {
		l := NewAskLadder()
		l.Upsert(0.52, 25)
		l.Upsert(0.52, 0)

		assert.Equal(t, 0, l.Len())
		_, ok := l.SizeAt(0.52)
		assert.False(t, ok)
	})

	t.Run("zero size for unknown price is a no-op", func(t *testing.T) {
		l := NewAskLadder()
		l.Upsert(0.52, 25)
		l.Upsert(0.99, 0)

		assert.Equal(t, 1, l.Len())
	})

	t.Run("tolerance merges near-identical prices", func(t *testing.T) {
		l := NewBidLadder()
		l.Upsert(0.57000001, 10)
		l.Upsert(0.57, 20)

		require.Equal(t, 1, l.Len())
		size, ok := l.SizeAt(0.57)
		require.True(t, ok)
		assert.Equal(t, 20.0, size)
	})
}

func TestLadder_Best(t *testing.T) {
	t.Run("empty ladder", func(t *testing.T) {
		_, ok := NewBidLadder().Best()
		assert.False(t, ok)
	})

	t.Run("bid best is max price", func(t *testing.T) {
		l := NewBidLadder()
		l.Upsert(0.48, 30)
		l.Upsert(0.50, 15)
		l.Upsert(0.49, 20)

		best, ok := l.Best()
		require.True(t, ok)
		assert.Equal(t, domain.PriceLevel{Price: 0.50, Size: 15}, best)
	})

	t.Run("ask best is min price", func(t *testing.T) {
		l := NewAskLadder()
		l.Upsert(0.54, 10)
		l.Upsert(0.52, 25)
		l.Upsert(0.53, 60)

		best, ok := l.Best()
		require.True(t, ok)
		assert.Equal(t, domain.PriceLevel{Price: 0.52, Size: 25}, best)
	})
}

func TestLadder_TopN(t *testing.T) {
	l := NewBidLadder()
	l.Upsert(0.48, 30)
	l.Upsert(0.50, 15)
	l.Upsert(0.49, 20)

	t.Run("orders best to worst", func(t *testing.T) {
		top := l.TopN(2)
		require.Len(t, top, 2)
		assert.Equal(t, 0.50, top[0].Price)
		assert.Equal(t, 0.49, top[1].Price)
	})

	t.Run("n beyond depth returns all", func(t *testing.T) {
		assert.Len(t, l.TopN(99), 3)
	})

	t.Run("non-positive n yields empty", func(t *testing.T) {
		assert.Empty(t, l.TopN(0))
		assert.Empty(t, l.TopN(-3))
	})
}

func TestLadder_Sizes(t *testing.T) {
	l := NewAskLadder()
	l.Upsert(0.52, 25)
	l.Upsert(0.53, 60)

	t.Run("aggregate size", func(t *testing.T) {
		assert.Equal(t, 85.0, l.AggregateSize())
	})

	t.Run("total size at matched bucket", func(t *testing.T) {
		assert.Equal(t, 60.0, l.TotalSizeAt(0.53))
	})

	t.Run("no match returns zero and absent", func(t *testing.T) {
		assert.Equal(t, 0.0, l.TotalSizeAt(0.60))
		_, ok := l.SizeAt(0.60)
		assert.False(t, ok)
	})
}
