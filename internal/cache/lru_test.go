package cache

import (
	"testing"

	"github.com/hupe1980/blockstream/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(x int64) Key {
	return Key{Stack: volume.StackID{Setup: 1}, Level: 0, Pos: [3]int64{x, 0, 0}}
}

func TestNew_Validation(t *testing.T) {
	_, err := New([3]int{2, 2, 2}, 0)
	require.ErrorIs(t, err, ErrInvalidGrid)

	_, err = New([3]int{1, 1, 1}, 1)
	require.ErrorIs(t, err, ErrInvalidGrid)

	_, err = New([3]int{0, 4, 4}, 1)
	require.ErrorIs(t, err, ErrInvalidGrid)

	c, err := New([3]int{4, 2, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, 15, c.Capacity())
	assert.Equal(t, [3]int{0, 0, 0}, c.Sentinel().GridPos())
}

func TestLRU_NeverExceedsCapacity(t *testing.T) {
	c, err := New([3]int{5, 1, 1}, 1)
	require.NoError(t, err)
	require.Equal(t, 4, c.Capacity())

	for i := int64(0); i < 4; i++ {
		_, _, evicted := c.Add(key(i))
		assert.False(t, evicted)
	}
	assert.Equal(t, 4, c.Len())

	// capacity+1 adds evict the first key
	slot, ev, didEvict := c.Add(key(4))
	require.True(t, didEvict)
	assert.Equal(t, key(0), ev)
	assert.Equal(t, [3]int{1, 0, 0}, slot.GridPos())
	assert.Equal(t, 4, c.Len())

	_, ok := c.Peek(key(0))
	assert.False(t, ok)

	for i := int64(5); i < 20; i++ {
		c.Add(key(i))
		assert.LessOrEqual(t, c.Len(), c.Capacity())
	}
	_, _, evictions := c.Stats()
	assert.Equal(t, int64(16), evictions)
}

func TestLRU_GetRefreshesRecency(t *testing.T) {
	c, err := New([3]int{4, 1, 1}, 1)
	require.NoError(t, err)

	c.Add(key(0))
	c.Add(key(1))
	c.Add(key(2))

	_, ok := c.Get(key(0))
	require.True(t, ok)

	_, ev, didEvict := c.Add(key(3))
	require.True(t, didEvict)
	assert.Equal(t, key(1), ev)

	_, ok = c.Get(key(42))
	assert.False(t, ok)
	hits, misses, _ := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_SlotsUnravelXFastest(t *testing.T) {
	c, err := New([3]int{2, 2, 2}, 1)
	require.NoError(t, err)

	want := [][3]int{
		{1, 0, 0},
		{0, 1, 0}, {1, 1, 0},
		{0, 0, 1}, {1, 0, 1},
		{0, 1, 1}, {1, 1, 1},
	}
	for i, w := range want {
		slot, _, _ := c.Add(key(int64(i)))
		assert.Equal(t, w, slot.GridPos())
		assert.Equal(t, [3]int{w[0] * 34, w[1] * 34, w[2] * 18}, slot.Origin([3]int{34, 34, 18}))
	}
}

func TestLRU_DuplicateAddPanics(t *testing.T) {
	c, err := New([3]int{3, 1, 1}, 1)
	require.NoError(t, err)
	c.Add(key(7))
	assert.Panics(t, func() { c.Add(key(7)) })
}

func TestLRU_StateAndRemove(t *testing.T) {
	c, err := New([3]int{3, 1, 1}, 1)
	require.NoError(t, err)

	slot, _, _ := c.Add(key(1))
	assert.Equal(t, Empty, slot.State())
	assert.True(t, c.SetState(key(1), Incomplete))
	assert.Equal(t, Incomplete, slot.State())
	assert.False(t, c.SetState(key(9), Complete))

	assert.True(t, c.Remove(key(1)))
	assert.False(t, c.Remove(key(1)))
	assert.Equal(t, 0, c.Len())

	again, _, didEvict := c.Add(key(2))
	assert.False(t, didEvict)
	assert.Equal(t, slot.GridPos(), again.GridPos())
	assert.Equal(t, Empty, again.State())
}

func TestFindSuitableGridSize(t *testing.T) {
	spec, err := volume.NewCacheSpec([3]int{30, 30, 30}, volume.Uint16)
	require.NoError(t, err)

	// 64 MiB of uint16 is 2^25 voxels, a cube of side 322.5; padded blocks are 32.
	assert.Equal(t, [3]int{10, 10, 10}, FindSuitableGridSize(spec, 64))
}
