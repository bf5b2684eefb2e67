//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint32(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToUint32(0)
		assert.NoError(t, err)
		assert.Equal(t, uint32(0), got)
	})

	t.Run("valid max", func(t *testing.T) {
		got, err := IntToUint32(math.MaxUint32)
		assert.NoError(t, err)
		assert.Equal(t, uint32(math.MaxUint32), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint32(-1)
		assert.Error(t, err)
	})

	t.Run("invalid too large", func(t *testing.T) {
		_, err := IntToUint32(math.MaxUint32 + 1)
		assert.Error(t, err)
	})
}

func TestIntToUint8(t *testing.T) {
	got, err := IntToUint8(255)
	assert.NoError(t, err)
	assert.Equal(t, uint8(255), got)

	_, err = IntToUint8(256)
	assert.Error(t, err)
	_, err = IntToUint8(-1)
	assert.Error(t, err)
}

func TestInt64ToInt(t *testing.T) {
	got, err := Int64ToInt(-42)
	assert.NoError(t, err)
	assert.Equal(t, -42, got)
}

func TestUint32ToInt(t *testing.T) {
	got, err := Uint32ToInt(math.MaxUint32)
	assert.NoError(t, err)
	assert.Equal(t, math.MaxUint32, got)
}

func TestExtentAndOrigin(t *testing.T) {
	e, err := Extent3D([3]int{34, 34, 18})
	require.NoError(t, err)
	assert.Equal(t, gputypes.NewExtent3D(34, 34, 18), e)

	o, err := Origin3D([3]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, gputypes.Origin3D{X: 1, Y: 2, Z: 3}, o)

	_, err = Extent3D([3]int{1, -1, 1})
	assert.Error(t, err)
	_, err = Origin3D([3]int{-5, 0, 0})
	assert.Error(t, err)
}
