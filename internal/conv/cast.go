package conv

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (negative)", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (too large)", v)
	}
	return uint32(v), nil
}

// IntToUint8 converts int to uint8 safely.
func IntToUint8(v int) (uint8, error) {
	if v < 0 || v > math.MaxUint8 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint8", v)
	}
	return uint8(v), nil
}

// Int64ToInt converts int64 to int safely.
func Int64ToInt(v int64) (int, error) {
	if v > math.MaxInt || v < math.MinInt {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int", v)
	}
	return int(v), nil
}

// Uint32ToInt converts uint32 to int safely.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int (too large)", v)
	}
	return int(v), nil
}

// Extent3D converts a size to a texture extent.
func Extent3D(size [3]int) (gputypes.Extent3D, error) {
	var e [3]uint32
	for d := 0; d < 3; d++ {
		v, err := IntToUint32(size[d])
		if err != nil {
			return gputypes.Extent3D{}, fmt.Errorf("extent %v: %w", size, err)
		}
		e[d] = v
	}
	return gputypes.NewExtent3D(e[0], e[1], e[2]), nil
}

// Origin3D converts a texel position to a copy origin.
func Origin3D(pos [3]int) (gputypes.Origin3D, error) {
	var o [3]uint32
	for d := 0; d < 3; d++ {
		v, err := IntToUint32(pos[d])
		if err != nil {
			return gputypes.Origin3D{}, fmt.Errorf("origin %v: %w", pos, err)
		}
		o[d] = v
	}
	return gputypes.Origin3D{X: o[0], Y: o[1], Z: o[2]}, nil
}
