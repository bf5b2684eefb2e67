package lookup

import (
	"fmt"

	"github.com/hupe1980/blockstream/internal/conv"
	"github.com/hupe1980/blockstream/volume"
)

// TexelSize is the size of one lookup texel in bytes.
const TexelSize = 4

// Texture is the lookup texture of one frame.
type Texture struct {
	size   [3]int
	offset [3]int64
	base   int
	data   []byte
	scales [][3]float64
}

// New returns an empty texture.
func New() *Texture { return &Texture{} }

// Reset sizes the texture for required grid positions in [min, max] at base
// level base, clears it to the sentinel and rebuilds the scale table.
func (t *Texture) Reset(min, max [3]int64, base int, levels []*volume.Level) error {
	for d := 0; d < 3; d++ {
		if max[d] < min[d] {
			return fmt.Errorf("lookup: empty range %v..%v", min, max)
		}
		n, err := conv.Int64ToInt(max[d] - min[d] + 3)
		if err != nil {
			return err
		}
		t.size[d] = n
		t.offset[d] = 1 - min[d]
	}
	t.base = base

	n := t.size[0] * t.size[1] * t.size[2] * TexelSize
	if cap(t.data) < n {
		t.data = make([]byte, n)
	} else {
		t.data = t.data[:n]
		clear(t.data)
	}

	t.scales = t.scales[:0]
	t.scales = append(t.scales, [3]float64{})
	rb := levels[base].R
	for _, l := range levels[base:] {
		s := l.S()
		t.scales = append(t.scales, [3]float64{
			s[0] * float64(rb[0]),
			s[1] * float64(rb[1]),
			s[2] * float64(rb[2]),
		})
	}
	return nil
}

// Size returns the texture size in texels.
func (t *Texture) Size() [3]int { return t.size }

// Offset returns the translation from base level grid positions to texels.
func (t *Texture) Offset() [3]int64 { return t.offset }

// BaseLevel returns the base level the texture was built for.
func (t *Texture) BaseLevel() int { return t.base }

// Data returns the texels, x fastest.
func (t *Texture) Data() []byte { return t.data }

// Scales returns the per-entry block scale table. Entry 0 belongs to the
// sentinel; entry i+1 to level base+i.
func (t *Texture) Scales() [][3]float64 { return t.scales }

func (t *Texture) index(gridPos [3]int64) (int, bool) {
	var p [3]int
	for d := 0; d < 3; d++ {
		v := gridPos[d] + t.offset[d]
		if v < 0 || v >= int64(t.size[d]) {
			return 0, false
		}
		p[d] = int(v)
	}
	return ((p[2]*t.size[1]+p[1])*t.size[0] + p[0]) * TexelSize, true
}

// Set points the texel of base level grid position gridPos at slot, holding
// a block of the given level.
func (t *Texture) Set(gridPos [3]int64, slot [3]int, level int) error {
	i, ok := t.index(gridPos)
	if !ok {
		return fmt.Errorf("lookup: grid position %v outside texture", gridPos)
	}
	for d := 0; d < 3; d++ {
		v, err := conv.IntToUint8(slot[d])
		if err != nil {
			return fmt.Errorf("lookup: slot %v: %w", slot, err)
		}
		t.data[i+d] = v
	}
	a, err := conv.IntToUint8(level - t.base + 1)
	if err != nil || a == 0 {
		return fmt.Errorf("lookup: level %d below base %d", level, t.base)
	}
	t.data[i+3] = a
	return nil
}

// At returns the slot and level stored for gridPos. ok is false for the
// sentinel.
func (t *Texture) At(gridPos [3]int64) (slot [3]int, level int, ok bool) {
	i, in := t.index(gridPos)
	if !in || t.data[i+3] == 0 {
		return slot, 0, false
	}
	return [3]int{int(t.data[i]), int(t.data[i+1]), int(t.data[i+2])}, int(t.data[i+3]) - 1 + t.base, true
}
