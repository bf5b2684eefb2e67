package gridcopy

import (
	"github.com/hupe1980/blockstream/internal/mem"
	"github.com/hupe1980/blockstream/volume"
)

// span is the overlap of the destination range with one cell along one axis.
type span struct {
	cell    int64
	cellOff int
	dstOff  int
	length  int
}

// Copier copies padded blocks of a fixed size. A Copier keeps scratch state
// and must not be shared between goroutines.
type Copier struct {
	padded [3]int
	bpv    int
	spans  [3][]span
}

// New returns a copier for blocks of the given padded size.
func New(padded [3]int, bytesPerVoxel int) *Copier {
	return &Copier{padded: padded, bpv: bytesPerVoxel}
}

// ForSpec returns a copier for the padded blocks of spec.
func ForSpec(spec volume.CacheSpec) *Copier {
	return New(spec.PaddedBlockSize(), spec.BytesPerVoxel())
}

// BlockBytes returns the size of one destination block.
func (c *Copier) BlockBytes() int {
	return c.padded[0] * c.padded[1] * c.padded[2] * c.bpv
}

// Copy fills dst with the block whose min corner is at source voxel min and
// reports whether every covering cell was resident. Regions outside the image
// and regions of missing cells are zero.
func (c *Copier) Copy(dst []byte, min [3]int64, acc *volume.Accessor) bool {
	dst = dst[:c.BlockBytes()]
	lo, size, ok := c.clip(dst, min, acc.Dims(), true)
	if !ok {
		return true
	}
	c.split(min, lo, size, acc)

	complete := true
	for _, sz := range c.spans[2] {
		for _, sy := range c.spans[1] {
			for _, sx := range c.spans[0] {
				pos := [3]int64{sx.cell, sy.cell, sz.cell}
				dstOff := [3]int{sx.dstOff, sy.dstOff, sz.dstOff}
				n := [3]int{sx.length, sy.length, sz.length}
				data, resident := acc.Cell(pos)
				if !resident {
					complete = false
					mem.Zero3D(dst, c.padded, dstOff, n, c.bpv)
					continue
				}
				cellDims := [3]int{
					acc.CellExtent(0, pos[0]),
					acc.CellExtent(1, pos[1]),
					acc.CellExtent(2, pos[2]),
				}
				mem.Copy3D(dst, c.padded, dstOff, data, cellDims, [3]int{sx.cellOff, sy.cellOff, sz.cellOff}, n, c.bpv)
			}
		}
	}
	return complete
}

// CanLoadCompletely reports whether every cell covering the block at min is
// resident. With failFast the scan stops at the first missing cell;
// otherwise every covering cell is queried, which lets volatile grids
// schedule all missing cells at once.
func (c *Copier) CanLoadCompletely(min [3]int64, acc *volume.Accessor, failFast bool) bool {
	lo, size, ok := c.clip(nil, min, acc.Dims(), false)
	if !ok {
		return true
	}
	c.split(min, lo, size, acc)

	complete := true
	for _, sz := range c.spans[2] {
		for _, sy := range c.spans[1] {
			for _, sx := range c.spans[0] {
				if _, resident := acc.Cell([3]int64{sx.cell, sy.cell, sz.cell}); !resident {
					if failFast {
						return false
					}
					complete = false
				}
			}
		}
	}
	return complete
}

// CanLoadPartially reports whether any cell covering the block at min is
// resident.
func (c *Copier) CanLoadPartially(min [3]int64, acc *volume.Accessor) bool {
	lo, size, ok := c.clip(nil, min, acc.Dims(), false)
	if !ok {
		return false
	}
	c.split(min, lo, size, acc)

	for _, sz := range c.spans[2] {
		for _, sy := range c.spans[1] {
			for _, sx := range c.spans[0] {
				if _, resident := acc.Cell([3]int64{sx.cell, sy.cell, sz.cell}); resident {
					return true
				}
			}
		}
	}
	return false
}

// clip intersects the block with the image. It returns the in-bounds min
// corner in source coordinates and its size. When zero is set the clipped
// slabs of dst are cleared. ok is false if nothing of the block lies inside
// the image, in which case dst (if zeroing) is cleared entirely.
func (c *Copier) clip(dst []byte, min [3]int64, dims [3]int64, zero bool) (lo [3]int64, size [3]int, ok bool) {
	dstLo := [3]int{}
	dstSize := c.padded
	for d := 2; d >= 0; d-- {
		start, end := min[d], min[d]+int64(c.padded[d])
		if start < 0 {
			start = 0
		}
		if end > dims[d] {
			end = dims[d]
		}
		if start >= end {
			if zero {
				clear(dst)
			}
			return lo, size, false
		}
		before := int(start - min[d])
		after := int(min[d] + int64(c.padded[d]) - end)
		if zero {
			if before > 0 {
				off, n := dstLo, dstSize
				n[d] = before
				mem.Zero3D(dst, c.padded, off, n, c.bpv)
			}
			if after > 0 {
				off, n := dstLo, dstSize
				off[d] = c.padded[d] - after
				n[d] = after
				mem.Zero3D(dst, c.padded, off, n, c.bpv)
			}
		}
		dstLo[d] = before
		dstSize[d] = int(end - start)
		lo[d] = start
		size[d] = dstSize[d]
	}
	return lo, size, true
}

// split decomposes the in-bounds range [lo, lo+size) into per-axis cell
// spans with destination offsets relative to the block min.
func (c *Copier) split(min, lo [3]int64, size [3]int, acc *volume.Accessor) {
	cellDims := acc.CellDims()
	for d := 0; d < 3; d++ {
		c.spans[d] = c.spans[d][:0]
		cd := int64(cellDims[d])
		pos := lo[d]
		end := lo[d] + int64(size[d])
		for pos < end {
			cell := pos / cd
			cellEnd := (cell + 1) * cd
			if cellEnd > end {
				cellEnd = end
			}
			c.spans[d] = append(c.spans[d], span{
				cell:    cell,
				cellOff: int(pos - cell*cd),
				dstOff:  int(pos - min[d]),
				length:  int(cellEnd - pos),
			})
			pos = cellEnd
		}
	}
}
