package mem

import "unsafe"

// Alignment of buffers returned by AllocAligned.
const Alignment = 64

// AllocAligned allocates a byte slice of the given size whose first byte sits
// on an Alignment boundary.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}
	buf := make([]byte, size+Alignment)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // alignment arithmetic
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)
	return buf[offset : offset+uintptr(size)]
}

// Copy3D copies a size[0] x size[1] x size[2] voxel box from src (extent
// srcDims, box origin srcOff) into dst (extent dstDims, box origin dstOff).
// All arrays are x fastest; bpv is bytes per voxel.
func Copy3D(dst []byte, dstDims, dstOff [3]int, src []byte, srcDims, srcOff [3]int, size [3]int, bpv int) {
	row := size[0] * bpv
	if row <= 0 || size[1] <= 0 || size[2] <= 0 {
		return
	}
	dstRow := dstDims[0] * bpv
	dstSlice := dstRow * dstDims[1]
	srcRow := srcDims[0] * bpv
	srcSlice := srcRow * srcDims[1]

	for z := 0; z < size[2]; z++ {
		do := (dstOff[2]+z)*dstSlice + dstOff[1]*dstRow + dstOff[0]*bpv
		so := (srcOff[2]+z)*srcSlice + srcOff[1]*srcRow + srcOff[0]*bpv
		if row == dstRow && row == srcRow {
			n := row * size[1]
			copy(dst[do:do+n], src[so:so+n])
			continue
		}
		for y := 0; y < size[1]; y++ {
			copy(dst[do:do+row], src[so:so+row])
			do += dstRow
			so += srcRow
		}
	}
}

// Zero3D clears a size box at off inside dst (extent dims).
func Zero3D(dst []byte, dims, off, size [3]int, bpv int) {
	row := size[0] * bpv
	if row <= 0 || size[1] <= 0 || size[2] <= 0 {
		return
	}
	dstRow := dims[0] * bpv
	dstSlice := dstRow * dims[1]
	for z := 0; z < size[2]; z++ {
		o := (off[2]+z)*dstSlice + off[1]*dstRow + off[0]*bpv
		if row == dstRow {
			clear(dst[o : o+row*size[1]])
			continue
		}
		for y := 0; y < size[1]; y++ {
			clear(dst[o : o+row])
			o += dstRow
		}
	}
}
