package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

type softTexture struct {
	tex       *Texture
	texelSize int
	data      []byte
}

// SoftwareDevice is a Device backed by host memory.
type SoftwareDevice struct {
	mu       sync.Mutex
	next     uintptr
	textures map[uintptr]*softTexture

	writes       int
	bytesWritten int64
}

var _ Device = (*SoftwareDevice)(nil)

// NewSoftwareDevice returns an empty device.
func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{textures: make(map[uintptr]*softTexture)}
}

// CreateTexture implements Device. Only single-sampled 3D textures without
// mip chains are supported.
func (d *SoftwareDevice) CreateTexture(desc *gputypes.TextureDescriptor) (*Texture, error) {
	if desc.Dimension != gputypes.TextureDimension3D || desc.MipLevelCount > 1 || desc.SampleCount > 1 {
		return nil, fmt.Errorf("gpu: unsupported texture %q: %s", desc.Label, desc.Dimension)
	}
	texel, err := TexelSize(desc.Format)
	if err != nil {
		return nil, err
	}
	s := desc.Size
	if s.Width == 0 || s.Height == 0 || s.DepthOrArrayLayers == 0 {
		return nil, fmt.Errorf("gpu: empty texture %q", desc.Label)
	}
	n := int(s.Width) * int(s.Height) * int(s.DepthOrArrayLayers) * texel

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	tex := &Texture{Handle: d.next, Descriptor: *desc}
	d.textures[tex.Handle] = &softTexture{tex: tex, texelSize: texel, data: make([]byte, n)}
	return tex, nil
}

// WriteTexture implements Device.
func (d *SoftwareDevice) WriteTexture(dst gputypes.ImageCopyTexture, data []byte, layout gputypes.TextureDataLayout, size gputypes.Extent3D) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.textures[dst.Texture]
	if !ok {
		return fmt.Errorf("%w: handle %d", ErrUnknownTexture, dst.Texture)
	}
	desc := st.tex.Descriptor
	if !desc.Usage.Contains(gputypes.TextureUsageCopyDst) {
		return fmt.Errorf("%w: %q lacks CopyDst usage", ErrInvalidCopy, desc.Label)
	}
	if dst.MipLevel != 0 {
		return fmt.Errorf("%w: mip level %d", ErrInvalidCopy, dst.MipLevel)
	}
	o := dst.Origin
	if uint64(o.X)+uint64(size.Width) > uint64(desc.Size.Width) ||
		uint64(o.Y)+uint64(size.Height) > uint64(desc.Size.Height) ||
		uint64(o.Z)+uint64(size.DepthOrArrayLayers) > uint64(desc.Size.DepthOrArrayLayers) {
		return fmt.Errorf("%w: region %+v at %+v exceeds %q %+v", ErrInvalidCopy, size, o, desc.Label, desc.Size)
	}

	row := int(size.Width) * st.texelSize
	srcRow := int(layout.BytesPerRow)
	if srcRow == 0 {
		srcRow = row
	}
	rowsPerImage := int(layout.RowsPerImage)
	if rowsPerImage == 0 {
		rowsPerImage = int(size.Height)
	}
	if srcRow < row || rowsPerImage < int(size.Height) {
		return fmt.Errorf("%w: layout %+v too small for %+v", ErrInvalidCopy, layout, size)
	}
	depth := int(size.DepthOrArrayLayers)
	if depth > 0 && size.Height > 0 {
		last := int(layout.Offset) + (depth-1)*rowsPerImage*srcRow + (int(size.Height)-1)*srcRow + row
		if last > len(data) {
			return fmt.Errorf("%w: %d bytes of data, need %d", ErrInvalidCopy, len(data), last)
		}
	}

	dstRow := int(desc.Size.Width) * st.texelSize
	dstSlice := dstRow * int(desc.Size.Height)
	for z := 0; z < depth; z++ {
		for y := 0; y < int(size.Height); y++ {
			so := int(layout.Offset) + z*rowsPerImage*srcRow + y*srcRow
			do := (int(o.Z)+z)*dstSlice + (int(o.Y)+y)*dstRow + int(o.X)*st.texelSize
			copy(st.data[do:do+row], data[so:so+row])
		}
	}
	d.writes++
	d.bytesWritten += int64(row * int(size.Height) * depth)
	return nil
}

// DestroyTexture implements Device.
func (d *SoftwareDevice) DestroyTexture(tex *Texture) {
	if tex == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, tex.Handle)
}

// ReadTexture copies a tightly packed region out of tex.
func (d *SoftwareDevice) ReadTexture(tex *Texture, origin [3]int, size [3]int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.textures[tex.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", ErrUnknownTexture, tex.Handle)
	}
	full := st.tex.Size()
	for i := 0; i < 3; i++ {
		if origin[i] < 0 || size[i] < 0 || origin[i]+size[i] > full[i] {
			return nil, fmt.Errorf("%w: read %v at %v exceeds %v", ErrInvalidCopy, size, origin, full)
		}
	}
	row := size[0] * st.texelSize
	out := make([]byte, row*size[1]*size[2])
	dstRow := full[0] * st.texelSize
	dstSlice := dstRow * full[1]
	i := 0
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			so := (origin[2]+z)*dstSlice + (origin[1]+y)*dstRow + origin[0]*st.texelSize
			copy(out[i:i+row], st.data[so:so+row])
			i += row
		}
	}
	return out, nil
}

// Stats returns the number of writes and bytes written so far.
func (d *SoftwareDevice) Stats() (writes int, bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes, d.bytesWritten
}

// Len returns the number of live textures.
func (d *SoftwareDevice) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}
