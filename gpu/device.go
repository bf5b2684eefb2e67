package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

var (
	// ErrUnknownTexture is returned for handles that were never created or
	// were destroyed.
	ErrUnknownTexture = errors.New("gpu: unknown texture")
	// ErrInvalidCopy is returned when a write does not fit its texture.
	ErrInvalidCopy = errors.New("gpu: invalid texture copy")
	// ErrUnsupportedFormat is returned for texture formats without a known
	// texel size.
	ErrUnsupportedFormat = errors.New("gpu: unsupported texture format")
)

// Texture is a created texture.
type Texture struct {
	Handle     uintptr
	Descriptor gputypes.TextureDescriptor
}

// Size returns the texture size in texels.
func (t *Texture) Size() [3]int {
	s := t.Descriptor.Size
	return [3]int{int(s.Width), int(s.Height), int(s.DepthOrArrayLayers)}
}

// Device creates and writes textures.
type Device interface {
	CreateTexture(desc *gputypes.TextureDescriptor) (*Texture, error)
	WriteTexture(dst gputypes.ImageCopyTexture, data []byte, layout gputypes.TextureDataLayout, size gputypes.Extent3D) error
	DestroyTexture(tex *Texture)
}

// TexelSize returns the bytes per texel of the formats used for volume
// textures.
func TexelSize(f gputypes.TextureFormat) (int, error) {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Uint:
		return 1, nil
	case gputypes.TextureFormatR16Unorm, gputypes.TextureFormatR16Uint:
		return 2, nil
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8Uint:
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// Volume3D returns the descriptor of a sampled 3D texture that is written
// from the host.
func Volume3D(label string, size gputypes.Extent3D, format gputypes.TextureFormat) *gputypes.TextureDescriptor {
	return &gputypes.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension3D,
		Format:        format,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	}
}

// TightLayout returns the data layout of a tightly packed region.
func TightLayout(size gputypes.Extent3D, texelSize int) gputypes.TextureDataLayout {
	return gputypes.TextureDataLayout{
		BytesPerRow:  size.Width * uint32(texelSize),
		RowsPerImage: size.Height,
	}
}
