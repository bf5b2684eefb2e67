package volume

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// VoxelType is the storage type of a single voxel.
type VoxelType uint8

const (
	// VoxelInvalid is the zero value and is never valid.
	VoxelInvalid VoxelType = iota
	// Uint8 voxels are uploaded as R8Unorm.
	Uint8
	// Uint16 voxels are uploaded as R16Unorm.
	Uint16
)

// String returns the type name.
func (t VoxelType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	default:
		return fmt.Sprintf("VoxelType(%d)", uint8(t))
	}
}

// Validate returns ErrUnsupportedVoxelType unless t is Uint8 or Uint16.
func (t VoxelType) Validate() error {
	switch t {
	case Uint8, Uint16:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedVoxelType, t)
	}
}

// BytesPerVoxel returns the voxel size in bytes, or 0 for unsupported types.
func (t VoxelType) BytesPerVoxel() int {
	switch t {
	case Uint8:
		return 1
	case Uint16:
		return 2
	default:
		return 0
	}
}

// TextureFormat returns the cache texture format for t.
func (t VoxelType) TextureFormat() (gputypes.TextureFormat, error) {
	switch t {
	case Uint8:
		return gputypes.TextureFormatR8Unorm, nil
	case Uint16:
		return gputypes.TextureFormatR16Unorm, nil
	default:
		return gputypes.TextureFormatUndefined, t.Validate()
	}
}
