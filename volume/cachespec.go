package volume

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// DefaultPadOffset is the halo width used by NewCacheSpec.
const DefaultPadOffset = 1

// CacheSpec describes the layout of one cache block: its size, the halo of
// neighbouring voxels stored around it, and the voxel type.
//
// CacheSpec is an immutable value; equal specs are interchangeable.
type CacheSpec struct {
	blockSize [3]int
	padOffset [3]int
	voxelType VoxelType
}

// NewCacheSpec returns a spec with a halo of DefaultPadOffset voxels per side.
func NewCacheSpec(blockSize [3]int, voxelType VoxelType) (CacheSpec, error) {
	return NewPaddedCacheSpec(blockSize, [3]int{DefaultPadOffset, DefaultPadOffset, DefaultPadOffset}, voxelType)
}

// NewPaddedCacheSpec returns a spec with an explicit halo width per axis.
// A padded block may not exceed the default 3D texture dimension limit.
func NewPaddedCacheSpec(blockSize, padOffset [3]int, voxelType VoxelType) (CacheSpec, error) {
	if err := voxelType.Validate(); err != nil {
		return CacheSpec{}, err
	}
	maxDim := int(gputypes.DefaultLimits().MaxTextureDimension3D)
	for d := 0; d < 3; d++ {
		if blockSize[d] <= 0 {
			return CacheSpec{}, fmt.Errorf("%w: block size %v", ErrInvalidCacheSpec, blockSize)
		}
		if padOffset[d] < 0 {
			return CacheSpec{}, fmt.Errorf("%w: pad offset %v", ErrInvalidCacheSpec, padOffset)
		}
		if padded := blockSize[d] + 2*padOffset[d]; padded > maxDim {
			return CacheSpec{}, fmt.Errorf("%w: padded block size %d exceeds texture limit %d", ErrInvalidCacheSpec, padded, maxDim)
		}
	}
	return CacheSpec{blockSize: blockSize, padOffset: padOffset, voxelType: voxelType}, nil
}

// BlockSize returns the unpadded block size.
func (s CacheSpec) BlockSize() [3]int { return s.blockSize }

// PadOffset returns the halo width per axis.
func (s CacheSpec) PadOffset() [3]int { return s.padOffset }

// PaddedBlockSize returns BlockSize + 2*PadOffset.
func (s CacheSpec) PaddedBlockSize() [3]int {
	return [3]int{
		s.blockSize[0] + 2*s.padOffset[0],
		s.blockSize[1] + 2*s.padOffset[1],
		s.blockSize[2] + 2*s.padOffset[2],
	}
}

// VoxelType returns the voxel type.
func (s CacheSpec) VoxelType() VoxelType { return s.voxelType }

// BytesPerVoxel is a shortcut for VoxelType().BytesPerVoxel().
func (s CacheSpec) BytesPerVoxel() int { return s.voxelType.BytesPerVoxel() }

// VoxelsPerBlock returns the number of voxels in one padded block.
func (s CacheSpec) VoxelsPerBlock() int {
	p := s.PaddedBlockSize()
	return p[0] * p[1] * p[2]
}

// BytesPerBlock returns the payload size of one padded block.
func (s CacheSpec) BytesPerBlock() int {
	return s.VoxelsPerBlock() * s.BytesPerVoxel()
}

// BlockMin returns the source coordinate of the padded block's min corner
// for the block at grid position pos.
func (s CacheSpec) BlockMin(pos [3]int64) [3]int64 {
	var m [3]int64
	for d := 0; d < 3; d++ {
		m[d] = pos[d]*int64(s.blockSize[d]) - int64(s.padOffset[d])
	}
	return m
}

// IsZero reports whether s is the zero value.
func (s CacheSpec) IsZero() bool { return s == CacheSpec{} }

// String implements fmt.Stringer.
func (s CacheSpec) String() string {
	return fmt.Sprintf("CacheSpec{block=%v pad=%v type=%s}", s.blockSize, s.padOffset, s.voxelType)
}
