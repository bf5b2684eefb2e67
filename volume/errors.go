package volume

import "errors"

var (
	// ErrUnsupportedVoxelType is returned for voxel types other than Uint8 and Uint16.
	ErrUnsupportedVoxelType = errors.New("unsupported voxel type")

	// ErrInvalidCacheSpec is returned for malformed block or padding sizes.
	ErrInvalidCacheSpec = errors.New("invalid cache spec")

	// ErrInvalidStack is returned for malformed multi-resolution stacks.
	ErrInvalidStack = errors.New("invalid resolution stack")
)
