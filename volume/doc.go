// Package volume describes the data the streaming engine consumes: voxel
// types, the block cache layout (CacheSpec), and the multi-resolution stack
// of cell grids a dataset exposes.
//
// # Cell Grids
//
// A resolution level exposes its voxels as a regular grid of cells. Border
// cells are truncated to the image bounds. Two flavours exist:
//
//   - CellGrid: every cell is always available (in-memory data).
//   - VolatileCellGrid: a cell may not be resident yet (lazily paged data).
//
// The flavour is fixed when a Level is built: Plain and Volatile wrap the
// grid in a tagged Grid value, so no per-call type inspection is needed.
// Workers obtain an Accessor from a Grid; an Accessor carries per-worker
// scratch state and must not be shared between goroutines.
package volume
