// Package gridcopy assembles padded cache blocks from cell grids.
//
// A destination block may straddle the image border and any number of source
// cells. Copy clips it against the image, zero-fills the clipped slabs, and
// copies the overlap of every covering cell:
//
//	image   |-------|-------|-------|---
//	block       [==================]
//	spans       [c0 ][   c1   ][ c2]
//
// Cells that are not resident leave a zero-filled hole and make the copy
// incomplete. Residency is only queried; no loading or eviction happens here.
package gridcopy
