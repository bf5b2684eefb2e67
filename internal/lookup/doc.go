// Package lookup builds the indirection texture that maps required blocks to
// cache slots.
//
// The texture covers the bounding box of the required grid positions plus a
// one-cell border on every side. Each texel is RGBA8:
//
//	R, G, B  slot position in the cache block grid
//	A        level - baseLevel + 1, or 0 for the sentinel
//
// A texel left at zero points at slot (0,0,0) with scale entry 0, the
// reserved out-of-bounds sentinel.
package lookup
