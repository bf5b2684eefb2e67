// Package mem isolates raw memory access for voxel payloads.
//
// Aligned allocation for staging memory lives here. Callers outside this
// package only ever see []byte.
//
// # Strided Copies
//
// Copy3D and Zero3D operate on x-fastest 3D arrays addressed by a
// per-axis offset and extent. They are the bulk primitives behind the grid
// copier.
package mem
