// Package conv provides checked integer conversions.
//
// Voxel and grid arithmetic is done in int and int64; GPU descriptors take
// uint32 and the lookup texture stores uint8 slot coordinates. The helpers
// here reject values that would wrap instead of silently truncating them.
//
// For conversions that are provably safe by domain constraints (loop
// indices, values already validated at construction), use direct casts.
package conv
