// Package testutil provides helpers for blockstream tests.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Volumes
//
//	rng := testutil.NewRNG(seed)
//	data := rng.Volume([3]int64{64, 64, 64}, 2) // uint16 voxels
//
// # Reference Blocks
//
//	want := testutil.ReferenceBlock(data, dims, bpv, min, padded)
//
// # Camera Matrices
//
//	pvm := testutil.Ortho(lo, hi)
//	pvm := testutil.Mul(testutil.Perspective(fovY, aspect, near, far), view)
package testutil
