// Package cull finds the grid blocks of a resolution level that overlap the
// view frustum.
//
// The frustum is first shrunk so that testing a block's (0,0,0) corner is a
// conservative overlap test for the whole padded cell box
// [-0.5, blockSize-0.5]³, then scaled by the block size so that integer grid
// positions can be tested directly. Every grid position inside the
// requested range is tested; no acceleration structure is used.
package cull
