package cull

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/blockstream/internal/geom"
)

// Shrink moves every plane of clip so that a block's (0,0,0) corner is inside
// the result iff the block's cell box overlaps clip.
func Shrink(clip geom.Polytope, blockSize [3]int) geom.Polytope {
	out := make(geom.Polytope, len(clip))
	for i, p := range clip {
		var offset [3]float64
		for d := 0; d < 3; d++ {
			if geom.Component(p.Normal, d) < 0 {
				offset[d] = -0.5
			} else {
				offset[d] = float64(blockSize[d]) - 0.5
			}
		}
		out[i] = geom.Plane{
			Normal:   p.Normal,
			Distance: p.Distance - r3.Dot(p.Normal, geom.Vec(offset)),
		}
	}
	return out
}

// Scale maps clip from voxel coordinates to grid coordinates.
func Scale(clip geom.Polytope, blockSize [3]int) geom.Polytope {
	out := make(geom.Polytope, len(clip))
	for i, p := range clip {
		n := r3.Vec{
			X: p.Normal.X * float64(blockSize[0]),
			Y: p.Normal.Y * float64(blockSize[1]),
			Z: p.Normal.Z * float64(blockSize[2]),
		}
		l := r3.Norm(n)
		out[i] = geom.Plane{Normal: r3.Scale(1/l, n), Distance: p.Distance / l}
	}
	return out
}

// Find returns the grid positions in [gridMin, gridMax] (inclusive) whose
// block overlaps clip. clip is in voxel coordinates.
func Find(clip geom.Polytope, blockSize [3]int, gridMin, gridMax [3]int64) *RequiredBlocks {
	gridClip := Scale(Shrink(clip, blockSize), blockSize)

	rb := &RequiredBlocks{}
	for z := gridMin[2]; z <= gridMax[2]; z++ {
		for y := gridMin[1]; y <= gridMax[1]; y++ {
			for x := gridMin[0]; x <= gridMax[0]; x++ {
				g := [3]int64{x, y, z}
				if gridClip.ContainsGrid(g) {
					rb.add(g)
				}
			}
		}
	}
	return rb
}

// FindFrustum culls against the view frustum of levelToNDC
// (projection·view·model·upscale).
func FindFrustum(levelToNDC mat.Matrix, blockSize [3]int, gridMin, gridMax [3]int64) *RequiredBlocks {
	return Find(geom.FrustumPolytope(levelToNDC), blockSize, gridMin, gridMax)
}

// GridRange returns the grid range to scan: the frustum bounds clamped to
// the level image and divided by the block size. ok is false if the clamped
// bounds are empty.
func GridRange(ndcToLevel mat.Matrix, levelDims [3]int64, blockSize [3]int) (gridMin, gridMax [3]int64, ok bool) {
	b := geom.FrustumBounds(ndcToLevel)
	for d := 0; d < 3; d++ {
		lo := math.Max(geom.Component(b.Min, d), 0)
		hi := math.Min(geom.Component(b.Max, d), float64(levelDims[d]-1))
		if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
			return gridMin, gridMax, false
		}
		gridMin[d] = int64(lo) / int64(blockSize[d])
		gridMax[d] = int64(hi) / int64(blockSize[d])
	}
	return gridMin, gridMax, true
}
