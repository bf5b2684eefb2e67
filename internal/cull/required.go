package cull

import "fmt"

// RequiredBlocks is the set of grid positions overlapping the frustum and
// their bounding box.
type RequiredBlocks struct {
	positions [][3]int64
	min, max  [3]int64
}

func (r *RequiredBlocks) add(g [3]int64) {
	if len(r.positions) == 0 {
		r.min, r.max = g, g
	} else {
		for d := 0; d < 3; d++ {
			r.min[d] = min(r.min[d], g[d])
			r.max[d] = max(r.max[d], g[d])
		}
	}
	r.positions = append(r.positions, g)
}

// Positions returns the grid positions in scan order (x fastest).
func (r *RequiredBlocks) Positions() [][3]int64 { return r.positions }

// Len returns the number of required blocks.
func (r *RequiredBlocks) Len() int { return len(r.positions) }

// Empty reports whether no block is required.
func (r *RequiredBlocks) Empty() bool { return len(r.positions) == 0 }

// Min returns the per-axis minimum. Undefined if Empty.
func (r *RequiredBlocks) Min() [3]int64 { return r.min }

// Max returns the per-axis maximum. Undefined if Empty.
func (r *RequiredBlocks) Max() [3]int64 { return r.max }

func (r *RequiredBlocks) String() string {
	return fmt.Sprintf("RequiredBlocks{n=%d min=%v max=%v}", len(r.positions), r.min, r.max)
}
