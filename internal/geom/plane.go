package geom

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Plane is an oriented plane whose normal points into the half-space it
// bounds.
type Plane struct {
	Normal   r3.Vec
	Distance float64
}

// SignedDistance returns n·p - d.
func (p Plane) SignedDistance(x r3.Vec) float64 {
	return r3.Dot(p.Normal, x) - p.Distance
}

// Inside reports whether x lies in the closed inner half-space.
func (p Plane) Inside(x r3.Vec) bool {
	return p.SignedDistance(x) >= 0
}

func (p Plane) String() string {
	return fmt.Sprintf("(%.4g, %.4g, %.4g; %.4g)", p.Normal.X, p.Normal.Y, p.Normal.Z, p.Distance)
}

// Polytope is a convex region bounded by planes.
type Polytope []Plane

// Contains reports whether x is inside every plane.
func (p Polytope) Contains(x r3.Vec) bool {
	for _, pl := range p {
		if pl.SignedDistance(x) < 0 {
			return false
		}
	}
	return true
}

// ContainsGrid is Contains for integer grid positions.
func (p Polytope) ContainsGrid(g [3]int64) bool {
	return p.Contains(r3.Vec{X: float64(g[0]), Y: float64(g[1]), Z: float64(g[2])})
}

func (p Polytope) String() string {
	parts := make([]string, len(p))
	for i, pl := range p {
		parts[i] = pl.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Component returns v[d].
func Component(v r3.Vec, d int) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Vec builds an r3.Vec from an array.
func Vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
