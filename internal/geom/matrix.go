package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSingular is returned when a projection matrix cannot be inverted.
var ErrSingular = errors.New("geom: singular matrix")

// Identity returns a 4x4 identity matrix.
func Identity() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Mul returns a·b.
func Mul(a, b mat.Matrix) *mat.Dense {
	var m mat.Dense
	m.Mul(a, b)
	return &m
}

// Inverse returns the inverse of m.
func Inverse(m mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
			// Ill-conditioned but usable.
			return &inv, nil
		}
		return nil, ErrSingular
	}
	return &inv, nil
}

// Upscale maps voxel coordinates of a level downsampled by r to full
// resolution source coordinates, keeping voxel centers aligned.
func Upscale(r [3]int) *mat.Dense {
	m := Identity()
	for d := 0; d < 3; d++ {
		m.Set(d, d, float64(r[d]))
		m.Set(d, 3, 0.5*float64(r[d]-1))
	}
	return m
}

// Project applies the homogeneous transform m to p including the
// perspective divide.
func Project(m mat.Matrix, p r3.Vec) r3.Vec {
	x := m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3)
	y := m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3)
	z := m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3)
	w := m.At(3, 0)*p.X + m.At(3, 1)*p.Y + m.At(3, 2)*p.Z + m.At(3, 3)
	return r3.Vec{X: x / w, Y: y / w, Z: z / w}
}

// FrustumBounds returns the axis aligned bounds of the NDC cube mapped
// through ndcToSource.
func FrustumBounds(ndcToSource mat.Matrix) r3.Box {
	var b r3.Box
	first := true
	for _, c := range [8][3]float64{
		{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},
	} {
		p := Project(ndcToSource, Vec(c))
		if first {
			b = r3.Box{Min: p, Max: p}
			first = false
			continue
		}
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// FrustumPolytope returns the six inward facing planes of the NDC cube
// expressed in the source space of sourceToNDC.
func FrustumPolytope(sourceToNDC mat.Matrix) Polytope {
	mt := sourceToNDC.T()
	return Polytope{
		ndcPlane(mt, 1, 0, 0),
		ndcPlane(mt, -1, 0, 0),
		ndcPlane(mt, 0, 1, 0),
		ndcPlane(mt, 0, -1, 0),
		ndcPlane(mt, 0, 0, 1),
		ndcPlane(mt, 0, 0, -1),
	}
}

// ndcPlane maps the NDC half-space n·p >= -1 through the transposed
// source to NDC matrix.
func ndcPlane(mt mat.Matrix, nx, ny, nz float64) Plane {
	var v mat.VecDense
	v.MulVec(mt, mat.NewVecDense(4, []float64{nx, ny, nz, 1}))
	n := r3.Vec{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)}
	l := r3.Norm(n)
	return Plane{Normal: r3.Scale(1/l, n), Distance: -v.AtVec(3) / l}
}
