package mipmap

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/blockstream/internal/geom"
)

// simplexTol is the reduced cost tolerance passed to lp.Simplex.
const simplexTol = 1e-10

// Sizes holds the per-frame level selection state.
type Sizes struct {
	pNear         r3.Vec
	pFarMinusNear r3.Vec
	drels         float64

	sn, sf float64
	v0     r3.Vec
	sls    []float64

	drelClosest float64
	baseLevel   int
	visible     bool
}

// New initializes Sizes for one frame.
//
// sourceToNDC is projection·view·model, viewportWidth is in pixels, factors
// are the per-level downsampling factors (finest first), and imageDims is the
// level 0 image size.
func New(sourceToNDC mat.Matrix, viewportWidth int, factors [][3]int, imageDims [3]int64) (*Sizes, error) {
	if len(factors) == 0 {
		return nil, errors.New("mipmap: no levels")
	}
	if viewportWidth <= 0 {
		return nil, errors.New("mipmap: viewport width must be positive")
	}
	ndcToSource, err := geom.Inverse(sourceToNDC)
	if err != nil {
		return nil, err
	}

	s := &Sizes{}
	w := 2 / float64(viewportWidth)
	s.pNear = geom.Project(ndcToSource, r3.Vec{X: 0, Y: 0, Z: -1})
	pFar := geom.Project(ndcToSource, r3.Vec{X: 0, Y: 0, Z: 1})
	s.sn = r3.Norm(r3.Sub(geom.Project(ndcToSource, r3.Vec{X: w, Y: 0, Z: -1}), s.pNear))
	s.sf = r3.Norm(r3.Sub(geom.Project(ndcToSource, r3.Vec{X: w, Y: 0, Z: 1}), pFar))

	s.pFarMinusNear = r3.Sub(pFar, s.pNear)
	dir := r3.Unit(s.pFarMinusNear)
	s.drels = 1 / r3.Norm2(s.pFarMinusNear)

	// Voxel size on a plane perpendicular to dir.
	s.v0 = r3.Vec{
		X: math.Sqrt(math.Max(0, 1-dir.X)),
		Y: math.Sqrt(math.Max(0, 1-dir.Y)),
		Z: math.Sqrt(math.Max(0, 1-dir.Z)),
	}

	s.sls = make([]float64, len(factors))
	for i, r := range factors {
		s.sls[i] = s.sl(r)
	}

	s.solveClosest(sourceToNDC, imageDims)
	s.baseLevel = s.BestLevelAt(s.drelClosest)
	return s, nil
}

func (s *Sizes) sl(r [3]int) float64 {
	return max(float64(r[0])*s.v0.X, float64(r[1])*s.v0.Y, float64(r[2])*s.v0.Z)
}

// solveClosest finds the depth fraction of the visible source point closest
// to the near plane:
//
//	minimize (x - pNear)·(pFar - pNear)·drels
//	s.t.     x inside the frustum and inside [0, imageDims]
func (s *Sizes) solveClosest(sourceToNDC mat.Matrix, imageDims [3]int64) {
	planes := geom.FrustumPolytope(sourceToNDC)
	planes = append(planes,
		geom.Plane{Normal: r3.Vec{X: 1}},
		geom.Plane{Normal: r3.Vec{Y: 1}},
		geom.Plane{Normal: r3.Vec{Z: 1}},
		geom.Plane{Normal: r3.Vec{X: -1}, Distance: -float64(imageDims[0])},
		geom.Plane{Normal: r3.Vec{Y: -1}, Distance: -float64(imageDims[1])},
		geom.Plane{Normal: r3.Vec{Z: -1}, Distance: -float64(imageDims[2])},
	)

	// n·x >= d  <=>  -n·x <= -d
	g := mat.NewDense(len(planes), 3, nil)
	h := make([]float64, len(planes))
	for i, p := range planes {
		g.Set(i, 0, -p.Normal.X)
		g.Set(i, 1, -p.Normal.Y)
		g.Set(i, 2, -p.Normal.Z)
		h[i] = -p.Distance
	}
	c := r3.Scale(s.drels, s.pFarMinusNear)
	cNew, aNew, bNew := lp.Convert([]float64{c.X, c.Y, c.Z}, g, h, nil, nil)

	opt, _, err := lp.Simplex(cNew, aNew, bNew, simplexTol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		s.visible = false
		s.drelClosest = 0
	case err != nil:
		// Numerically degenerate program: stay visible at the finest
		// sampling density.
		s.visible = true
		s.drelClosest = 0
	default:
		s.visible = true
		s.drelClosest = clamp01(opt - r3.Dot(c, s.pNear))
	}
}

// Visible reports whether any part of the image lies inside the frustum.
func (s *Sizes) Visible() bool { return s.visible }

// BaseLevel returns the finest level any visible block needs.
func (s *Sizes) BaseLevel() int { return s.baseLevel }

// ClosestDepth returns the depth fraction of the closest visible point.
func (s *Sizes) ClosestDepth() float64 { return s.drelClosest }

// Footprints returns the per-level voxel footprints.
func (s *Sizes) Footprints() []float64 { return s.sls }

// PixelWidths returns the source-space pixel width at the near and far
// planes.
func (s *Sizes) PixelWidths() (near, far float64) { return s.sn, s.sf }

// Depth returns the clamped depth fraction of source point p.
func (s *Sizes) Depth(p r3.Vec) float64 {
	return clamp01(r3.Dot(r3.Sub(p, s.pNear), s.pFarMinusNear) * s.drels)
}

// BestLevel returns the best level for source point p.
func (s *Sizes) BestLevel(p r3.Vec) int {
	return s.BestLevelAt(s.Depth(p))
}

// BestLevelAt returns the best level at depth fraction drel in [0, 1].
func (s *Sizes) BestLevelAt(drel float64) int {
	sd := drel*s.sf + (1-drel)*s.sn
	for l, sl := range s.sls {
		if sd <= sl {
			if l == 0 {
				return 0
			}
			if sl-sd < sd-s.sls[l-1] {
				return l
			}
			return l - 1
		}
	}
	return len(s.sls) - 1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
