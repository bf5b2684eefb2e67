package testutil

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the seed used to initialize the RNG.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a random integer in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Fill fills dst with random bytes.
func (r *RNG) Fill(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

// Volume returns a random volume of the given size, x fastest. Voxel values
// are never zero so that zero-filled regions stand out in comparisons.
func (r *RNG) Volume(dims [3]int64, bytesPerVoxel int) []byte {
	n := dims[0] * dims[1] * dims[2] * int64(bytesPerVoxel)
	data := make([]byte, n)
	r.Fill(data)
	for i := 0; i < len(data); i += bytesPerVoxel {
		data[i] |= 1
	}
	return data
}

// ReferenceBlock extracts the block of size padded at min from a linear
// volume, voxel by voxel. Voxels outside the volume are zero.
func ReferenceBlock(data []byte, dims [3]int64, bytesPerVoxel int, min [3]int64, padded [3]int) []byte {
	out := make([]byte, padded[0]*padded[1]*padded[2]*bytesPerVoxel)
	i := 0
	for z := 0; z < padded[2]; z++ {
		for y := 0; y < padded[1]; y++ {
			for x := 0; x < padded[0]; x++ {
				p := [3]int64{min[0] + int64(x), min[1] + int64(y), min[2] + int64(z)}
				if inside(p, dims) {
					src := ((p[2]*dims[1]+p[1])*dims[0] + p[0]) * int64(bytesPerVoxel)
					copy(out[i:i+bytesPerVoxel], data[src:src+int64(bytesPerVoxel)])
				}
				i += bytesPerVoxel
			}
		}
	}
	return out
}

func inside(p, dims [3]int64) bool {
	for d := 0; d < 3; d++ {
		if p[d] < 0 || p[d] >= dims[d] {
			return false
		}
	}
	return true
}

// Ortho returns the orthographic projection mapping the box [lo, hi] onto
// the NDC cube [-1, 1]^3.
func Ortho(lo, hi r3.Vec) *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	l := [3]float64{lo.X, lo.Y, lo.Z}
	h := [3]float64{hi.X, hi.Y, hi.Z}
	for d := 0; d < 3; d++ {
		m.Set(d, d, 2/(h[d]-l[d]))
		m.Set(d, 3, -(h[d]+l[d])/(h[d]-l[d]))
	}
	m.Set(3, 3, 1)
	return m
}

// Perspective returns an OpenGL style projection looking down -z.
func Perspective(fovY, aspect, near, far float64) *mat.Dense {
	f := 1 / math.Tan(fovY/2)
	return mat.NewDense(4, 4, []float64{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / (near - far), 2 * far * near / (near - far),
		0, 0, -1, 0,
	})
}

// Translate returns a translation matrix.
func Translate(t r3.Vec) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, t.X,
		0, 1, 0, t.Y,
		0, 0, 1, t.Z,
		0, 0, 0, 1,
	})
}

// Mul returns the product of the given matrices, left to right.
func Mul(ms ...mat.Matrix) *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	out.Copy(ms[0])
	for _, m := range ms[1:] {
		var tmp mat.Dense
		tmp.Mul(out, m)
		out.Copy(&tmp)
	}
	return out
}
