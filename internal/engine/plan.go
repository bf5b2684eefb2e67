package engine

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/blockstream/internal/cache"
	"github.com/hupe1980/blockstream/internal/cull"
	"github.com/hupe1980/blockstream/internal/geom"
	"github.com/hupe1980/blockstream/volume"
)

// plan is the block selection of one frame at one base level.
type plan struct {
	base     int
	required *cull.RequiredBlocks
	best     []int       // best level per required block
	keys     []cache.Key // unique blocks to stage, in request order
}

// errEmpty reports that the frustum misses the base level image.
var errEmpty = errors.New("engine: no required blocks")

// levelPos maps base level grid position g0 to the grid position of level
// l whose block covers it.
func levelPos(g0 [3]int64, rb, rl [3]int) [3]int64 {
	var g [3]int64
	for d := 0; d < 3; d++ {
		g[d] = g0[d] * int64(rb[d]) / int64(rl[d])
	}
	return g
}

// blockCenter returns the full resolution source coordinate of the center
// of base level block g0. upscale maps base level voxels to source voxels.
func blockCenter(g0 [3]int64, blockSize [3]int, upscale mat.Matrix) r3.Vec {
	var c [3]float64
	for d := 0; d < 3; d++ {
		c[d] = float64(g0[d]*int64(blockSize[d])) + 0.5*float64(blockSize[d]-1)
	}
	return geom.Project(upscale, geom.Vec(c))
}

// planFrame culls v at base and walks the candidate levels of every
// required block. A level is accepted when its block already has a slot,
// when it is the coarsest level, or when every covering cell is resident.
func (e *Engine) planFrame(v *volumeState, base int) (*plan, error) {
	levels := v.stack.Levels()
	maxLevel := len(levels) - 1
	r := levels[base].R
	bs := e.spec.BlockSize()

	upscale := geom.Upscale(r)
	levelToNDC := geom.Mul(v.sourceToNDC, upscale)
	ndcToLevel, err := geom.Inverse(levelToNDC)
	if err != nil {
		return nil, err
	}
	gridMin, gridMax, ok := cull.GridRange(ndcToLevel, levels[base].Dims(), bs)
	if !ok {
		return nil, errEmpty
	}
	rb := cull.FindFrustum(levelToNDC, bs, gridMin, gridMax)
	if rb.Empty() {
		return nil, errEmpty
	}

	p := &plan{
		base:     base,
		required: rb,
		best:     make([]int, rb.Len()),
	}
	id := v.stack.ID()
	accepted := make(map[cache.Key]bool, rb.Len())
	for i, g0 := range rb.Positions() {
		best := max(base, v.sizes.BestLevel(blockCenter(g0, bs, upscale)))
		p.best[i] = best
		for l := best; l <= maxLevel; l++ {
			key := cache.Key{Stack: id, Level: l, Pos: levelPos(g0, r, levels[l].R)}
			if ok, seen := accepted[key]; seen {
				if ok {
					break
				}
				continue
			}
			_, cached := e.cache.Peek(key)
			ok := cached || l == maxLevel ||
				e.copier.CanLoadCompletely(e.spec.BlockMin(key.Pos), v.planAccessor(l), true)
			accepted[key] = ok
			if ok {
				p.keys = append(p.keys, key)
				break
			}
		}
	}
	return p, nil
}

// planAccessor returns the render goroutine's accessor for level l.
func (v *volumeState) planAccessor(l int) *volume.Accessor {
	acc := v.accessors[l]
	acc.Reset()
	return acc
}

// planVolumes plans every visible volume at its selector's base level. If
// enabled, it then raises the base level of the volume with the most blocks
// while the blocks of all volumes do not fit the cache. A volume that culls
// to nothing keeps a nil plan.
func (e *Engine) planVolumes(vols []*volumeState) error {
	for _, v := range vols {
		p, err := e.planFrame(v, v.sizes.BaseLevel())
		if err != nil {
			if errors.Is(err, errEmpty) || errors.Is(err, geom.ErrSingular) {
				continue
			}
			return err
		}
		v.plan = p
	}
	if !e.cfg.AdaptiveBaseLevel {
		return nil
	}

	capacity := e.cache.Capacity()
	for {
		total := 0
		var most *volumeState
		for _, v := range vols {
			if v.plan == nil {
				continue
			}
			total += len(v.plan.keys)
			if v.plan.base < v.stack.NumLevels()-1 && (most == nil || len(v.plan.keys) > len(most.plan.keys)) {
				most = v
			}
		}
		if total <= capacity || most == nil {
			return nil
		}
		next, err := e.planFrame(most, most.plan.base+1)
		if err != nil {
			if errors.Is(err, errEmpty) || errors.Is(err, geom.ErrSingular) {
				most.plan = nil
				continue
			}
			return err
		}
		e.logger.Debug("raised base level",
			"stack", most.stack.ID().String(),
			"from", most.plan.base,
			"to", next.base,
			"blocks", total,
			"capacity", capacity,
		)
		most.plan = next
	}
}
