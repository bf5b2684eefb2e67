package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/blockstream/gpu"
	"github.com/hupe1980/blockstream/internal/cache"
	"github.com/hupe1980/blockstream/internal/geom"
	"github.com/hupe1980/blockstream/internal/staging"
	"github.com/hupe1980/blockstream/testutil"
	"github.com/hupe1980/blockstream/volume"
)

type countingControl struct{ n atomic.Int32 }

func (c *countingControl) PrepareNextFrame() { c.n.Add(1) }

type countingObserver struct {
	NoopMetricsObserver
	evictions atomic.Int32
	fills     atomic.Int32
}

func (o *countingObserver) OnEviction() { o.evictions.Add(1) }
func (o *countingObserver) OnFill(bool) { o.fills.Add(1) }

func cube(lo, hi float64) (r3.Vec, r3.Vec) {
	return r3.Vec{X: lo, Y: lo, Z: lo}, r3.Vec{X: hi, Y: hi, Z: hi}
}

type harness struct {
	data    []byte
	dims    [3]int64
	grid    *volume.VolatileArrayGrid
	spec    volume.CacheSpec
	device  *gpu.SoftwareDevice
	engine  *Engine
	repaint atomic.Int32
	control countingControl
	metrics countingObserver
}

// newHarness builds a single level 64³ uint16 volume with 32³ blocks and a
// 5x1x1 cache grid, so four slots are usable.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dims: [3]int64{64, 64, 64}, device: gpu.NewSoftwareDevice()}
	h.data = testutil.NewRNG(3).Volume(h.dims, 2)

	ag, err := volume.NewArrayGrid(h.dims, [3]int{32, 32, 32}, 2, h.data)
	require.NoError(t, err)
	h.grid = volume.NewVolatileArrayGrid(ag)
	h.grid.SetAllResident(true)

	stack, err := volume.NewStack(volume.StackID{}, volume.Uint16, []*volume.Level{
		{Index: 0, R: [3]int{1, 1, 1}, Grid: volume.Volatile(h.grid)},
	})
	require.NoError(t, err)

	h.spec, err = volume.NewCacheSpec([3]int{32, 32, 32}, volume.Uint16)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Spec = h.spec
	cfg.CacheGrid = [3]int{5, 1, 1}
	cfg.Staging = staging.Config{Workers: 2, Buffers: 3}
	cfg.CacheControl = &h.control
	cfg.Metrics = &h.metrics
	cfg.RequestRepaint = func() { h.repaint.Add(1) }

	h.engine, err = New(stack, h.device, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.engine.Close() })
	return h
}

func (h *harness) slotContent(t *testing.T, slot *cache.Slot) []byte {
	t.Helper()
	padded := h.spec.PaddedBlockSize()
	got, err := h.device.ReadTexture(h.engine.CacheTexture(), slot.Origin(padded), padded)
	require.NoError(t, err)
	return got
}

func (h *harness) reference(pos [3]int64) []byte {
	return testutil.ReferenceBlock(h.data, h.dims, 2, h.spec.BlockMin(pos), h.spec.PaddedBlockSize())
}

func TestUpdate_EvictionAndRepaint(t *testing.T) {
	h := newHarness(t)
	e := h.engine
	require.Equal(t, 4, e.Cache().Capacity())

	// Frame 1: the whole volume needs 8 blocks, only 4 fit.
	f, err := e.Update(t.Context(), testutil.Ortho(cube(-0.5, 63.5)), 64)
	require.NoError(t, err)
	assert.True(t, f.Visible)
	assert.Equal(t, 0, f.BaseLevel)
	assert.Equal(t, 8, f.Required)
	assert.Equal(t, 8, f.Blocks)
	assert.Equal(t, 4, f.Evictions)
	assert.Equal(t, 4, f.Staging.Issued)
	assert.Equal(t, 4, f.Staging.Complete)
	assert.True(t, f.NeedsRepaint)
	assert.NotZero(t, f.Duration)
	require.Len(t, f.Volumes, 1)
	assert.Equal(t, VolumeFrame{Visible: true, Required: 8, Blocks: 8, NeedsRepaint: true}, f.Volumes[0])
	assert.Equal(t, int32(1), h.repaint.Load())
	assert.Equal(t, int32(4), h.metrics.evictions.Load())
	assert.Equal(t, 4, e.Cache().Len())

	rb := e.RequiredBlocks()
	assert.Equal(t, [3]int64{0, 0, 0}, rb.Min())
	assert.Equal(t, [3]int64{1, 1, 1}, rb.Max())

	// The last four requested blocks (z = 1) won their slots.
	for _, pos := range [][3]int64{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}} {
		slot, ok := e.Cache().Peek(cache.Key{Pos: pos})
		require.True(t, ok, "block %v", pos)
		assert.Equal(t, cache.Complete, slot.State())
		assert.Equal(t, h.reference(pos), h.slotContent(t, slot), "block %v", pos)

		texSlot, level, ok := e.Lookup().At(pos)
		require.True(t, ok)
		assert.Equal(t, slot.GridPos(), texSlot)
		assert.Equal(t, 0, level)
	}
	_, _, ok := e.Lookup().At([3]int64{0, 0, 0})
	assert.False(t, ok)

	padded := h.spec.PaddedBlockSize()
	assert.Equal(t, make([]byte, h.spec.BytesPerBlock()), h.slotContent(t, e.Cache().Sentinel()))
	assert.Equal(t, [3]int{5 * padded[0], padded[1], padded[2]}, e.CacheTexture().Size())
	assert.Equal(t, [3]int{4, 4, 4}, e.LookupTexture().Size())

	// Frame 2: the evicted block (0,0,0) is requested again while its
	// cells are not resident.
	h.grid.SetAllResident(false)
	f, err = e.Update(t.Context(), testutil.Ortho(cube(-0.5, 31.5)), 64)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Required)
	assert.Equal(t, 1, f.Evictions)
	assert.Equal(t, 1, f.Staging.Incomplete)
	assert.True(t, f.NeedsRepaint)
	slot, ok := e.Cache().Peek(cache.Key{})
	require.True(t, ok)
	assert.Equal(t, cache.Incomplete, slot.State())

	// Frame 3: the cells arrived, the slot is refilled in place.
	h.grid.SetAllResident(true)
	f, err = e.Update(t.Context(), testutil.Ortho(cube(-0.5, 31.5)), 64)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Evictions)
	assert.Equal(t, 1, f.Staging.Complete)
	assert.False(t, f.NeedsRepaint)
	refilled, ok := e.Cache().Peek(cache.Key{})
	require.True(t, ok)
	assert.Equal(t, slot.GridPos(), refilled.GridPos())
	assert.Equal(t, cache.Complete, refilled.State())
	assert.Equal(t, h.reference([3]int64{}), h.slotContent(t, refilled))

	// Frame 4: nothing left to do.
	f, err = e.Update(t.Context(), testutil.Ortho(cube(-0.5, 31.5)), 64)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Staging.Issued)
	assert.False(t, f.NeedsRepaint)

	assert.Equal(t, int32(4), h.control.n.Load())
	assert.Equal(t, int32(2), h.repaint.Load())
}

func TestUpdate_NotVisible(t *testing.T) {
	h := newHarness(t)

	f, err := h.engine.Update(t.Context(), testutil.Ortho(cube(100, 200)), 64)
	require.NoError(t, err)
	assert.False(t, f.Visible)
	assert.Nil(t, h.engine.RequiredBlocks())
	assert.Nil(t, h.engine.LookupTexture())
	assert.Equal(t, 0, h.engine.Cache().Len())
}

func TestUpdate_ViewportWidthMustBePositive(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Update(t.Context(), testutil.Ortho(cube(-0.5, 63.5)), 0)
	assert.Error(t, err)
}

func twoLevelStack(t *testing.T) *volume.Stack {
	t.Helper()
	rng := testutil.NewRNG(5)
	var levels []*volume.Level
	for i, n := range []int64{64, 32} {
		d := [3]int64{n, n, n}
		g, err := volume.NewArrayGrid(d, [3]int{16, 16, 16}, 1, rng.Volume(d, 1))
		require.NoError(t, err)
		r := 1 << i
		levels = append(levels, &volume.Level{Index: i, R: [3]int{r, r, r}, Grid: volume.Plain(g)})
	}
	s, err := volume.NewStack(volume.StackID{Setup: 1}, volume.Uint8, levels)
	require.NoError(t, err)
	return s
}

func TestUpdate_AdaptiveBaseLevel(t *testing.T) {
	for _, adaptive := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.CacheGrid = [3]int{5, 1, 1}
		cfg.AdaptiveBaseLevel = adaptive
		cfg.Staging = staging.Config{Workers: 1, Buffers: 1}

		e, err := New(twoLevelStack(t), gpu.NewSoftwareDevice(), cfg, nil)
		require.NoError(t, err)

		f, err := e.Update(t.Context(), testutil.Ortho(cube(-0.5, 63.5)), 64)
		require.NoError(t, err)
		if adaptive {
			assert.Equal(t, 1, f.BaseLevel)
			assert.Equal(t, 1, f.Required)
			assert.False(t, f.NeedsRepaint)
			assert.Equal(t, [][3]float64{{0, 0, 0}, {1, 1, 1}}, e.Lookup().Scales())
		} else {
			assert.Equal(t, 0, f.BaseLevel)
			assert.Equal(t, 8, f.Required)
			assert.Equal(t, 4, f.Evictions)
			assert.True(t, f.NeedsRepaint)
		}
		require.NoError(t, e.Close())
	}
}

// slowGrid delays every cell read.
type slowGrid struct {
	*volume.ArrayGrid
	delay time.Duration
}

func (g *slowGrid) Cell(pos [3]int64) []byte {
	time.Sleep(g.delay)
	return g.ArrayGrid.Cell(pos)
}

func TestUpdate_BudgetSkipsAndFreesSlots(t *testing.T) {
	d := [3]int64{64, 64, 64}
	ag, err := volume.NewArrayGrid(d, [3]int{32, 32, 32}, 1, testutil.NewRNG(9).Volume(d, 1))
	require.NoError(t, err)
	stack, err := volume.NewStack(volume.StackID{}, volume.Uint8, []*volume.Level{
		{Index: 0, R: [3]int{1, 1, 1}, Grid: volume.Plain(&slowGrid{ArrayGrid: ag, delay: 20 * time.Millisecond})},
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.CacheGrid = [3]int{9, 1, 1}
	cfg.Staging = staging.Config{Workers: 1, Buffers: 1, IOBudget: 15 * time.Millisecond}
	e, err := New(stack, gpu.NewSoftwareDevice(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	f, err := e.Update(t.Context(), testutil.Ortho(cube(-0.5, 63.5)), 64)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Blocks)
	assert.Equal(t, 2, f.Staging.Issued)
	assert.Equal(t, 6, f.Staging.Skipped)
	assert.Equal(t, 2, e.Cache().Len())
	assert.True(t, f.NeedsRepaint)
}

func TestNew_SpecMismatch(t *testing.T) {
	spec, err := volume.NewCacheSpec([3]int{16, 16, 16}, volume.Uint16)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Spec = spec
	_, err = New(twoLevelStack(t), gpu.NewSoftwareDevice(), cfg, nil)
	assert.ErrorIs(t, err, volume.ErrInvalidCacheSpec)
}

func TestSetStack(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.SetStack(twoLevelStack(t)), volume.ErrInvalidStack)

	next, err := volume.NewStack(volume.StackID{Timepoint: 1}, volume.Uint16, h.engine.Stack().Levels())
	require.NoError(t, err)
	require.NoError(t, h.engine.SetStack(next))

	_, err = h.engine.Update(t.Context(), testutil.Ortho(cube(-0.5, 31.5)), 64)
	require.NoError(t, err)
	_, ok := h.engine.Cache().Peek(cache.Key{Stack: volume.StackID{Timepoint: 1}})
	assert.True(t, ok)
}

func TestLevelPos(t *testing.T) {
	assert.Equal(t, [3]int64{3, 2, 1}, levelPos([3]int64{3, 2, 1}, [3]int{2, 2, 2}, [3]int{2, 2, 2}))
	assert.Equal(t, [3]int64{1, 1, 0}, levelPos([3]int64{3, 2, 1}, [3]int{1, 1, 1}, [3]int{2, 2, 2}))
	assert.Equal(t, [3]int64{1, 0, 0}, levelPos([3]int64{3, 2, 1}, [3]int{1, 1, 1}, [3]int{2, 4, 4}))
}

func TestBlockCenter(t *testing.T) {
	bs := [3]int{16, 16, 16}
	assert.Equal(t, r3.Vec{X: 7.5, Y: 7.5, Z: 7.5}, blockCenter([3]int64{0, 0, 0}, bs, geom.Upscale([3]int{1, 1, 1})))
	// level voxel 23.5 covers source voxels 47 and 48
	c := blockCenter([3]int64{1, 0, 0}, bs, geom.Upscale([3]int{2, 2, 2}))
	assert.InDelta(t, 47.5, c.X, 1e-9)
	assert.InDelta(t, 15.5, c.Y, 1e-9)
	assert.InDelta(t, 15.5, c.Z, 1e-9)
}

func TestUpdate_FallsBackToCoarserLevel(t *testing.T) {
	rng := testutil.NewRNG(11)
	d0, d1 := [3]int64{64, 64, 64}, [3]int64{32, 32, 32}
	ag0, err := volume.NewArrayGrid(d0, [3]int{16, 16, 16}, 1, rng.Volume(d0, 1))
	require.NoError(t, err)
	fine := volume.NewVolatileArrayGrid(ag0)
	ag1, err := volume.NewArrayGrid(d1, [3]int{16, 16, 16}, 1, rng.Volume(d1, 1))
	require.NoError(t, err)
	stack, err := volume.NewStack(volume.StackID{}, volume.Uint8, []*volume.Level{
		{Index: 0, R: [3]int{1, 1, 1}, Grid: volume.Volatile(fine)},
		{Index: 1, R: [3]int{2, 2, 2}, Grid: volume.Plain(ag1)},
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Spec, err = volume.NewCacheSpec([3]int{16, 16, 16}, volume.Uint8)
	require.NoError(t, err)
	cfg.CacheGrid = [3]int{5, 1, 1}
	cfg.Staging = staging.Config{Workers: 1, Buffers: 1}
	e, err := New(stack, gpu.NewSoftwareDevice(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Four pixels per voxel: level 0 is wanted for the single block in view.
	pv := testutil.Ortho(cube(-0.5, 15.5))
	f, err := e.Update(t.Context(), pv, 64)
	require.NoError(t, err)
	assert.Equal(t, 0, f.BaseLevel)
	assert.Equal(t, 1, f.Required)
	assert.True(t, f.NeedsRepaint)
	_, level, ok := e.Lookup().At([3]int64{0, 0, 0})
	require.True(t, ok)
	assert.Equal(t, 1, level)
	_, cached := e.Cache().Peek(cache.Key{Level: 0})
	assert.False(t, cached)

	fine.SetAllResident(true)
	f, err = e.Update(t.Context(), pv, 64)
	require.NoError(t, err)
	assert.False(t, f.NeedsRepaint)
	_, level, ok = e.Lookup().At([3]int64{0, 0, 0})
	require.True(t, ok)
	assert.Equal(t, 0, level)
}

func TestUpdate_Perspective(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheGrid = [3]int{9, 1, 1}
	cfg.AdaptiveBaseLevel = false
	cfg.Staging = staging.Config{Workers: 2, Buffers: 2}
	e, err := New(twoLevelStack(t), gpu.NewSoftwareDevice(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	proj := testutil.Perspective(1, 1, 1, 5000)
	view := func(dist float64) *mat.Dense {
		return testutil.Mul(proj, testutil.Translate(r3.Vec{X: -32, Y: -32, Z: -dist - 64}))
	}

	// Near: the closest face is 100 units away, about 1.7 voxels per pixel.
	f, err := e.Update(t.Context(), view(100), 64)
	require.NoError(t, err)
	assert.True(t, f.Visible)
	assert.Equal(t, 0, f.BaseLevel)
	assert.Equal(t, 8, f.Required)
	assert.LessOrEqual(t, f.Blocks, 8)
	assert.False(t, f.NeedsRepaint)

	// Far: a pixel covers tens of voxels, the coarsest level suffices.
	f, err = e.Update(t.Context(), view(2000), 64)
	require.NoError(t, err)
	assert.True(t, f.Visible)
	assert.Equal(t, 1, f.BaseLevel)
	assert.Equal(t, 1, f.Required)
	assert.False(t, f.NeedsRepaint)
}

func TestUpdate_MultipleStacksShareCache(t *testing.T) {
	a := twoLevelStack(t)
	// b shows the same levels shifted so that only its x = 0 blocks are in
	// view.
	b, err := volume.NewStack(volume.StackID{Setup: 2}, volume.Uint8, a.Levels(),
		volume.WithSourceToWorld(testutil.Translate(r3.Vec{X: 40})))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.CacheGrid = [3]int{10, 1, 1}
	cfg.Staging = staging.Config{Workers: 2, Buffers: 2}
	e, err := New(a, gpu.NewSoftwareDevice(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	require.NoError(t, e.SetStacks(a, b))
	assert.Equal(t, []*volume.Stack{a, b}, e.Stacks())

	// 8 + 4 blocks exceed the 9 slots: only a, which has more, is raised.
	f, err := e.Update(t.Context(), testutil.Ortho(cube(-0.5, 63.5)), 64)
	require.NoError(t, err)
	require.Len(t, f.Volumes, 2)
	assert.Equal(t, VolumeFrame{Visible: true, BaseLevel: 1, Required: 1, Blocks: 1}, f.Volumes[0])
	assert.Equal(t, VolumeFrame{Visible: true, BaseLevel: 0, Required: 4, Blocks: 4}, f.Volumes[1])
	assert.Equal(t, 5, f.Required)
	assert.Equal(t, 5, f.Blocks)
	assert.Equal(t, 1, f.BaseLevel)
	assert.False(t, f.NeedsRepaint)
	assert.Equal(t, 5, e.Cache().Len())

	_, level, ok := e.LookupAt(0).At([3]int64{0, 0, 0})
	require.True(t, ok)
	assert.Equal(t, 1, level)
	_, level, ok = e.LookupAt(1).At([3]int64{0, 1, 1})
	require.True(t, ok)
	assert.Equal(t, 0, level)
	assert.Equal(t, 4, e.RequiredBlocksAt(1).Len())
	assert.NotSame(t, e.LookupTextureAt(0), e.LookupTextureAt(1))

	// Dropping b keeps the lookup of a.
	lut := e.LookupTexture()
	require.NoError(t, e.SetStacks(a))
	assert.Same(t, lut, e.LookupTexture())
	assert.ErrorIs(t, e.SetStacks(), volume.ErrInvalidStack)
}

func TestStage_DeduplicatesAcrossStacks(t *testing.T) {
	h := newHarness(t)
	level := h.engine.Stack().Level(0)
	key := cache.Key{Pos: [3]int64{1, 0, 0}}
	tasks, fresh, evictions, unique := h.engine.stage([]request{{key: key, level: level}, {key: key, level: level}})
	assert.Len(t, tasks, 1)
	assert.True(t, fresh[key])
	assert.Zero(t, evictions)
	assert.Equal(t, 1, unique)
}
