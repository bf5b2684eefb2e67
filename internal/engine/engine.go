package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/blockstream/gpu"
	"github.com/hupe1980/blockstream/internal/cache"
	"github.com/hupe1980/blockstream/internal/conv"
	"github.com/hupe1980/blockstream/internal/cull"
	"github.com/hupe1980/blockstream/internal/geom"
	"github.com/hupe1980/blockstream/internal/gridcopy"
	"github.com/hupe1980/blockstream/internal/lookup"
	"github.com/hupe1980/blockstream/internal/mipmap"
	"github.com/hupe1980/blockstream/internal/staging"
	"github.com/hupe1980/blockstream/volume"
)

// ErrClosed is returned by Update after Close.
var ErrClosed = errors.New("engine closed")

// Frame summarizes one Update.
type Frame struct {
	// Visible is false when no part of any volume is inside the frustum.
	Visible bool
	// BaseLevel is the base level of the first visible volume.
	BaseLevel int
	// Required is the number of required base level blocks of all volumes.
	Required int
	// Blocks is the number of unique blocks the level walks selected.
	Blocks int
	// Evictions counts slots taken from other blocks this frame.
	Evictions int
	// Staging reports the fill work.
	Staging staging.Result
	// NeedsRepaint is true if any required block was drawn from a coarser
	// level than desired, from incomplete data, or not at all.
	NeedsRepaint bool
	Duration     time.Duration
	// Volumes holds one entry per stack, in SetStacks order.
	Volumes []VolumeFrame
}

// VolumeFrame summarizes one stack of an Update.
type VolumeFrame struct {
	Visible      bool
	BaseLevel    int
	Required     int
	Blocks       int
	NeedsRepaint bool
}

// volumeState is the per-stack state. All stacks share the cache.
type volumeState struct {
	stack     *volume.Stack
	accessors []*volume.Accessor
	lut       *lookup.Texture
	lutTex    *gpu.Texture
	required  *cull.RequiredBlocks

	// Valid during one Update.
	sourceToNDC mat.Matrix
	sizes       *mipmap.Sizes
	plan        *plan
}

// Engine streams the blocks of one or more stacks into a shared cache
// texture.
type Engine struct {
	cfg     Config
	spec    volume.CacheSpec
	device  gpu.Device
	logger  *slog.Logger
	metrics MetricsObserver

	cache    *cache.LRU
	pipeline *staging.Pipeline
	copier   *gridcopy.Copier
	vols     []*volumeState

	cacheTex *gpu.Texture

	sentinelReady bool
	closed        bool
}

// New creates an engine for stack drawing on device.
func New(stack *volume.Stack, device gpu.Device, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetricsObserver{}
	}
	if cfg.CacheMemoryMB <= 0 {
		cfg.CacheMemoryMB = DefaultConfig().CacheMemoryMB
	}

	spec := cfg.Spec
	if spec.IsZero() {
		var err error
		spec, err = volume.NewCacheSpec(DefaultBlockSize, stack.VoxelType())
		if err != nil {
			return nil, err
		}
	}
	if spec.VoxelType() != stack.VoxelType() {
		return nil, fmt.Errorf("%w: spec voxel type %s, stack voxel type %s", volume.ErrInvalidCacheSpec, spec.VoxelType(), stack.VoxelType())
	}
	format, err := spec.VoxelType().TextureFormat()
	if err != nil {
		return nil, err
	}

	grid := cfg.CacheGrid
	if grid == ([3]int{}) {
		grid = cache.FindSuitableGridSize(spec, cfg.CacheMemoryMB)
	}
	lru, err := cache.New(grid, 1)
	if err != nil {
		return nil, err
	}

	pipeline, err := staging.New(spec, cfg.Staging, logger)
	if err != nil {
		return nil, err
	}

	padded := spec.PaddedBlockSize()
	texSize, err := conv.Extent3D([3]int{grid[0] * padded[0], grid[1] * padded[1], grid[2] * padded[2]})
	if err != nil {
		_ = pipeline.Close()
		return nil, err
	}
	cacheTex, err := device.CreateTexture(gpu.Volume3D("blockstream cache", texSize, format))
	if err != nil {
		_ = pipeline.Close()
		return nil, fmt.Errorf("create cache texture: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		spec:     spec,
		device:   device,
		logger:   logger,
		metrics:  cfg.Metrics,
		cache:    lru,
		pipeline: pipeline,
		copier:   gridcopy.ForSpec(spec),
		cacheTex: cacheTex,
	}
	e.setStacks([]*volume.Stack{stack})

	logger.Info("engine created",
		"spec", spec.String(),
		"cache_grid", grid,
		"capacity", lru.Capacity(),
		"workers", pipeline.Config().Workers,
		"buffers", pipeline.Config().Buffers,
	)
	return e, nil
}

// setStacks replaces the drawn stacks. Lookup textures are kept per index.
func (e *Engine) setStacks(stacks []*volume.Stack) {
	vols := make([]*volumeState, len(stacks))
	ids := make([]volume.StackID, len(stacks))
	for i, s := range stacks {
		v := &volumeState{stack: s, lut: lookup.New()}
		if i < len(e.vols) {
			old := e.vols[i]
			v.lut, v.lutTex, v.required = old.lut, old.lutTex, old.required
		}
		v.accessors = make([]*volume.Accessor, s.NumLevels())
		for l, level := range s.Levels() {
			v.accessors[l] = level.Grid.NewAccessor()
		}
		vols[i] = v
		ids[i] = s.ID()
	}
	for i := len(stacks); i < len(e.vols); i++ {
		if tex := e.vols[i].lutTex; tex != nil {
			e.device.DestroyTexture(tex)
		}
	}
	e.vols = vols
	e.pipeline.RetainStacks(ids...)
}

// SetStack switches to another stack of the same voxel type, for example
// the next timepoint. Cached blocks of the previous stack age out through
// the LRU.
func (e *Engine) SetStack(s *volume.Stack) error {
	return e.SetStacks(s)
}

// SetStacks draws several stacks of the same voxel type from one cache,
// for example the setups of a multi-view dataset.
func (e *Engine) SetStacks(stacks ...*volume.Stack) error {
	if len(stacks) == 0 {
		return fmt.Errorf("%w: no stacks", volume.ErrInvalidStack)
	}
	for _, s := range stacks {
		if s.VoxelType() != e.spec.VoxelType() {
			return fmt.Errorf("%w: stack %s voxel type %s, want %s", volume.ErrInvalidStack, s.ID(), s.VoxelType(), e.spec.VoxelType())
		}
	}
	e.setStacks(stacks)
	return nil
}

// Stack returns the first stack.
func (e *Engine) Stack() *volume.Stack { return e.vols[0].stack }

// Stacks returns the drawn stacks.
func (e *Engine) Stacks() []*volume.Stack {
	stacks := make([]*volume.Stack, len(e.vols))
	for i, v := range e.vols {
		stacks[i] = v.stack
	}
	return stacks
}

// Spec returns the block layout.
func (e *Engine) Spec() volume.CacheSpec { return e.spec }

// Cache returns the block cache.
func (e *Engine) Cache() *cache.LRU { return e.cache }

// CacheTexture returns the cache texture.
func (e *Engine) CacheTexture() *gpu.Texture { return e.cacheTex }

// LookupTexture returns the lookup texture of the first stack.
func (e *Engine) LookupTexture() *gpu.Texture { return e.LookupTextureAt(0) }

// LookupTextureAt returns the lookup texture of stack i from its last
// visible frame, or nil before the first one.
func (e *Engine) LookupTextureAt(i int) *gpu.Texture { return e.vols[i].lutTex }

// Lookup returns the host lookup texture of the first stack.
func (e *Engine) Lookup() *lookup.Texture { return e.LookupAt(0) }

// LookupAt returns the host copy of the last lookup texture of stack i.
func (e *Engine) LookupAt(i int) *lookup.Texture { return e.vols[i].lut }

// RequiredBlocks returns the required blocks of the first stack.
func (e *Engine) RequiredBlocks() *cull.RequiredBlocks { return e.RequiredBlocksAt(0) }

// RequiredBlocksAt returns the required blocks of stack i from its last
// visible frame.
func (e *Engine) RequiredBlocksAt(i int) *cull.RequiredBlocks { return e.vols[i].required }

// Update streams the blocks needed to draw the stacks with the
// projection·view matrix pv into a viewport viewportWidth pixels wide.
func (e *Engine) Update(ctx context.Context, pv mat.Matrix, viewportWidth int) (frame Frame, err error) {
	if e.closed {
		return Frame{}, ErrClosed
	}
	start := time.Now()
	defer func() {
		frame.Duration = time.Since(start)
		e.metrics.OnFrame(frame.Duration, frame.Required, frame.Blocks, frame.NeedsRepaint)
	}()

	if e.cfg.CacheControl != nil {
		e.cfg.CacheControl.PrepareNextFrame()
	}

	frame.Volumes = make([]VolumeFrame, len(e.vols))
	visible := make([]*volumeState, 0, len(e.vols))
	for _, v := range e.vols {
		v.plan = nil
		ok, err := v.selectLevels(pv, viewportWidth)
		if err != nil {
			return frame, err
		}
		if ok {
			visible = append(visible, v)
		}
	}
	if err := e.planVolumes(visible); err != nil {
		return frame, err
	}

	var requests []request
	for i, v := range e.vols {
		p := v.plan
		if p == nil {
			continue
		}
		if !frame.Visible {
			frame.Visible = true
			frame.BaseLevel = p.base
		}
		frame.Volumes[i] = VolumeFrame{
			Visible:   true,
			BaseLevel: p.base,
			Required:  p.required.Len(),
			Blocks:    len(p.keys),
		}
		frame.Required += p.required.Len()
		v.required = p.required
		for _, key := range p.keys {
			requests = append(requests, request{key: key, level: v.stack.Level(key.Level)})
		}
	}
	if !frame.Visible {
		return frame, nil
	}

	if err := e.initSentinel(); err != nil {
		return frame, err
	}

	tasks, fresh, evictions, blocks := e.stage(requests)
	frame.Evictions = evictions
	frame.Blocks = blocks

	// The IO budget covers staging only, not level selection and planning.
	e.pipeline.ResetBudget()
	res, runErr := e.pipeline.Run(ctx, tasks, e.upload)
	frame.Staging = res
	for _, t := range tasks {
		if t.State() == staging.Uploaded {
			continue
		}
		// Skipped: a new slot holds nothing, a refilled one keeps its old
		// partial content.
		if fresh[t.Key] {
			e.cache.Remove(t.Key)
		} else {
			t.Slot.SetState(cache.Incomplete)
		}
	}
	if runErr != nil {
		return frame, runErr
	}

	for i, v := range e.vols {
		if v.plan == nil {
			continue
		}
		needsRepaint, err := e.buildLookup(v)
		if err != nil {
			return frame, err
		}
		frame.Volumes[i].NeedsRepaint = needsRepaint
		frame.NeedsRepaint = frame.NeedsRepaint || needsRepaint
	}

	e.logger.Debug("frame",
		"volumes", len(visible),
		"base_level", frame.BaseLevel,
		"required", frame.Required,
		"blocks", frame.Blocks,
		"issued", res.Issued,
		"skipped", res.Skipped,
		"incomplete", res.Incomplete,
		"evictions", frame.Evictions,
		"needs_repaint", frame.NeedsRepaint,
	)
	if frame.NeedsRepaint && e.cfg.RequestRepaint != nil {
		e.cfg.RequestRepaint()
	}
	return frame, nil
}

// selectLevels computes the level selector of v for this frame and reports
// whether v is visible.
func (v *volumeState) selectLevels(pv mat.Matrix, viewportWidth int) (bool, error) {
	v.sourceToNDC = geom.Mul(pv, v.stack.SourceToWorld())
	factors := make([][3]int, v.stack.NumLevels())
	for i, l := range v.stack.Levels() {
		factors[i] = l.R
	}
	sizes, err := mipmap.New(v.sourceToNDC, viewportWidth, factors, v.stack.Level(0).Dims())
	if err != nil {
		if errors.Is(err, geom.ErrSingular) {
			return false, nil
		}
		return false, err
	}
	v.sizes = sizes
	return sizes.Visible(), nil
}

// request is one block to stage and the level it is read from.
type request struct {
	key   cache.Key
	level *volume.Level
}

// stage binds every requested key to a slot and returns the fill tasks and
// the number of unique keys. Blocks with COMPLETE content are only touched.
// A key requested by several stacks is staged once. A key evicted by a later
// key of the same frame loses its task.
func (e *Engine) stage(reqs []request) (tasks []*staging.FillTask, fresh map[cache.Key]bool, evictions, unique int) {
	fresh = make(map[cache.Key]bool)
	seen := make(map[cache.Key]bool, len(reqs))
	byKey := make(map[cache.Key]*staging.FillTask, len(reqs))
	order := make([]cache.Key, 0, len(reqs))

	for _, r := range reqs {
		key := r.key
		if seen[key] {
			continue
		}
		seen[key] = true

		slot, ok := e.cache.Get(key)
		if ok && slot.State() == cache.Complete {
			continue
		}
		if !ok {
			var (
				evicted  cache.Key
				didEvict bool
			)
			slot, evicted, didEvict = e.cache.Add(key)
			if didEvict {
				evictions++
				e.metrics.OnEviction()
				e.logger.Debug("evicted block", "key", evicted.String(), "slot", slot.GridPos())
				delete(byKey, evicted)
				delete(fresh, evicted)
			}
			fresh[key] = true
		}
		slot.SetState(cache.Loading)
		byKey[key] = staging.NewFillTask(key, slot, e.fillFunc(r))
		order = append(order, key)
	}

	for _, key := range order {
		if t, ok := byKey[key]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, fresh, evictions, len(seen)
}

func (e *Engine) fillFunc(r request) staging.FillFunc {
	key, level, spec := r.key, r.level, e.spec
	return func(wc *staging.WorkerContext, dst []byte) bool {
		return wc.CopyBlock(dst, spec, key, level)
	}
}

// upload writes a staged block into its slot and records its state.
func (e *Engine) upload(t *staging.FillTask, data []byte) error {
	e.metrics.OnFill(t.Complete())
	err := e.writeBlock(t.Slot, data)
	e.metrics.OnUpload(len(data), err)
	if err != nil {
		t.Slot.SetState(cache.Incomplete)
		return err
	}
	if t.Complete() {
		t.Slot.SetState(cache.Complete)
	} else {
		t.Slot.SetState(cache.Incomplete)
	}
	return nil
}

func (e *Engine) writeBlock(slot *cache.Slot, data []byte) error {
	padded := e.spec.PaddedBlockSize()
	origin, err := conv.Origin3D(slot.Origin(padded))
	if err != nil {
		return err
	}
	size, err := conv.Extent3D(padded)
	if err != nil {
		return err
	}
	return e.device.WriteTexture(
		gputypes.ImageCopyTexture{Texture: e.cacheTex.Handle, Origin: origin, Aspect: gputypes.TextureAspectAll},
		data,
		gpu.TightLayout(size, e.spec.BytesPerVoxel()),
		size,
	)
}

// initSentinel zero-fills the out-of-bounds slot once.
func (e *Engine) initSentinel() error {
	if e.sentinelReady {
		return nil
	}
	if err := e.writeBlock(e.cache.Sentinel(), make([]byte, e.spec.BytesPerBlock())); err != nil {
		return fmt.Errorf("init sentinel slot: %w", err)
	}
	e.cache.Sentinel().SetState(cache.Complete)
	e.sentinelReady = true
	return nil
}

// buildLookup points every required block of v at its finest resident level
// and uploads the lookup texture of v.
func (e *Engine) buildLookup(v *volumeState) (needsRepaint bool, err error) {
	p := v.plan
	levels := v.stack.Levels()
	r := levels[p.base].R
	if err := v.lut.Reset(p.required.Min(), p.required.Max(), p.base, levels); err != nil {
		return false, err
	}

	for i, g0 := range p.required.Positions() {
		best := p.best[i]
		found := false
		for l := best; l < len(levels); l++ {
			key := cache.Key{Stack: v.stack.ID(), Level: l, Pos: levelPos(g0, r, levels[l].R)}
			slot, ok := e.cache.Peek(key)
			if !ok {
				continue
			}
			st := slot.State()
			if st != cache.Complete && st != cache.Incomplete {
				continue
			}
			e.cache.Get(key)
			if err := v.lut.Set(g0, slot.GridPos(), l); err != nil {
				return false, err
			}
			if l != best || st == cache.Incomplete {
				needsRepaint = true
			}
			found = true
			break
		}
		if !found {
			needsRepaint = true
		}
	}

	if err := e.uploadLookup(v); err != nil {
		return needsRepaint, err
	}
	return needsRepaint, nil
}

func (e *Engine) uploadLookup(v *volumeState) error {
	size, err := conv.Extent3D(v.lut.Size())
	if err != nil {
		return err
	}
	if v.lutTex == nil || v.lutTex.Descriptor.Size != size {
		if v.lutTex != nil {
			e.device.DestroyTexture(v.lutTex)
			v.lutTex = nil
		}
		tex, err := e.device.CreateTexture(gpu.Volume3D("blockstream lookup "+v.stack.ID().String(), size, gputypes.TextureFormatRGBA8Uint))
		if err != nil {
			return fmt.Errorf("create lookup texture: %w", err)
		}
		v.lutTex = tex
	}
	err = e.device.WriteTexture(
		gputypes.ImageCopyTexture{Texture: v.lutTex.Handle, Aspect: gputypes.TextureAspectAll},
		v.lut.Data(),
		gpu.TightLayout(size, lookup.TexelSize),
		size,
	)
	e.metrics.OnUpload(len(v.lut.Data()), err)
	if err != nil {
		return fmt.Errorf("upload lookup texture: %w", err)
	}
	return nil
}

// Close releases the textures and staging memory.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	for _, v := range e.vols {
		if v.lutTex != nil {
			e.device.DestroyTexture(v.lutTex)
		}
	}
	e.device.DestroyTexture(e.cacheTex)
	return e.pipeline.Close()
}
