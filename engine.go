package blockstream

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/blockstream/gpu"
	"github.com/hupe1980/blockstream/internal/engine"
	"github.com/hupe1980/blockstream/volume"
)

// Frame summarizes one Update.
type Frame struct {
	// Visible is false when no part of the volume is inside the frustum.
	// All other fields are zero then.
	Visible bool
	// BaseLevel is the level the required blocks were culled at.
	BaseLevel int
	// Required is the number of required base level blocks.
	Required int
	// Blocks is the number of unique blocks selected across levels.
	Blocks int
	// Evictions counts slots taken from other blocks.
	Evictions int

	// Issued, Skipped, Complete and Incomplete report the fill work.
	Issued     int
	Skipped    int
	Complete   int
	Incomplete int

	// NeedsRepaint is true if the frame should be drawn again once more data
	// has arrived.
	NeedsRepaint bool
	Duration     time.Duration

	// Volumes has one entry per stack passed to SetStacks.
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

func frameFrom(f engine.Frame) Frame {
	vols := make([]VolumeFrame, len(f.Volumes))
	for i, v := range f.Volumes {
		vols[i] = VolumeFrame(v)
	}
	return Frame{
		Visible:      f.Visible,
		BaseLevel:    f.BaseLevel,
		Required:     f.Required,
		Blocks:       f.Blocks,
		Evictions:    f.Evictions,
		Issued:       f.Staging.Issued,
		Skipped:      f.Staging.Skipped,
		Complete:     f.Staging.Complete,
		Incomplete:   f.Staging.Incomplete,
		NeedsRepaint: f.NeedsRepaint,
		Duration:     f.Duration,
		Volumes:      vols,
	}
}

// Engine streams the visible blocks of a multi-resolution stack into a GPU
// cache texture and maintains the lookup texture a ray caster samples
// through. An Engine is driven by one render goroutine.
type Engine struct {
	e      *engine.Engine
	logger *Logger
}

// New creates an engine for stack on device.
func New(stack *volume.Stack, device gpu.Device, optFns ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector != nil {
		o.cfg.Metrics = metricsObserver{mc: o.metricsCollector}
	}

	e, err := engine.New(stack, device, o.cfg, o.logger.WithComponent("engine").Logger)
	if err != nil {
		return nil, translateError(err)
	}
	return &Engine{e: e, logger: o.logger}, nil
}

// Update prepares the cache and lookup textures for drawing the stack with
// the projection·view matrix pv into a viewport viewportWidth pixels wide.
//
// Update blocks until every issued fill has been uploaded. It returns the
// frame summary even on error.
func (e *Engine) Update(ctx context.Context, pv mat.Matrix, viewportWidth int) (Frame, error) {
	if viewportWidth <= 0 {
		return Frame{}, ErrInvalidViewport
	}
	f, err := e.e.Update(ctx, pv, viewportWidth)
	frame := frameFrom(f)
	err = translateError(err)
	e.logger.LogFrame(ctx, frame, err)
	return frame, err
}

// SetStack switches to another stack with the same voxel type, for example
// the next timepoint. Cached blocks of the previous stack stay until they
// are evicted.
func (e *Engine) SetStack(stack *volume.Stack) error {
	err := translateError(e.e.SetStack(stack))
	id := stack.ID()
	e.logger.LogStackSwitch(context.Background(), id.Timepoint, id.Setup, err)
	return err
}

// SetStacks draws several stacks of the same voxel type from one cache, for
// example the setups of a multi-view dataset. While their blocks exceed the
// cache, the stack needing the most blocks is drawn coarser.
func (e *Engine) SetStacks(stacks ...*volume.Stack) error {
	err := translateError(e.e.SetStacks(stacks...))
	for _, s := range stacks {
		id := s.ID()
		e.logger.LogStackSwitch(context.Background(), id.Timepoint, id.Setup, err)
	}
	return err
}

// Stack returns the first stack.
func (e *Engine) Stack() *volume.Stack { return e.e.Stack() }

// Stacks returns the drawn stacks.
func (e *Engine) Stacks() []*volume.Stack { return e.e.Stacks() }

// Spec returns the block layout in use.
func (e *Engine) Spec() volume.CacheSpec { return e.e.Spec() }

// CacheTexture returns the block cache texture.
func (e *Engine) CacheTexture() *gpu.Texture { return e.e.CacheTexture() }

// CacheGridSize returns the cache texture size in slots.
func (e *Engine) CacheGridSize() [3]int { return e.e.Cache().GridSize() }

// LookupTexture returns the lookup texture of the first stack from its last
// visible frame, or nil before the first one.
func (e *Engine) LookupTexture() *gpu.Texture { return e.e.LookupTexture() }

// LookupTextureAt is LookupTexture for stack i.
func (e *Engine) LookupTextureAt(i int) *gpu.Texture { return e.e.LookupTextureAt(i) }

// LookupOffset returns the translation from base level block positions to
// lookup texels.
func (e *Engine) LookupOffset() [3]int64 { return e.LookupOffsetAt(0) }

// LookupOffsetAt is LookupOffset for stack i.
func (e *Engine) LookupOffsetAt(i int) [3]int64 { return e.e.LookupAt(i).Offset() }

// LookupScales returns the block scale table of the last visible frame.
// Entry 0 belongs to the sentinel; entry i+1 to level BaseLevel+i.
func (e *Engine) LookupScales() [][3]float64 { return e.LookupScalesAt(0) }

// LookupScalesAt is LookupScales for stack i.
func (e *Engine) LookupScalesAt(i int) [][3]float64 { return e.e.LookupAt(i).Scales() }

// RequiredBlocks returns the required base level block positions of the
// last visible frame.
func (e *Engine) RequiredBlocks() [][3]int64 { return e.RequiredBlocksAt(0) }

// RequiredBlocksAt is RequiredBlocks for stack i.
func (e *Engine) RequiredBlocksAt(i int) [][3]int64 {
	rb := e.e.RequiredBlocksAt(i)
	if rb == nil {
		return nil
	}
	return rb.Positions()
}

// Close releases the textures and staging memory.
func (e *Engine) Close() error {
	return translateError(e.e.Close())
}
