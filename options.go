package blockstream

import (
	"time"

	"github.com/hupe1980/blockstream/internal/engine"
	"github.com/hupe1980/blockstream/volume"
)

// CacheControl is notified at the start of every frame. paged.Source
// implements it to drop load requests the previous frame no longer needs.
type CacheControl interface {
	PrepareNextFrame()
}

type options struct {
	cfg              engine.Config
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures New.
type Option func(*options)

func defaultOptions() options {
	return options{cfg: engine.DefaultConfig()}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := blockstream.NewJSONLogger(slog.LevelDebug)
//	e, _ := blockstream.New(stack, device, blockstream.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for monitoring frames.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &blockstream.BasicMetricsCollector{}
//	e, _ := blockstream.New(stack, device, blockstream.WithMetricsCollector(metrics))
//	// ... render ...
//	stats := metrics.GetStats()
//	fmt.Printf("Frames: %d, Evictions: %d\n", stats.FrameCount, stats.EvictionCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithCacheSpec sets the block layout. The voxel type must match the stack.
func WithCacheSpec(spec volume.CacheSpec) Option {
	return func(o *options) {
		o.cfg.Spec = spec
	}
}

// WithCacheGrid sets the cache texture size in slots. One slot is reserved
// for the empty sentinel block.
func WithCacheGrid(grid [3]int) Option {
	return func(o *options) {
		o.cfg.CacheGrid = grid
	}
}

// WithCacheMemoryMB bounds the cache texture when no grid is given.
// Default 256.
func WithCacheMemoryMB(mb int) Option {
	return func(o *options) {
		o.cfg.CacheMemoryMB = mb
	}
}

// WithWorkers sets the number of fill workers.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.cfg.Staging.Workers = n
	}
}

// WithStagingBuffers sets the number of block sized staging buffers.
func WithStagingBuffers(n int) Option {
	return func(o *options) {
		o.cfg.Staging.Buffers = n
	}
}

// WithIOBudget caps the time spent issuing fills per frame. Blocks not
// issued in time are left for the next frame and the frame requests a
// repaint. Zero disables the budget.
func WithIOBudget(d time.Duration) Option {
	return func(o *options) {
		o.cfg.Staging.IOBudget = d
	}
}

// WithRepaintFunc registers a callback invoked when a frame was drawn from
// incomplete or coarser than desired data.
func WithRepaintFunc(fn func()) Option {
	return func(o *options) {
		o.cfg.RequestRepaint = fn
	}
}

// WithCacheControl registers a CacheControl notified before every frame.
func WithCacheControl(cc CacheControl) Option {
	return func(o *options) {
		o.cfg.CacheControl = cc
	}
}

// WithAdaptiveBaseLevel enables or disables raising the base level while
// the planned blocks do not fit the cache. Enabled by default.
func WithAdaptiveBaseLevel(enabled bool) Option {
	return func(o *options) {
		o.cfg.AdaptiveBaseLevel = enabled
	}
}
