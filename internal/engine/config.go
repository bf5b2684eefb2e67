package engine

import (
	"github.com/hupe1980/blockstream/internal/staging"
	"github.com/hupe1980/blockstream/volume"
)

// CacheControl is notified before each frame so a paged source can drop
// load requests of the previous frame.
type CacheControl interface {
	PrepareNextFrame()
}

// DefaultBlockSize is the block size used when Config.Spec is zero.
var DefaultBlockSize = [3]int{32, 32, 32}

// Config holds engine configuration.
type Config struct {
	// Spec is the block layout. If zero, DefaultBlockSize with a one voxel
	// halo and the stack's voxel type.
	Spec volume.CacheSpec

	// CacheGrid is the cache texture size in slots. If zero, derived from
	// CacheMemoryMB.
	CacheGrid [3]int

	// CacheMemoryMB bounds the cache texture when CacheGrid is zero.
	// If 0, defaults to 256.
	CacheMemoryMB int

	// Staging configures the fill workers, buffer ring, and IO budget.
	Staging staging.Config

	// AdaptiveBaseLevel raises the base level while the planned blocks do
	// not fit the cache.
	AdaptiveBaseLevel bool

	// CacheControl is called at the start of each frame. Optional.
	CacheControl CacheControl

	// RequestRepaint is called when a frame was drawn from incomplete or
	// coarser than desired data. Optional.
	RequestRepaint func()

	// Metrics observes frame events. Optional.
	Metrics MetricsObserver
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheMemoryMB:     256,
		Staging:           staging.DefaultConfig(),
		AdaptiveBaseLevel: true,
	}
}
