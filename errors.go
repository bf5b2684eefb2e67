package blockstream

import (
	"errors"
	"fmt"

	"github.com/hupe1980/blockstream/internal/cache"
	"github.com/hupe1980/blockstream/internal/engine"
	"github.com/hupe1980/blockstream/volume"
)

var (
	// ErrClosed is returned by Update after Close.
	ErrClosed = errors.New("blockstream: engine closed")

	// ErrInvalidViewport is returned when the viewport width is not positive.
	ErrInvalidViewport = errors.New("blockstream: viewport width must be positive")
)

// ConfigError reports an engine configuration that cannot be used with the
// given stack.
//
// The original underlying error can be accessed via errors.Unwrap.
type ConfigError struct {
	Field string
	cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.cause)
}

func (e *ConfigError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	switch {
	case errors.Is(err, volume.ErrUnsupportedVoxelType):
		return &ConfigError{Field: "voxel type", cause: err}
	case errors.Is(err, volume.ErrInvalidCacheSpec):
		return &ConfigError{Field: "cache spec", cause: err}
	case errors.Is(err, volume.ErrInvalidStack):
		return &ConfigError{Field: "stack", cause: err}
	case errors.Is(err, cache.ErrInvalidGrid):
		return &ConfigError{Field: "cache grid", cause: err}
	}

	return err
}
