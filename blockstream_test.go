package blockstream_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/blockstream"
	"github.com/hupe1980/blockstream/blobstore"
	"github.com/hupe1980/blockstream/gpu"
	"github.com/hupe1980/blockstream/paged"
	"github.com/hupe1980/blockstream/testutil"
	"github.com/hupe1980/blockstream/volume"
)

var (
	lo = r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}
	hi = r3.Vec{X: 63.5, Y: 63.5, Z: 63.5}
)

func arrayStack(t *testing.T, vt volume.VoxelType) *volume.Stack {
	t.Helper()
	dims := [3]int64{64, 64, 64}
	g, err := volume.NewArrayGrid(dims, [3]int{16, 16, 16}, vt.BytesPerVoxel(), testutil.NewRNG(1).Volume(dims, vt.BytesPerVoxel()))
	require.NoError(t, err)
	s, err := volume.NewStack(volume.StackID{}, vt, []*volume.Level{
		{Index: 0, R: [3]int{1, 1, 1}, Grid: volume.Plain(g)},
	})
	require.NoError(t, err)
	return s
}

func TestEngine_PagedSourceConverges(t *testing.T) {
	ctx := t.Context()
	store := blobstore.NewMemoryStore()
	_, err := paged.WriteStack(ctx, store, "t0/s0", arrayStack(t, volume.Uint8), paged.WriteOptions{})
	require.NoError(t, err)

	src, err := paged.Open(ctx, store, "t0/s0")
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	stack, err := src.Stack(volume.StackID{})
	require.NoError(t, err)

	metrics := &blockstream.BasicMetricsCollector{}
	repaints := 0
	e, err := blockstream.New(stack, gpu.NewSoftwareDevice(),
		blockstream.WithCacheGrid([3]int{9, 1, 1}),
		blockstream.WithWorkers(2),
		blockstream.WithStagingBuffers(2),
		blockstream.WithCacheControl(src),
		blockstream.WithMetricsCollector(metrics),
		blockstream.WithRepaintFunc(func() { repaints++ }),
	)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	f, err := e.Update(ctx, testutil.Ortho(lo, hi), 64)
	require.NoError(t, err)
	assert.True(t, f.Visible)
	assert.Equal(t, 8, f.Required)
	assert.Equal(t, 8, f.Incomplete)
	assert.True(t, f.NeedsRepaint)
	assert.Len(t, e.RequiredBlocks(), 8)

	frames := 1
	for f.NeedsRepaint && frames < 5 {
		src.Wait()
		f, err = e.Update(ctx, testutil.Ortho(lo, hi), 64)
		require.NoError(t, err)
		frames++
	}
	assert.False(t, f.NeedsRepaint)
	assert.Equal(t, 0, f.Evictions)
	assert.Equal(t, frames-1, repaints)

	stats := metrics.GetStats()
	assert.Equal(t, int64(frames), stats.FrameCount)
	assert.Equal(t, int64(8), stats.IncompleteFills)
	assert.Equal(t, int64(0), stats.EvictionCount)
	assert.Equal(t, int64(0), stats.UploadErrors)
	assert.Equal(t, 64, src.Level(0).ResidentCount())
}

func TestNew_ConfigError(t *testing.T) {
	spec, err := volume.NewCacheSpec([3]int{32, 32, 32}, volume.Uint16)
	require.NoError(t, err)

	_, err = blockstream.New(arrayStack(t, volume.Uint8), gpu.NewSoftwareDevice(), blockstream.WithCacheSpec(spec))
	var ce *blockstream.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cache spec", ce.Field)
	assert.ErrorIs(t, err, volume.ErrInvalidCacheSpec)
}

func TestEngine_SetStackAndClose(t *testing.T) {
	e, err := blockstream.New(arrayStack(t, volume.Uint16), gpu.NewSoftwareDevice(),
		blockstream.WithCacheMemoryMB(4),
		blockstream.WithLogger(blockstream.NoopLogger()),
	)
	require.NoError(t, err)

	_, err = e.Update(t.Context(), testutil.Ortho(lo, hi), 0)
	assert.ErrorIs(t, err, blockstream.ErrInvalidViewport)

	var ce *blockstream.ConfigError
	assert.True(t, errors.As(e.SetStack(arrayStack(t, volume.Uint8)), &ce))
	assert.NoError(t, e.SetStack(arrayStack(t, volume.Uint16)))

	f, err := e.Update(t.Context(), testutil.Ortho(lo, hi), 64)
	require.NoError(t, err)
	assert.True(t, f.Visible)
	assert.NotNil(t, e.LookupTexture())
	assert.Equal(t, [][3]float64{{0, 0, 0}, {1, 1, 1}}, e.LookupScales())

	require.NoError(t, e.Close())
	_, err = e.Update(t.Context(), testutil.Ortho(lo, hi), 64)
	assert.ErrorIs(t, err, blockstream.ErrClosed)
}

func TestEngine_SetStacks(t *testing.T) {
	a := arrayStack(t, volume.Uint8)
	b, err := volume.NewStack(volume.StackID{Setup: 1}, volume.Uint8, a.Levels())
	require.NoError(t, err)

	e, err := blockstream.New(a, gpu.NewSoftwareDevice(), blockstream.WithCacheMemoryMB(4))
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	require.NoError(t, e.SetStacks(a, b))
	assert.Len(t, e.Stacks(), 2)

	f, err := e.Update(t.Context(), testutil.Ortho(lo, hi), 64)
	require.NoError(t, err)
	require.Len(t, f.Volumes, 2)
	assert.True(t, f.Volumes[0].Visible)
	assert.True(t, f.Volumes[1].Visible)
	assert.Equal(t, f.Volumes[0].Required+f.Volumes[1].Required, f.Required)
	assert.NotNil(t, e.LookupTextureAt(1))
	assert.Equal(t, e.RequiredBlocks(), e.RequiredBlocksAt(1))
	assert.Equal(t, e.LookupOffset(), e.LookupOffsetAt(1))
	assert.Equal(t, e.LookupScales(), e.LookupScalesAt(1))

	var ce *blockstream.ConfigError
	assert.True(t, errors.As(e.SetStacks(a, arrayStack(t, volume.Uint16)), &ce))
}
