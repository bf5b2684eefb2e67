package paged

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blockstream/blobstore"
	"github.com/hupe1980/blockstream/internal/codec"
	"github.com/hupe1980/blockstream/volume"
)

// WriteOptions configures Write and WriteStack.
type WriteOptions struct {
	// Compression for cell blobs. Default None.
	Compression codec.Compression
	// Parallelism bounds concurrent Puts. Default 4.
	Parallelism int
	// Codec encodes the manifest. Default codec.Default.
	Codec codec.Codec
}

func (o WriteOptions) parallelism() int {
	if o.Parallelism <= 0 {
		return 4
	}
	return o.Parallelism
}

// Write exports every cell of level as one compressed blob and returns the
// level's manifest entry. Volatile grids must be fully resident.
func Write(ctx context.Context, store blobstore.Store, prefix string, level *volume.Level, opts WriteOptions) (LevelInfo, error) {
	info := LevelInfo{
		Index:    level.Index,
		R:        level.R,
		Dims:     level.Dims(),
		CellDims: level.Grid.CellDims(),
	}
	gs := info.GridSize()

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallelism())

	acc := level.Grid.NewAccessor()
	for z := int64(0); z < gs[2]; z++ {
		for y := int64(0); y < gs[1]; y++ {
			for x := int64(0); x < gs[0]; x++ {
				pos := [3]int64{x, y, z}
				data, ok := acc.Cell(pos)
				if !ok {
					_ = g.Wait()
					return info, fmt.Errorf("level %d cell %v is not resident", level.Index, pos)
				}
				g.Go(func() error {
					blob, err := codec.Compress(data, opts.Compression)
					if err != nil {
						return err
					}
					written.Add(int64(len(blob)))
					return store.Put(gctx, cellName(prefix, level.Index, pos), blob)
				})
				info.Cells++
			}
		}
	}
	if err := g.Wait(); err != nil {
		return info, fmt.Errorf("failed to write level %d: %w", level.Index, err)
	}
	info.Bytes = written.Load()
	return info, nil
}

// WriteStack exports all levels of s and then the manifest, so a reader
// never sees a manifest whose cells are missing.
func WriteStack(ctx context.Context, store blobstore.Store, prefix string, s *volume.Stack, opts WriteOptions) (*Manifest, error) {
	m := &Manifest{
		Version:     CurrentVersion,
		CreatedAt:   time.Now().UTC(),
		VoxelType:   s.VoxelType().String(),
		Compression: opts.Compression.String(),
	}
	for _, l := range s.Levels() {
		info, err := Write(ctx, store, prefix, l, opts)
		if err != nil {
			return nil, err
		}
		m.Levels = append(m.Levels, info)
	}
	if err := SaveManifest(ctx, store, prefix, m, opts.Codec); err != nil {
		return nil, err
	}
	return m, nil
}
