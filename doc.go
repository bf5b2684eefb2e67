// Package blockstream streams the visible parts of very large
// multi-resolution volumes into a fixed-size GPU block cache for ray casting.
//
// Every frame the engine culls the blocks of a base resolution level against
// the view frustum, picks the coarsest level that still resolves each block
// on screen, stages the missing blocks from cell grids into the cache
// texture, and rewrites a lookup texture that maps each block position to
// its cache slot and level.
//
// # Quick Start
//
// In-memory data:
//
//	grid, _ := volume.NewArrayGrid(dims, [3]int{64, 64, 64}, 2, voxels)
//	stack, _ := volume.NewStack(volume.StackID{}, volume.Uint16, []*volume.Level{
//	    {Index: 0, R: [3]int{1, 1, 1}, Grid: volume.Plain(grid)},
//	})
//	e, _ := blockstream.New(stack, device)
//	frame, _ := e.Update(ctx, projView, viewportWidth)
//
// Paged data in object storage:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("volumes/"))
//	src, _ := paged.Open(ctx, store, "t0/s0")
//	stack, _ := src.Stack(volume.StackID{})
//	e, _ := blockstream.New(stack, device,
//	    blockstream.WithCacheControl(src),
//	    blockstream.WithRepaintFunc(requestRedraw),
//	)
//
// # Repaints
//
// Blocks whose cells are not resident yet are staged with zeros in place of
// the missing data and marked incomplete. A frame drawn from incomplete
// blocks, or from a coarser level than desired, reports NeedsRepaint; once
// the background loads finish the next Update refills those blocks.
//
// # Key Features
//
//   - Frustum culling by linear programming, exact for perspective views
//   - Per-block level selection from the on-screen voxel footprint
//   - LRU block cache with a reserved empty sentinel slot
//   - Parallel block staging with a per-frame IO budget
//   - Paged sources over S3, MinIO, local files or memory, LZ4/zstd cells
package blockstream
