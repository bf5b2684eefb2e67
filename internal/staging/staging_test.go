package staging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/blockstream/internal/cache"
	"github.com/hupe1980/blockstream/testutil"
	"github.com/hupe1980/blockstream/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_BlocksUntilRelease(t *testing.T) {
	r, err := NewRing(2, 100)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 100, r.BlockBytes())

	a, err := r.Acquire(t.Context())
	require.NoError(t, err)
	b, err := r.Acquire(t.Context())
	require.NoError(t, err)
	assert.NotEqual(t, a.Index(), b.Index())
	assert.Len(t, a.Bytes(), 100)

	_, ok := r.TryAcquire()
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan *Buffer)
	go func() {
		buf, _ := r.Acquire(t.Context())
		got <- buf
	}()
	require.NoError(t, r.Release(a))
	assert.Equal(t, a, <-got)
	assert.Equal(t, 0, r.Available())

	other, err := NewRing(1, 8)
	require.NoError(t, err)
	defer other.Close()
	assert.ErrorIs(t, other.Release(b), ErrForeignBuffer)
}

func TestNew_RejectsUnsupportedVoxelType(t *testing.T) {
	_, err := New(volume.CacheSpec{}, Config{}, nil)
	assert.ErrorIs(t, err, volume.ErrUnsupportedVoxelType)
}

func newSpec(t *testing.T) volume.CacheSpec {
	t.Helper()
	spec, err := volume.NewCacheSpec([3]int{8, 8, 8}, volume.Uint8)
	require.NoError(t, err)
	return spec
}

func TestPipeline_FillsAndUploadsOnCaller(t *testing.T) {
	spec := newSpec(t)
	dims := [3]int64{16, 16, 16}
	data := testutil.NewRNG(1).Volume(dims, 1)
	g, err := volume.NewArrayGrid(dims, [3]int{8, 8, 8}, 1, data)
	require.NoError(t, err)
	level := &volume.Level{Index: 0, R: [3]int{1, 1, 1}, Grid: volume.Plain(g)}

	p, err := New(spec, Config{Workers: 3, Buffers: 2}, nil)
	require.NoError(t, err)
	defer p.Close()

	var (
		tasks []*FillTask
		mu    sync.Mutex
		inUse = map[int]bool{}
		clash atomic.Bool
	)
	for z := int64(0); z < 2; z++ {
		for y := int64(0); y < 2; y++ {
			for x := int64(0); x < 2; x++ {
				key := cache.Key{Pos: [3]int64{x, y, z}}
				tasks = append(tasks, NewFillTask(key, nil, func(wc *WorkerContext, dst []byte) bool {
					mu.Lock()
					if inUse[wc.ID()] {
						clash.Store(true)
					}
					inUse[wc.ID()] = true
					mu.Unlock()
					defer func() {
						mu.Lock()
						inUse[wc.ID()] = false
						mu.Unlock()
					}()
					return wc.CopyBlock(dst, spec, key, level)
				}))
			}
		}
	}

	uploaded := map[[3]int64][]byte{}
	res, err := p.Run(t.Context(), tasks, func(task *FillTask, buf []byte) error {
		assert.Equal(t, Filled, task.State())
		uploaded[task.Key.Pos] = append([]byte(nil), buf...)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, clash.Load())
	assert.Equal(t, Result{Issued: 8, Complete: 8}, Result{Issued: res.Issued, Skipped: res.Skipped, Complete: res.Complete, Incomplete: res.Incomplete})
	assert.Equal(t, 2, p.Ring().Available())

	for _, task := range tasks {
		assert.Equal(t, Uploaded, task.State())
		assert.True(t, task.Complete())
		pos := task.Key.Pos
		want := testutil.ReferenceBlock(data, dims, 1, spec.BlockMin(pos), spec.PaddedBlockSize())
		assert.Equal(t, want, uploaded[pos], "block %v", pos)
	}
}

func TestPipeline_BudgetStopsIssuing(t *testing.T) {
	spec := newSpec(t)
	p, err := New(spec, Config{Workers: 1, Buffers: 1, IOBudget: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	defer p.Close()

	slow := func(*WorkerContext, []byte) bool {
		time.Sleep(30 * time.Millisecond)
		return true
	}
	tasks := []*FillTask{
		NewFillTask(cache.Key{Level: 0}, nil, slow),
		NewFillTask(cache.Key{Level: 1}, nil, slow),
		NewFillTask(cache.Key{Level: 2}, nil, slow),
		NewFillTask(cache.Key{Level: 3}, nil, slow),
	}

	p.ResetBudget()
	res, err := p.Run(t.Context(), tasks, func(*FillTask, []byte) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, res.Issued)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, Uploaded, tasks[1].State())
	assert.Equal(t, Pending, tasks[2].State())
	assert.Equal(t, Pending, tasks[3].State())
}

func TestPipeline_UploadErrorDrainsEverything(t *testing.T) {
	spec := newSpec(t)
	p, err := New(spec, Config{Workers: 2, Buffers: 2}, nil)
	require.NoError(t, err)
	defer p.Close()

	var tasks []*FillTask
	for i := 0; i < 6; i++ {
		tasks = append(tasks, NewFillTask(cache.Key{Level: i}, nil, func(*WorkerContext, []byte) bool { return i%2 == 0 }))
	}

	boom := errors.New("device lost")
	calls := 0
	res, err := p.Run(t.Context(), tasks, func(*FillTask, []byte) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 6, calls)
	assert.Equal(t, 3, res.Complete)
	assert.Equal(t, 3, res.Incomplete)
	assert.Equal(t, 2, p.Ring().Available())
}

func TestPipeline_EmptyRun(t *testing.T) {
	p, err := New(newSpec(t), Config{}, nil)
	require.NoError(t, err)
	defer p.Close()

	res, err := p.Run(t.Context(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Issued)
	assert.GreaterOrEqual(t, p.Config().Workers, 1)
}

func TestPipeline_RetainStacksDropsAccessors(t *testing.T) {
	spec := newSpec(t)
	dims := [3]int64{8, 8, 8}
	g, err := volume.NewArrayGrid(dims, [3]int{8, 8, 8}, 1, make([]byte, 512))
	require.NoError(t, err)
	level := &volume.Level{Index: 0, R: [3]int{1, 1, 1}, Grid: volume.Plain(g)}

	p, err := New(spec, Config{Workers: 1, Buffers: 1}, nil)
	require.NoError(t, err)
	defer p.Close()

	t0 := volume.StackID{Timepoint: 0}
	t1 := volume.StackID{Timepoint: 1}
	var tasks []*FillTask
	for _, id := range []volume.StackID{t0, t1} {
		key := cache.Key{Stack: id}
		tasks = append(tasks, NewFillTask(key, nil, func(wc *WorkerContext, dst []byte) bool {
			return wc.CopyBlock(dst, spec, key, level)
		}))
	}
	_, err = p.Run(t.Context(), tasks, func(*FillTask, []byte) error { return nil })
	require.NoError(t, err)

	wc := <-p.workers
	assert.Equal(t, 2, wc.numAccessors())
	p.workers <- wc

	p.RetainStacks(t1)
	wc = <-p.workers
	assert.Equal(t, 1, wc.numAccessors())
	assert.Same(t, wc.Accessor(t1, 0, level), wc.Accessor(t1, 0, level))
	p.workers <- wc
}
