package staging

import (
	"github.com/hupe1980/blockstream/internal/cache"
	"github.com/hupe1980/blockstream/internal/gridcopy"
	"github.com/hupe1980/blockstream/volume"
)

// levelKey names one resolution level of one stack.
type levelKey struct {
	stack volume.StackID
	level int
}

// WorkerContext is the scratch state of one worker.
type WorkerContext struct {
	id        int
	accessors map[levelKey]*volume.Accessor
	copiers   map[volume.CacheSpec]*gridcopy.Copier
}

func newWorkerContext(id int) *WorkerContext {
	return &WorkerContext{
		id:        id,
		accessors: make(map[levelKey]*volume.Accessor),
		copiers:   make(map[volume.CacheSpec]*gridcopy.Copier),
	}
}

// ID returns the worker index.
func (w *WorkerContext) ID() int { return w.id }

// Accessor returns this worker's accessor for level index l of stack,
// creating it from level on first use.
func (w *WorkerContext) Accessor(stack volume.StackID, l int, level *volume.Level) *volume.Accessor {
	k := levelKey{stack: stack, level: l}
	acc, ok := w.accessors[k]
	if !ok {
		acc = level.Grid.NewAccessor()
		w.accessors[k] = acc
	}
	return acc
}

// Copier returns this worker's copier for spec.
func (w *WorkerContext) Copier(spec volume.CacheSpec) *gridcopy.Copier {
	c, ok := w.copiers[spec]
	if !ok {
		c = gridcopy.ForSpec(spec)
		w.copiers[spec] = c
	}
	return c
}

// CopyBlock fills dst with the block key, reading from level.
func (w *WorkerContext) CopyBlock(dst []byte, spec volume.CacheSpec, key cache.Key, level *volume.Level) bool {
	acc := w.Accessor(key.Stack, key.Level, level)
	acc.Reset()
	return w.Copier(spec).Copy(dst, spec.BlockMin(key.Pos), acc)
}

// retain drops the accessors of stacks not in keep.
func (w *WorkerContext) retain(keep map[volume.StackID]bool) {
	for k := range w.accessors {
		if !keep[k.stack] {
			delete(w.accessors, k)
		}
	}
}

// numAccessors returns the number of cached accessors.
func (w *WorkerContext) numAccessors() int { return len(w.accessors) }
