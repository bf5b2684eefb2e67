package paged

import (
	"container/list"
	"sync"
)

// cellRef names one cell of one level.
type cellRef struct {
	grid *Grid
	idx  uint32
}

// residency orders the resident cells of all levels by last use so the
// memory limit can be met by evicting the least recently used ones.
type residency struct {
	mu    sync.Mutex
	items map[cellRef]*list.Element
	order *list.List
}

func newResidency() *residency {
	return &residency{
		items: make(map[cellRef]*list.Element),
		order: list.New(),
	}
}

// touch marks ref as most recently used, adding it if needed.
func (r *residency) touch(ref cellRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[ref]; ok {
		r.order.MoveToFront(e)
		return
	}
	r.items[ref] = r.order.PushFront(ref)
}

func (r *residency) remove(ref cellRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[ref]; ok {
		r.order.Remove(e)
		delete(r.items, ref)
	}
}

// popOldest removes and returns the least recently used cell.
func (r *residency) popOldest() (cellRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.order.Back()
	if e == nil {
		return cellRef{}, false
	}
	ref := r.order.Remove(e).(cellRef)
	delete(r.items, ref)
	return ref, true
}

func (r *residency) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
