package cache

import (
	"container/list"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/blockstream/volume"
)

// ErrInvalidGrid is returned by New for grids without free slots.
var ErrInvalidGrid = errors.New("cache: invalid grid")

// LRU binds keys to slots of a fixed cache block grid, evicting the least
// recently used key when full.
type LRU struct {
	mu        sync.Mutex
	gridSize  [3]int
	reserved  int
	capacity  int
	items     map[Key]*list.Element
	evictList *list.List
	free      []*Slot
	allocated int
	sentinel  *Slot

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New returns a cache over a grid of gridSize slots, the first reserved of
// which are never handed out. Slot 0 is the sentinel, so reserved must be at
// least 1.
func New(gridSize [3]int, reserved int) (*LRU, error) {
	if reserved < 1 {
		return nil, fmt.Errorf("%w: reserved slots %d, need at least 1", ErrInvalidGrid, reserved)
	}
	for d := 0; d < 3; d++ {
		if gridSize[d] <= 0 || gridSize[d] > math.MaxUint8+1 {
			return nil, fmt.Errorf("%w: grid size %v", ErrInvalidGrid, gridSize)
		}
	}
	capacity := gridSize[0]*gridSize[1]*gridSize[2] - reserved
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: grid %v has no free slot after %d reserved", ErrInvalidGrid, gridSize, reserved)
	}
	return &LRU{
		gridSize:  gridSize,
		reserved:  reserved,
		capacity:  capacity,
		items:     make(map[Key]*list.Element, capacity),
		evictList: list.New(),
		sentinel:  &Slot{},
	}, nil
}

// Get returns the slot bound to key and marks it most recently used.
func (c *LRU) Get(key Key) (*Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*Slot), true
	}
	c.misses.Add(1)
	return nil, false
}

// Peek returns the slot bound to key without touching the recency order or
// the statistics.
func (c *LRU) Peek(key Key) (*Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		return ent.Value.(*Slot), true
	}
	return nil, false
}

// Add binds key to a slot. When the cache is full the least recently used
// key is evicted, its slot is reused and returned as evicted. The new slot
// starts out Empty.
//
// Add panics if key is already bound.
func (c *LRU) Add(key Key) (slot *Slot, evicted Key, didEvict bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		panic(fmt.Sprintf("cache: key %s already bound", key))
	}

	switch {
	case len(c.free) > 0:
		slot = c.free[len(c.free)-1]
		c.free = c.free[:len(c.free)-1]
	case c.allocated < c.capacity:
		slot = &Slot{pos: unravel(c.allocated+c.reserved, c.gridSize)}
		c.allocated++
	default:
		ent := c.evictList.Back()
		slot = ent.Value.(*Slot)
		evicted, didEvict = slot.key, true
		delete(c.items, evicted)
		c.evictList.Remove(ent)
		c.evictions.Add(1)
	}

	slot.key = key
	slot.SetState(Empty)
	c.items[key] = c.evictList.PushFront(slot)
	return slot, evicted, didEvict
}

// Remove unbinds key. Its slot is reused by the next Add.
func (c *LRU) Remove(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return false
	}
	slot := ent.Value.(*Slot)
	slot.SetState(Empty)
	c.evictList.Remove(ent)
	delete(c.items, key)
	c.free = append(c.free, slot)
	return true
}

// SetState records the content state of the slot bound to key.
func (c *LRU) SetState(key Key, st ContentState) bool {
	slot, ok := c.Peek(key)
	if !ok {
		return false
	}
	slot.SetState(st)
	return true
}

// Len returns the number of bound keys.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the number of slots available to keys.
func (c *LRU) Capacity() int { return c.capacity }

// GridSize returns the cache block grid size.
func (c *LRU) GridSize() [3]int { return c.gridSize }

// Reserved returns the number of reserved slots.
func (c *LRU) Reserved() int { return c.reserved }

// Sentinel returns the reserved slot at grid position (0,0,0).
func (c *LRU) Sentinel() *Slot { return c.sentinel }

// Stats returns hit, miss and eviction counts.
func (c *LRU) Stats() (hits, misses, evictions int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

func unravel(i int, grid [3]int) [3]int {
	return [3]int{
		i % grid[0],
		(i / grid[0]) % grid[1],
		i / (grid[0] * grid[1]),
	}
}

// FindSuitableGridSize returns the largest cube-ish grid of padded blocks
// that fits in maxMemoryMB.
func FindSuitableGridSize(spec volume.CacheSpec, maxMemoryMB int) [3]int {
	numVoxels := float64(maxMemoryMB) * 1024 * 1024 / float64(spec.BytesPerVoxel())
	side := math.Cbrt(numVoxels)
	padded := spec.PaddedBlockSize()
	var g [3]int
	for d := 0; d < 3; d++ {
		g[d] = int(side / float64(padded[d]))
		if g[d] > math.MaxUint8+1 {
			g[d] = math.MaxUint8 + 1
		}
	}
	return g
}
