package paged

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/blockstream/volume"
)

// Grid is one level of a Source. It implements volume.VolatileCellGrid.
type Grid struct {
	src      *Source
	info     LevelInfo
	gridSize [3]int64
	bpv      int

	mu       sync.RWMutex
	cells    [][]byte
	resident *bitset.BitSet
	inflight *roaring.Bitmap
	misses   uint64
}

var _ volume.VolatileCellGrid = (*Grid)(nil)

func newGrid(s *Source, info LevelInfo) *Grid {
	gs := info.GridSize()
	n := gs[0] * gs[1] * gs[2]
	return &Grid{
		src:      s,
		info:     info,
		gridSize: gs,
		bpv:      s.voxelType.BytesPerVoxel(),
		cells:    make([][]byte, n),
		resident: bitset.New(uint(n)),
		inflight: roaring.New(),
	}
}

// Info returns the level's manifest entry.
func (g *Grid) Info() LevelInfo { return g.info }

// Dims implements volume.VolatileCellGrid.
func (g *Grid) Dims() [3]int64 { return g.info.Dims }

// CellDims implements volume.VolatileCellGrid.
func (g *Grid) CellDims() [3]int { return g.info.CellDims }

func (g *Grid) index(pos [3]int64) uint32 {
	return uint32(pos[0] + g.gridSize[0]*(pos[1]+g.gridSize[1]*pos[2]))
}

func (g *Grid) cellBytes(pos [3]int64) int {
	n := g.bpv
	for d := 0; d < 3; d++ {
		n *= volume.CellExtent(g.info.Dims[d], g.info.CellDims[d], pos[d])
	}
	return n
}

// TryCell implements volume.VolatileCellGrid. A miss schedules a load
// unless one is already in flight.
func (g *Grid) TryCell(pos [3]int64) ([]byte, bool) {
	idx := g.index(pos)

	g.mu.RLock()
	if g.resident.Test(uint(idx)) {
		data := g.cells[idx]
		g.src.residency.touch(cellRef{grid: g, idx: idx})
		g.mu.RUnlock()
		return data, true
	}
	g.mu.RUnlock()

	g.mu.Lock()
	g.misses++
	if g.resident.Test(uint(idx)) {
		data := g.cells[idx]
		g.src.residency.touch(cellRef{grid: g, idx: idx})
		g.mu.Unlock()
		return data, true
	}
	start := g.inflight.CheckedAdd(idx)
	g.mu.Unlock()

	if start && !g.src.schedule(g, idx, pos) {
		g.abandon(idx)
	}
	return nil, false
}

// IsResident reports whether pos is resident without scheduling a load.
func (g *Grid) IsResident(pos [3]int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resident.Test(uint(g.index(pos)))
}

// ResidentCount returns the number of resident cells.
func (g *Grid) ResidentCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return int(g.resident.Count())
}

// InFlight returns the number of cells currently being loaded.
func (g *Grid) InFlight() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return int(g.inflight.GetCardinality())
}

// Misses returns how many TryCell calls found the cell not resident.
func (g *Grid) Misses() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.misses
}

// Evict drops a resident cell and returns its memory to the controller.
func (g *Grid) Evict(pos [3]int64) {
	idx := g.index(pos)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictLocked(idx)
}

func (g *Grid) evictLocked(idx uint32) {
	if !g.resident.Test(uint(idx)) {
		return
	}
	g.src.rc.ReleaseMemory(int64(len(g.cells[idx])))
	g.src.residency.remove(cellRef{grid: g, idx: idx})
	g.cells[idx] = nil
	g.resident.Clear(uint(idx))
}

// evictIndex drops cell idx if it is still resident.
func (g *Grid) evictIndex(idx uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictLocked(idx)
}

func (g *Grid) evictAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, ok := g.resident.NextSet(0); ok; i, ok = g.resident.NextSet(i + 1) {
		g.evictLocked(uint32(i))
	}
}

// install makes data resident, charging it to the memory limit. Least
// recently used cells are evicted while the limit would be exceeded.
func (g *Grid) install(pos [3]int64, data []byte) error {
	idx := g.index(pos)
	n := int64(len(data))
	if err := g.src.reserve(n); err != nil {
		g.abandon(idx)
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight.Remove(idx)
	if g.resident.Test(uint(idx)) {
		g.src.rc.ReleaseMemory(n)
		return nil
	}
	g.cells[idx] = data
	g.resident.Set(uint(idx))
	g.src.residency.touch(cellRef{grid: g, idx: idx})
	return nil
}

func (g *Grid) abandon(idx uint32) {
	g.mu.Lock()
	g.inflight.Remove(idx)
	g.mu.Unlock()
}
