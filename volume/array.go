package volume

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/blockstream/internal/mem"
)

// ArrayGrid is an in-memory CellGrid built from a dense x-fastest volume.
// The volume is split into per-cell arrays at construction.
type ArrayGrid struct {
	dims     [3]int64
	cellDims [3]int
	gridSize [3]int64
	bpv      int
	cells    [][]byte
}

var _ CellGrid = (*ArrayGrid)(nil)

// NewArrayGrid splits data (dims voxels of bpv bytes each, x fastest) into
// cells of cellDims.
func NewArrayGrid(dims [3]int64, cellDims [3]int, bpv int, data []byte) (*ArrayGrid, error) {
	for d := 0; d < 3; d++ {
		if dims[d] <= 0 || cellDims[d] <= 0 {
			return nil, fmt.Errorf("%w: dims %v cell dims %v", ErrInvalidStack, dims, cellDims)
		}
	}
	n := dims[0] * dims[1] * dims[2] * int64(bpv)
	if int64(len(data)) != n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidStack, len(data), n)
	}

	g := &ArrayGrid{
		dims:     dims,
		cellDims: cellDims,
		gridSize: GridSize(dims, cellDims),
		bpv:      bpv,
	}
	g.cells = make([][]byte, g.gridSize[0]*g.gridSize[1]*g.gridSize[2])

	srcDims := [3]int{int(dims[0]), int(dims[1]), int(dims[2])}
	for gz := int64(0); gz < g.gridSize[2]; gz++ {
		for gy := int64(0); gy < g.gridSize[1]; gy++ {
			for gx := int64(0); gx < g.gridSize[0]; gx++ {
				pos := [3]int64{gx, gy, gz}
				ext := g.extent(pos)
				cell := mem.AllocAligned(ext[0] * ext[1] * ext[2] * bpv)
				off := [3]int{int(gx) * cellDims[0], int(gy) * cellDims[1], int(gz) * cellDims[2]}
				mem.Copy3D(cell, ext, [3]int{}, data, srcDims, off, ext, bpv)
				g.cells[g.index(pos)] = cell
			}
		}
	}
	return g, nil
}

func (g *ArrayGrid) extent(pos [3]int64) [3]int {
	return [3]int{
		CellExtent(g.dims[0], g.cellDims[0], pos[0]),
		CellExtent(g.dims[1], g.cellDims[1], pos[1]),
		CellExtent(g.dims[2], g.cellDims[2], pos[2]),
	}
}

func (g *ArrayGrid) index(pos [3]int64) int64 {
	return pos[0] + g.gridSize[0]*(pos[1]+g.gridSize[1]*pos[2])
}

// Dims implements CellGrid.
func (g *ArrayGrid) Dims() [3]int64 { return g.dims }

// CellDims implements CellGrid.
func (g *ArrayGrid) CellDims() [3]int { return g.cellDims }

// GridSize returns the number of cells per axis.
func (g *ArrayGrid) GridSize() [3]int64 { return g.gridSize }

// Cell implements CellGrid.
func (g *ArrayGrid) Cell(pos [3]int64) []byte {
	return g.cells[g.index(pos)]
}

// VolatileArrayGrid wraps an ArrayGrid with an explicit residency set. Cells
// start out non-resident. It is used to model partially loaded sources.
type VolatileArrayGrid struct {
	*ArrayGrid

	mu       sync.RWMutex
	resident *bitset.BitSet
	misses   uint64
}

var _ VolatileCellGrid = (*VolatileArrayGrid)(nil)

// NewVolatileArrayGrid returns a volatile view of g with no resident cells.
func NewVolatileArrayGrid(g *ArrayGrid) *VolatileArrayGrid {
	return &VolatileArrayGrid{
		ArrayGrid: g,
		resident:  bitset.New(uint(len(g.cells))),
	}
}

// TryCell implements VolatileCellGrid.
func (v *VolatileArrayGrid) TryCell(pos [3]int64) ([]byte, bool) {
	i := uint(v.index(pos))
	v.mu.RLock()
	ok := v.resident.Test(i)
	v.mu.RUnlock()
	if !ok {
		v.mu.Lock()
		v.misses++
		v.mu.Unlock()
		return nil, false
	}
	return v.cells[i], true
}

// SetResident marks a cell as (not) resident.
func (v *VolatileArrayGrid) SetResident(pos [3]int64, resident bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resident.SetTo(uint(v.index(pos)), resident)
}

// SetAllResident marks every cell as (not) resident.
func (v *VolatileArrayGrid) SetAllResident(resident bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !resident {
		v.resident.ClearAll()
		return
	}
	for i := uint(0); i < uint(len(v.cells)); i++ {
		v.resident.Set(i)
	}
}

// ResidentCount returns the number of resident cells.
func (v *VolatileArrayGrid) ResidentCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return int(v.resident.Count())
}

// Misses returns how many TryCell calls hit a non-resident cell.
func (v *VolatileArrayGrid) Misses() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.misses
}
