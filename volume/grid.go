package volume

// CellGrid is a level image split into fixed-size cells that are always
// available.
type CellGrid interface {
	// Dims returns the image size in voxels.
	Dims() [3]int64
	// CellDims returns the nominal cell size. Border cells are truncated.
	CellDims() [3]int
	// Cell returns the voxels of the cell at grid position pos, x fastest,
	// with extent CellExtent(grid, pos).
	Cell(pos [3]int64) []byte
}

// VolatileCellGrid is a CellGrid whose cells may not be resident yet.
type VolatileCellGrid interface {
	Dims() [3]int64
	CellDims() [3]int
	// TryCell returns the cell data and true if the cell is resident.
	// A miss may trigger background loading; it never blocks on IO.
	TryCell(pos [3]int64) ([]byte, bool)
}

// AccessKind tags the flavour of a Grid.
type AccessKind uint8

const (
	// AccessPlain grids always return data.
	AccessPlain AccessKind = iota
	// AccessVolatile grids may report cells as not resident.
	AccessVolatile
)

func (k AccessKind) String() string {
	if k == AccessVolatile {
		return "volatile"
	}
	return "plain"
}

// Grid is a tagged union over the two cell grid flavours.
type Grid struct {
	kind     AccessKind
	plain    CellGrid
	volatile VolatileCellGrid
}

// Plain wraps an always-resident grid.
func Plain(g CellGrid) Grid {
	return Grid{kind: AccessPlain, plain: g}
}

// Volatile wraps a grid whose cells may be missing.
func Volatile(g VolatileCellGrid) Grid {
	return Grid{kind: AccessVolatile, volatile: g}
}

// Kind returns the grid flavour.
func (g Grid) Kind() AccessKind { return g.kind }

// Valid reports whether g wraps a grid.
func (g Grid) Valid() bool { return g.plain != nil || g.volatile != nil }

// Dims returns the image size in voxels.
func (g Grid) Dims() [3]int64 {
	if g.kind == AccessVolatile {
		return g.volatile.Dims()
	}
	return g.plain.Dims()
}

// CellDims returns the nominal cell size.
func (g Grid) CellDims() [3]int {
	if g.kind == AccessVolatile {
		return g.volatile.CellDims()
	}
	return g.plain.CellDims()
}

// NewAccessor returns a fresh accessor. Each worker owns its own.
func (g Grid) NewAccessor() *Accessor {
	return &Accessor{
		grid:     g,
		dims:     g.Dims(),
		cellDims: g.CellDims(),
		last:     [3]int64{-1, -1, -1},
	}
}

// Accessor reads cells from a Grid. It memoizes the most recent lookup so
// that a residency check followed by a copy of the same cell hits the
// backing grid once. Not safe for concurrent use.
type Accessor struct {
	grid     Grid
	dims     [3]int64
	cellDims [3]int

	last     [3]int64
	lastData []byte
	lastOK   bool
}

// Dims returns the image size in voxels.
func (a *Accessor) Dims() [3]int64 { return a.dims }

// CellDims returns the nominal cell size.
func (a *Accessor) CellDims() [3]int { return a.cellDims }

// CellExtent returns the extent of cell pos along axis d.
func (a *Accessor) CellExtent(d int, pos int64) int {
	return CellExtent(a.dims[d], a.cellDims[d], pos)
}

// Cell returns the cell data at grid position pos, or false if it is not
// resident.
func (a *Accessor) Cell(pos [3]int64) ([]byte, bool) {
	if pos == a.last && a.lastOK {
		return a.lastData, true
	}
	var (
		data []byte
		ok   bool
	)
	switch a.grid.kind {
	case AccessVolatile:
		data, ok = a.grid.volatile.TryCell(pos)
	default:
		data, ok = a.grid.plain.Cell(pos), true
	}
	if ok {
		a.last, a.lastData, a.lastOK = pos, data, true
	}
	return data, ok
}

// Reset drops the memoized cell.
func (a *Accessor) Reset() {
	a.last, a.lastData, a.lastOK = [3]int64{-1, -1, -1}, nil, false
}

// CellExtent returns the size along one axis of the cell at grid index pos in
// an image of length dim split into cells of nominal size cell.
func CellExtent(dim int64, cell int, pos int64) int {
	rest := dim - pos*int64(cell)
	if rest < int64(cell) {
		return int(rest)
	}
	return cell
}

// GridSize returns the number of cells per axis.
func GridSize(dims [3]int64, cellDims [3]int) [3]int64 {
	var g [3]int64
	for d := 0; d < 3; d++ {
		c := int64(cellDims[d])
		g[d] = (dims[d] + c - 1) / c
	}
	return g
}
