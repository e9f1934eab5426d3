package purfectimg

// CellGeometry describes the grid the host terminal exposes: how many
// cells it has and how large each cell is in pixels.
type CellGeometry struct {
	Cols       int
	Rows       int
	CellWidth  int // Pixel width of one cell
	CellHeight int // Pixel height of one cell
}

// ViewportWidth returns the viewport pixel width.
func (g CellGeometry) ViewportWidth() int {
	return g.Cols * g.CellWidth
}

// ViewportHeight returns the viewport pixel height.
func (g CellGeometry) ViewportHeight() int {
	return g.Rows * g.CellHeight
}

// Grid is the surrounding terminal's cell model as seen by the image
// store. The grid owns the cell-reference table; the store mirrors
// references into it when images are placed and clears (or replaces
// with placeholders) when images go away. The store never interprets
// text content - it only reads geometry and writes CellRefs.
type Grid interface {
	// Geometry returns the current cell geometry.
	Geometry() CellGeometry

	// CellRef returns the image reference held by a cell, if any.
	CellRef(col, row int, alt bool) CellRef

	// SetCellRef installs an image reference in a cell, replacing
	// whatever reference the cell held before.
	SetCellRef(col, row int, alt bool, ref CellRef)

	// ClearCellRef removes any image reference from a cell.
	ClearCellRef(col, row int, alt bool)
}

// CellGrid is a self-contained Grid implementation for hosts that do not
// bring their own cell model (and for tests). Cells outside the viewport
// rectangle are tolerated: scrollback rows sit at negative row numbers
// and are stored sparsely.
type CellGrid struct {
	geom CellGeometry
	main map[cellPos]CellRef
	alt  map[cellPos]CellRef
}

type cellPos struct {
	col int
	row int
}

// NewCellGrid creates a grid with the given dimensions.
func NewCellGrid(cols, rows, cellWidth, cellHeight int) *CellGrid {
	return &CellGrid{
		geom: CellGeometry{
			Cols:       cols,
			Rows:       rows,
			CellWidth:  cellWidth,
			CellHeight: cellHeight,
		},
		main: make(map[cellPos]CellRef),
		alt:  make(map[cellPos]CellRef),
	}
}

// Geometry returns the current cell geometry.
func (g *CellGrid) Geometry() CellGeometry {
	return g.geom
}

// SetCellSize updates the pixel size of a cell (font rescale). The host
// must follow up with ImageStore.ViewportResize so tiles are regenerated.
func (g *CellGrid) SetCellSize(cellWidth, cellHeight int) {
	g.geom.CellWidth = cellWidth
	g.geom.CellHeight = cellHeight
}

// Resize updates the column/row counts.
func (g *CellGrid) Resize(cols, rows int) {
	g.geom.Cols = cols
	g.geom.Rows = rows
}

func (g *CellGrid) table(alt bool) map[cellPos]CellRef {
	if alt {
		return g.alt
	}
	return g.main
}

// CellRef returns the image reference held by a cell, if any.
func (g *CellGrid) CellRef(col, row int, alt bool) CellRef {
	return g.table(alt)[cellPos{col, row}]
}

// SetCellRef installs an image reference in a cell.
func (g *CellGrid) SetCellRef(col, row int, alt bool, ref CellRef) {
	g.table(alt)[cellPos{col, row}] = ref
}

// ClearCellRef removes any image reference from a cell.
func (g *CellGrid) ClearCellRef(col, row int, alt bool) {
	delete(g.table(alt), cellPos{col, row})
}
