package purfectimg

// ImageID uniquely identifies a cached image within an ImageStore.
// IDs are never reused for the lifetime of a store; 0 means "no image".
type ImageID uint32

// TileID identifies a resized derivative of an image. 0 means "no tile"
// (cells reference the image's native pixels directly).
type TileID uint32

// Image is a decoded RGBA pixel buffer held by the store. Once inserted
// it is immutable; it is destroyed when its last cell reference goes
// away or when it is chosen for capacity eviction.
type Image struct {
	ID     ImageID
	Width  int    // Pixel width
	Height int    // Pixel height
	Pixels []byte // RGBA, 4 bytes per pixel, row-major

	seq        uint64          // Insertion sequence number (FIFO order)
	tiles      map[TileID]*Tile
	placements []Placement
}

// Size returns the accounted byte size of the image's own pixel data.
func (img *Image) Size() int64 {
	return int64(img.Width) * int64(img.Height) * 4
}

// Refs returns the number of grid cells currently referencing the image
// (directly or through one of its tiles).
func (img *Image) Refs() int {
	return len(img.placements)
}

// Tile is a resized derivative of an Image's pixel data, produced when
// the cell pixel geometry changes. Tiles are owned by their parent image
// and accounted in total memory usage alongside it.
type Tile struct {
	ID     TileID
	Parent ImageID
	Width  int    // Pixel width
	Height int    // Pixel height
	Pixels []byte // RGBA

	// Cell pixel geometry this tile was generated for
	CellWidth  int
	CellHeight int
}

// Size returns the accounted byte size of the tile's pixel data.
func (t *Tile) Size() int64 {
	return int64(t.Width) * int64(t.Height) * 4
}

// Placement records one grid cell covered by an image: the cell position
// and the pixel sub-rectangle of the image (or its active tile) that the
// cell shows. The store uses placements to compute liveness.
type Placement struct {
	Col int
	Row int
	Alt bool // True if the cell is on the alternate screen buffer

	// Sub-rectangle within the image/tile pixels covering this cell
	OffX int
	OffY int
	SubW int
	SubH int
}

// CellRef is the per-cell record mirrored into the grid model: which
// image (and tile, if resized) a cell shows, and which sub-rectangle of
// it. The zero value means "no image content". A cell holds at most one
// CellRef; writing any other content over the cell invalidates it.
type CellRef struct {
	Image ImageID
	Tile  TileID
	OffX  int
	OffY  int
	SubW  int
	SubH  int

	// Placeholder marks a cell whose image was capacity-evicted while
	// still logically present; the renderer should paint a fill pattern.
	Placeholder bool
}

// IsZero returns true if the reference points at nothing.
func (r CellRef) IsZero() bool {
	return r == CellRef{}
}

// CellAnchor is the insertion position supplied by the caller when an
// image is added: the top-left cell the image will cover.
type CellAnchor struct {
	Col int
	Row int
	Alt bool // Insert on the alternate screen buffer
}

// CellRect describes a rectangular cell range on one screen buffer.
// Used to report overwritten or erased regions to the store.
type CellRect struct {
	Col  int
	Row  int
	Cols int
	Rows int
	Alt  bool
}

// contains reports whether the rectangle covers the given cell.
func (r CellRect) contains(col, row int, alt bool) bool {
	if alt != r.Alt {
		return false
	}
	return col >= r.Col && col < r.Col+r.Cols &&
		row >= r.Row && row < r.Row+r.Rows
}
