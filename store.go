package purfectimg

import "sync"

// DefaultCapacity is the default image memory budget in bytes.
const DefaultCapacity = 320 * 1024 * 1024

// ImageStore owns decoded images, maps grid cells to image regions, and
// keeps total accounted memory (images plus tiles) within a configured
// capacity. Two independent removal triggers operate on the one
// collection: FIFO eviction under capacity pressure, and liveness
// removal when no grid cell references an image anymore.
//
// All operations are whole, non-interleaved steps guarded by one lock;
// a single eviction pass runs per call, never partially applied.
type ImageStore struct {
	mu   sync.RWMutex
	grid Grid

	capacity int64
	usage    int64

	images []*Image // Insertion order preserved for FIFO eviction
	byID   map[ImageID]*Image

	nextImageID ImageID
	nextTileID  TileID
	nextSeq     uint64

	// Scrollback rows kept; placements scrolled past this retire
	history int

	placeholders bool
	onEvict      func(ImageID)
	evictions    uint64
}

// NewImageStore creates a store bound to a grid. capacity is the byte
// budget for images and tiles together; history is how many scrolled-off
// rows keep their image references alive.
func NewImageStore(grid Grid, capacity int64, history int) *ImageStore {
	return &ImageStore{
		grid:     grid,
		capacity: capacity,
		byID:     make(map[ImageID]*Image),
		history:  history,
	}
}

// SetEvictCallback sets a callback invoked whenever an image leaves the
// store, whatever the trigger.
func (s *ImageStore) SetEvictCallback(fn func(ImageID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// SetPlaceholders controls whether capacity eviction leaves placeholder
// markers in cells that still referenced the evicted image. When
// disabled the references are cleared entirely.
func (s *ImageStore) SetPlaceholders(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholders = enabled
}

// AddImage wraps a decoded RGBA buffer as a new image, writes cell
// references for the grid region it covers starting at the anchor, then
// evicts oldest images until usage fits the capacity again. The new
// image itself may be evicted immediately if it alone exceeds the
// capacity; that is documented eviction behavior, not an error.
func (s *ImageStore) AddImage(pixels []byte, width, height int, anchor CellAnchor) ImageID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextImageID++
	s.nextSeq++
	img := &Image{
		ID:     s.nextImageID,
		Width:  width,
		Height: height,
		Pixels: pixels,
		seq:    s.nextSeq,
		tiles:  make(map[TileID]*Tile),
	}

	s.placeImageLocked(img, anchor)

	s.images = append(s.images, img)
	s.byID[img.ID] = img
	s.usage += img.Size()

	s.evictForCapacityLocked()
	return img.ID
}

// placeImageLocked writes one cell reference per covered cell, clipped
// to the grid, and records the matching placements on the image. Cells
// an older image occupied lose their references first, which may remove
// that image entirely.
func (s *ImageStore) placeImageLocked(img *Image, anchor CellAnchor) {
	geom := s.grid.Geometry()
	if geom.CellWidth <= 0 || geom.CellHeight <= 0 {
		return
	}
	cols := ceilDiv(img.Width, geom.CellWidth)
	rows := ceilDiv(img.Height, geom.CellHeight)
	if anchor.Col+cols > geom.Cols {
		cols = geom.Cols - anchor.Col
	}

	s.overwriteLocked(CellRect{
		Col:  anchor.Col,
		Row:  anchor.Row,
		Cols: cols,
		Rows: rows,
		Alt:  anchor.Alt,
	})

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			offX := c * geom.CellWidth
			offY := r * geom.CellHeight
			pl := Placement{
				Col:  anchor.Col + c,
				Row:  anchor.Row + r,
				Alt:  anchor.Alt,
				OffX: offX,
				OffY: offY,
				SubW: minInt(geom.CellWidth, img.Width-offX),
				SubH: minInt(geom.CellHeight, img.Height-offY),
			}
			img.placements = append(img.placements, pl)
			s.grid.SetCellRef(pl.Col, pl.Row, pl.Alt, CellRef{
				Image: img.ID,
				OffX:  pl.OffX,
				OffY:  pl.OffY,
				SubW:  pl.SubW,
				SubH:  pl.SubH,
			})
		}
	}
}

// SetCapacity updates the byte budget. If usage now exceeds it, oldest
// images are evicted before the call returns, so an immediate usage
// query reflects the reduced total.
func (s *ImageStore) SetCapacity(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = bytes
	s.evictForCapacityLocked()
}

// Capacity returns the configured byte budget.
func (s *ImageStore) Capacity() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// Usage returns the accounted bytes of all images and tiles still
// present in the collection.
func (s *ImageStore) Usage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

// Count returns the number of cached images.
func (s *ImageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// GetImage returns a cached image by ID, or nil if it is gone.
func (s *ImageStore) GetImage(id ImageID) *Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// Stats is a point-in-time snapshot of store accounting.
type Stats struct {
	Images    int
	Tiles     int
	Usage     int64
	Capacity  int64
	Evictions uint64
}

// Stats returns current accounting totals.
func (s *ImageStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tiles := 0
	for _, img := range s.images {
		tiles += len(img.tiles)
	}
	return Stats{
		Images:    len(s.images),
		Tiles:     tiles,
		Usage:     s.usage,
		Capacity:  s.capacity,
		Evictions: s.evictions,
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
