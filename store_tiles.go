package purfectimg

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// --- Tiles ---
//
// A tile is the image's pixel data rescaled for a particular cell pixel
// geometry. Cells keep referencing the same image across font rescales;
// only the tile they resolve through changes.

// ViewportResize regenerates tiles for images whose existing tiles no
// longer match the new cell pixel geometry. Which cells reference which
// image does not change. Tile memory is accounted against the capacity,
// so regeneration may trigger a capacity eviction pass.
func (s *ImageStore) ViewportResize(cellWidth, cellHeight int) {
	if cellWidth <= 0 || cellHeight <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, img := range s.images {
		s.retileLocked(img, cellWidth, cellHeight)
	}
	s.evictForCapacityLocked()
}

// retileLocked rebuilds one image's active tile for the given geometry
// and rewrites its placements and grid references against it. Stale
// tiles from earlier geometry generations are dropped from accounting.
func (s *ImageStore) retileLocked(img *Image, cellWidth, cellHeight int) {
	if len(img.placements) == 0 {
		return
	}

	minCol, minRow := img.placements[0].Col, img.placements[0].Row
	maxCol, maxRow := minCol, minRow
	for _, pl := range img.placements[1:] {
		minCol = minInt(minCol, pl.Col)
		minRow = minInt(minRow, pl.Row)
		if pl.Col > maxCol {
			maxCol = pl.Col
		}
		if pl.Row > maxRow {
			maxRow = pl.Row
		}
	}
	targetW := (maxCol - minCol + 1) * cellWidth
	targetH := (maxRow - minRow + 1) * cellHeight

	var active *Tile
	if targetW != img.Width || targetH != img.Height {
		for _, t := range img.tiles {
			if t.CellWidth == cellWidth && t.CellHeight == cellHeight {
				active = t
				break
			}
		}
		if active == nil {
			scaled := resize.Resize(uint(targetW), uint(targetH),
				pixelsToRGBA(img.Pixels, img.Width, img.Height), resize.Bilinear)
			s.nextTileID++
			active = &Tile{
				ID:         s.nextTileID,
				Parent:     img.ID,
				Width:      targetW,
				Height:     targetH,
				Pixels:     imageToPixels(scaled),
				CellWidth:  cellWidth,
				CellHeight: cellHeight,
			}
		}
	}

	// Drop stale generations, keep only the active tile
	for id, t := range img.tiles {
		if t != active {
			s.usage -= t.Size()
			delete(img.tiles, id)
		}
	}
	if active != nil && img.tiles[active.ID] == nil {
		img.tiles[active.ID] = active
		s.usage += active.Size()
	}

	srcW, srcH := img.Width, img.Height
	var tileID TileID
	if active != nil {
		srcW, srcH = active.Width, active.Height
		tileID = active.ID
	}
	for i := range img.placements {
		pl := &img.placements[i]
		pl.OffX = (pl.Col - minCol) * cellWidth
		pl.OffY = (pl.Row - minRow) * cellHeight
		pl.SubW = minInt(cellWidth, srcW-pl.OffX)
		pl.SubH = minInt(cellHeight, srcH-pl.OffY)
		s.grid.SetCellRef(pl.Col, pl.Row, pl.Alt, CellRef{
			Image: img.ID,
			Tile:  tileID,
			OffX:  pl.OffX,
			OffY:  pl.OffY,
			SubW:  pl.SubW,
			SubH:  pl.SubH,
		})
	}
}

// ExtractTile returns a fresh copy of the pixel sub-region the given
// cell references, with its pixel dimensions. Not designed for
// high-frequency calls; the renderer should paint from whole images.
func (s *ImageStore) ExtractTile(col, row int, alt bool) ([]byte, int, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref := s.grid.CellRef(col, row, alt)
	if ref.IsZero() || ref.Placeholder {
		return nil, 0, 0, false
	}
	img := s.byID[ref.Image]
	if img == nil {
		return nil, 0, 0, false
	}

	src, srcW := img.Pixels, img.Width
	if ref.Tile != 0 {
		t := img.tiles[ref.Tile]
		if t == nil {
			return nil, 0, 0, false
		}
		src, srcW = t.Pixels, t.Width
	}

	if ref.SubW <= 0 || ref.SubH <= 0 {
		return nil, 0, 0, false
	}
	out := make([]byte, ref.SubW*ref.SubH*4)
	for y := 0; y < ref.SubH; y++ {
		srcOff := ((ref.OffY+y)*srcW + ref.OffX) * 4
		copy(out[y*ref.SubW*4:(y+1)*ref.SubW*4], src[srcOff:srcOff+ref.SubW*4])
	}
	return out, ref.SubW, ref.SubH, true
}

// pixelsToRGBA wraps a raw RGBA buffer as an image without copying.
func pixelsToRGBA(pixels []byte, width, height int) *image.RGBA {
	return &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// imageToPixels flattens any image into a raw RGBA buffer.
func imageToPixels(src image.Image) []byte {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba.Pix
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Rect, src, bounds.Min, draw.Src)
	return dst.Pix
}
