package purfectimg

// --- Eviction ---
//
// Two removal predicates share one collection: capacity eviction walks
// strictly oldest-first and ignores liveness; liveness removal fires
// when an image's last cell reference goes away and ignores insertion
// order. Both funnel into removeImageLocked so accounting and callback
// behavior stay identical.

// evictForCapacityLocked removes oldest images until usage fits the
// capacity. Capacity eviction may orphan live cell references; those
// cells get a placeholder marker when placeholders are enabled.
func (s *ImageStore) evictForCapacityLocked() {
	for s.usage > s.capacity && len(s.images) > 0 {
		s.removeImageLocked(s.images[0], true)
	}
}

// removeDeadLocked removes an image whose reference count reached zero.
func (s *ImageStore) removeDeadLocked(img *Image) {
	if len(img.placements) == 0 {
		s.removeImageLocked(img, false)
	}
}

// removeImageLocked detaches an image and its tiles from the store.
// When orphaning (capacity eviction of a still-referenced image), cells
// either get a placeholder marker or are cleared, per configuration.
func (s *ImageStore) removeImageLocked(img *Image, orphaning bool) {
	for _, pl := range img.placements {
		if orphaning && s.placeholders {
			s.grid.SetCellRef(pl.Col, pl.Row, pl.Alt, CellRef{Placeholder: true})
		} else {
			s.grid.ClearCellRef(pl.Col, pl.Row, pl.Alt)
		}
	}
	img.placements = nil

	s.usage -= img.Size()
	for _, t := range img.tiles {
		s.usage -= t.Size()
	}
	img.tiles = nil

	for i, cand := range s.images {
		if cand == img {
			s.images = append(s.images[:i], s.images[i+1:]...)
			break
		}
	}
	delete(s.byID, img.ID)
	s.evictions++

	if s.onEvict != nil {
		s.onEvict(img.ID)
	}
}
