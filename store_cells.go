package purfectimg

// --- Cell Reference Liveness ---

// OnCellsOverwritten must be called when the grid model erases or
// replaces content in a cell range (text written over an image, erase
// sequences, scroll-off past kept history). Reference counts for images
// covering those cells are decremented; an image whose count reaches
// zero is removed. This is reference-driven removal, independent of the
// FIFO capacity eviction.
func (s *ImageStore) OnCellsOverwritten(r CellRect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overwriteLocked(r)
}

// overwriteLocked drops placements inside the range and removes images
// left with no references. Also runs when a new image covers cells that
// an older image occupied.
func (s *ImageStore) overwriteLocked(r CellRect) {
	for _, img := range s.snapshotLocked() {
		kept := img.placements[:0]
		for _, pl := range img.placements {
			if !r.contains(pl.Col, pl.Row, pl.Alt) {
				kept = append(kept, pl)
			}
		}
		img.placements = kept
		s.removeDeadLocked(img)
	}
}

// OnScroll must be called when the main screen scrolls up by the given
// number of lines. Placements move with their content into scrollback
// (negative rows); placements scrolled past the kept history retire,
// which can remove the image once nothing else references it. The
// alternate screen never scrolls into history.
func (s *ImageStore) OnScroll(lines int) {
	if lines <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, img := range s.snapshotLocked() {
		kept := img.placements[:0]
		for _, pl := range img.placements {
			if pl.Alt {
				kept = append(kept, pl)
				continue
			}
			pl.Row -= lines
			if pl.Row < -s.history {
				continue
			}
			kept = append(kept, pl)
		}
		img.placements = kept
		s.removeDeadLocked(img)
	}
}

// WipeAlternate unconditionally removes every image whose cell
// references lie exclusively on the alternate screen buffer, regardless
// of reference count or FIFO order. Images spanning both screens only
// lose their alternate-screen references. Triggered by a buffer-mode
// switch.
func (s *ImageStore) WipeAlternate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, img := range s.snapshotLocked() {
		altOnly := len(img.placements) > 0
		for _, pl := range img.placements {
			if !pl.Alt {
				altOnly = false
				break
			}
		}
		if altOnly {
			s.removeImageLocked(img, false)
			continue
		}
		kept := img.placements[:0]
		for _, pl := range img.placements {
			if pl.Alt {
				s.grid.ClearCellRef(pl.Col, pl.Row, pl.Alt)
				continue
			}
			kept = append(kept, pl)
		}
		img.placements = kept
	}
}

// snapshotLocked copies the image list so removal during iteration is
// safe.
func (s *ImageStore) snapshotLocked() []*Image {
	snap := make([]*Image, len(s.images))
	copy(snap, s.images)
	return snap
}
