package purfectimg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_OverwriteRemovesWhenLastRefGoes(t *testing.T) {
	s, grid := newTestStore(DefaultCapacity, 0)

	// 30x20 pixels covers 3 cells in one row
	id := s.AddImage(make([]byte, 30*20*4), 30, 20, CellAnchor{Col: 0, Row: 0})
	img := s.GetImage(id)
	require.Equal(t, 3, img.Refs())

	// Text written over two of the three cells: image stays alive
	s.OnCellsOverwritten(CellRect{Col: 0, Row: 0, Cols: 2, Rows: 1})
	assert.Equal(t, 1, img.Refs())
	assert.NotNil(t, s.GetImage(id))
	assert.Equal(t, id, grid.CellRef(2, 0, false).Image)

	// The last covered cell goes: image removed, usage released
	s.OnCellsOverwritten(CellRect{Col: 2, Row: 0, Cols: 1, Rows: 1})
	assert.Nil(t, s.GetImage(id))
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, int64(0), s.Usage())
}

func TestStore_OverwriteIgnoresOtherScreen(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)

	id := s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 0, Row: 0})

	// Same rectangle but on the alternate screen
	s.OnCellsOverwritten(CellRect{Col: 0, Row: 0, Cols: 80, Rows: 24, Alt: true})
	assert.NotNil(t, s.GetImage(id))
}

func TestStore_OverwriteMissesAdjacentCells(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)

	id := s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 5, Row: 5})
	s.OnCellsOverwritten(CellRect{Col: 0, Row: 0, Cols: 5, Rows: 24})
	s.OnCellsOverwritten(CellRect{Col: 6, Row: 0, Cols: 74, Rows: 24})
	s.OnCellsOverwritten(CellRect{Col: 5, Row: 6, Cols: 1, Rows: 18})
	assert.NotNil(t, s.GetImage(id))
}

func TestStore_ScrollMovesPlacementsIntoHistory(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 5)

	id := s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 0, Row: 0})
	img := s.GetImage(id)
	require.NotNil(t, img)

	// Three lines up: the placement sits at row -3, within history
	s.OnScroll(3)
	require.Equal(t, 1, img.Refs())
	assert.Equal(t, -3, img.placements[0].Row)

	// Three more: row -6 is past the 5 kept rows, the image retires
	s.OnScroll(3)
	assert.Nil(t, s.GetImage(id))
	assert.Equal(t, int64(0), s.Usage())
}

func TestStore_ScrollLeavesAlternateScreenAlone(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)

	id := s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 0, Row: 0, Alt: true})
	s.OnScroll(100)
	img := s.GetImage(id)
	require.NotNil(t, img)
	assert.Equal(t, 0, img.placements[0].Row)
}

func TestStore_ScrollIgnoresNonPositive(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)

	id := s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 0, Row: 0})
	s.OnScroll(0)
	s.OnScroll(-4)
	img := s.GetImage(id)
	require.NotNil(t, img)
	assert.Equal(t, 0, img.placements[0].Row)
}

func TestStore_WipeAlternate(t *testing.T) {
	s, grid := newTestStore(DefaultCapacity, 0)

	var evicted []ImageID
	s.SetEvictCallback(func(id ImageID) {
		evicted = append(evicted, id)
	})

	mainID := s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 0, Row: 0})
	altID := s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 0, Row: 0, Alt: true})

	s.WipeAlternate()

	// Alternate-only image removed unconditionally, main one untouched
	assert.Nil(t, s.GetImage(altID))
	assert.NotNil(t, s.GetImage(mainID))
	assert.Equal(t, []ImageID{altID}, evicted)
	assert.True(t, grid.CellRef(0, 0, true).IsZero())
	assert.Equal(t, mainID, grid.CellRef(0, 0, false).Image)
	assert.Equal(t, int64(10*20*4), s.Usage())
}

func TestStore_WipeAlternateIsIdempotent(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)

	s.AddImage(make([]byte, 10*20*4), 10, 20, CellAnchor{Col: 0, Row: 0, Alt: true})
	s.WipeAlternate()
	s.WipeAlternate()
	assert.Equal(t, 0, s.Count())
}
