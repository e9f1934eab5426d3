// Package purfectimg provides the inline-image engine for terminal
// emulators: receiving images over the escape-sequence stream, decoding
// them, and tracking which grid cells display which image regions.
//
// The package is frontend-neutral. It never draws anything; a renderer
// asks the store which image (or placeholder) a cell shows and paints
// it with whatever toolkit it uses.
//
// # Components
//
//   - HeaderParser: incremental parser for the File=key=value;...:
//     announcement preamble, tolerant of arbitrarily fragmented input
//   - Base64Decoder: streaming base64 decoder that decodes in place
//     within a single buffer sized from the declared payload size
//   - EncodeQOI / DecodeQOI: lossless RGBA pixel codec for the payload
//   - ImageStore: image ownership, cell references, FIFO capacity
//     eviction and liveness-driven removal
//   - Ingester: wires the above into one Begin/Feed/Finish pipeline
//
// # Basic Usage
//
//	grid := purfectimg.NewCellGrid(cols, rows, cellW, cellH)
//	store := purfectimg.NewImageStore(grid, purfectimg.DefaultCapacity, scrollbackRows)
//	ing := purfectimg.NewIngester(store)
//
//	// When the host's escape parser sees an inline-image announcement:
//	ing.Begin(purfectimg.CellAnchor{Col: cursorCol, Row: cursorRow})
//	for each payload chunk {
//	    if _, err := ing.Feed(chunk); err != nil {
//	        // Malformed transmission; the terminal keeps running
//	    }
//	}
//	id, err := ing.Finish()
//
// The host must report cell lifecycle events so image liveness stays
// accurate: OnCellsOverwritten when text or erases replace cells,
// OnScroll when the main screen scrolls, WipeAlternate on a buffer-mode
// switch, and ViewportResize after a font size change.
package purfectimg
