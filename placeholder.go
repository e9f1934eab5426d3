package purfectimg

// Placeholder checker colors, opaque grays.
const (
	placeholderDark   = 0x44
	placeholderLight  = 0x66
	placeholderSquare = 8 // Checker square size in pixels
)

// PlaceholderPattern generates the fill pattern a renderer paints into
// cells whose image was evicted while still logically present in
// scrollback: an opaque two-gray checkerboard.
func PlaceholderPattern(width, height int) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}
	out := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			shade := byte(placeholderDark)
			if (x/placeholderSquare+y/placeholderSquare)%2 == 0 {
				shade = placeholderLight
			}
			i := (y*width + x) * 4
			out[i] = shade
			out[i+1] = shade
			out[i+2] = shade
			out[i+3] = 0xFF
		}
	}
	return out
}
