package purfectimg

import (
	"encoding/binary"
	"errors"
)

// Codec errors.
var (
	// ErrBadMagic reports a stream that does not start with the codec
	// magic tag.
	ErrBadMagic = errors.New("qoi: bad magic")

	// ErrBadHeader reports invalid dimensions, channel count or
	// colorspace in the container header.
	ErrBadHeader = errors.New("qoi: bad header")

	// ErrCorrupt reports a truncated or malformed opcode stream.
	ErrCorrupt = errors.New("qoi: corrupt stream")

	// ErrTooLarge reports declared dimensions exceeding the pixel
	// ceiling; decoding aborts before any large allocation.
	ErrTooLarge = errors.New("qoi: image too large")
)

const (
	qoiOpIndex byte = 0x00 // 00xxxxxx
	qoiOpDiff  byte = 0x40 // 01xxxxxx
	qoiOpLuma  byte = 0x80 // 10xxxxxx
	qoiOpRun   byte = 0xC0 // 11xxxxxx
	qoiOpRGB   byte = 0xFE // 11111110
	qoiOpRGBA  byte = 0xFF // 11111111

	qoiMask2 = 0xC0

	qoiHeaderSize = 14

	// qoiMaxPixels bounds decoded allocations; anything larger is
	// treated as stream corruption rather than attempted.
	qoiMaxPixels = 400_000_000
)

var qoiMagic = [4]byte{'q', 'o', 'i', 'f'}

// End marker: seven zero bytes then 0x01.
var qoiPadding = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

type qoiPixel struct {
	r, g, b, a byte
}

// qoiHash is the shared index-cache position for a pixel value. Encoder
// and decoder must agree on it exactly or round trips break.
func qoiHash(p qoiPixel) int {
	return (int(p.r)*3 + int(p.g)*5 + int(p.b)*7 + int(p.a)*11) % 64
}

// EncodeQOI losslessly compresses a width*height RGBA pixel buffer into
// a codec byte stream: 4-byte magic, big-endian width and height,
// channel count, colorspace tag, opcode stream, 8-byte end marker.
func EncodeQOI(pixels []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrBadHeader
	}
	if height > qoiMaxPixels/width {
		return nil, ErrTooLarge
	}
	if len(pixels) != width*height*4 {
		return nil, ErrBadHeader
	}

	maxSize := width*height*5 + qoiHeaderSize + len(qoiPadding)
	out := make([]byte, 0, maxSize)
	out = append(out, qoiMagic[:]...)
	out = binary.BigEndian.AppendUint32(out, uint32(width))
	out = binary.BigEndian.AppendUint32(out, uint32(height))
	out = append(out, 4, 0)

	// The 64-entry index cache is per-call state, rebuilt every encode
	var index [64]qoiPixel
	prev := qoiPixel{a: 255}
	run := 0

	n := width * height
	for i := 0; i < n; i++ {
		px := qoiPixel{
			r: pixels[i*4],
			g: pixels[i*4+1],
			b: pixels[i*4+2],
			a: pixels[i*4+3],
		}

		if px == prev {
			run++
			if run == 62 || i == n-1 {
				out = append(out, qoiOpRun|byte(run-1))
				run = 0
			}
			continue
		}
		if run > 0 {
			out = append(out, qoiOpRun|byte(run-1))
			run = 0
		}

		slot := qoiHash(px)
		if index[slot] == px {
			out = append(out, qoiOpIndex|byte(slot))
			prev = px
			continue
		}
		index[slot] = px

		if px.a == prev.a {
			vr := int8(px.r - prev.r)
			vg := int8(px.g - prev.g)
			vb := int8(px.b - prev.b)
			vgr := vr - vg
			vgb := vb - vg

			switch {
			case vr > -3 && vr < 2 && vg > -3 && vg < 2 && vb > -3 && vb < 2:
				out = append(out, qoiOpDiff|byte(vr+2)<<4|byte(vg+2)<<2|byte(vb+2))
			case vgr > -9 && vgr < 8 && vg > -33 && vg < 32 && vgb > -9 && vgb < 8:
				out = append(out, qoiOpLuma|byte(vg+32), byte(vgr+8)<<4|byte(vgb+8))
			default:
				out = append(out, qoiOpRGB, px.r, px.g, px.b)
			}
		} else {
			out = append(out, qoiOpRGBA, px.r, px.g, px.b, px.a)
		}
		prev = px
	}

	out = append(out, qoiPadding[:]...)
	return out, nil
}

// DecodeQOI decompresses a codec byte stream into a freshly allocated
// RGBA pixel buffer, returning the buffer and its pixel dimensions.
func DecodeQOI(data []byte) ([]byte, int, int, error) {
	width, height, err := qoiReadHeader(data)
	if err != nil {
		return nil, 0, 0, err
	}
	dst := make([]byte, width*height*4)
	if err := decodeQOIOps(dst, data, width, height); err != nil {
		return nil, 0, 0, err
	}
	return dst, width, height, nil
}

// DecodeQOIInto decodes into a caller-supplied buffer, which must hold
// at least width*height*4 bytes. dst may share a backing array with
// data: decoding reads strictly forward and writes strictly forward, so
// placing the encoded bytes at the tail of the buffer with slack of at
// least QOIDecodeMargin bytes keeps the write cursor behind the read
// cursor.
func DecodeQOIInto(dst, data []byte) (int, int, error) {
	width, height, err := qoiReadHeader(data)
	if err != nil {
		return 0, 0, err
	}
	if len(dst) < width*height*4 {
		return 0, 0, ErrBadHeader
	}
	if err := decodeQOIOps(dst, data, width, height); err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

// QOIDecodeMargin is the worst-case number of output bytes a single
// opcode can produce (a maximum-length run), and therefore the minimum
// overlap slack for DecodeQOIInto.
const QOIDecodeMargin = 62 * 4

// qoiReadHeader validates the container header and returns dimensions.
func qoiReadHeader(data []byte) (int, int, error) {
	if len(data) < qoiHeaderSize+len(qoiPadding) {
		return 0, 0, ErrCorrupt
	}
	if [4]byte(data[:4]) != qoiMagic {
		return 0, 0, ErrBadMagic
	}
	width := int(binary.BigEndian.Uint32(data[4:8]))
	height := int(binary.BigEndian.Uint32(data[8:12]))
	channels := data[12]
	colorspace := data[13]
	if width <= 0 || height <= 0 || channels < 3 || channels > 4 || colorspace > 1 {
		return 0, 0, ErrBadHeader
	}
	if height > qoiMaxPixels/width {
		return 0, 0, ErrTooLarge
	}
	return width, height, nil
}

// decodeQOIOps runs the opcode stream, filling dst with exactly
// width*height RGBA pixels and verifying the end marker.
func decodeQOIOps(dst, data []byte, width, height int) error {
	var index [64]qoiPixel
	px := qoiPixel{a: 255}

	n := width * height
	p := qoiHeaderSize
	end := len(data) - len(qoiPadding)

	for i := 0; i < n; i++ {
		run := 0
		if p < end {
			op := data[p]
			p++
			switch {
			case op == qoiOpRGB:
				if p+3 > end {
					return ErrCorrupt
				}
				px.r, px.g, px.b = data[p], data[p+1], data[p+2]
				p += 3
				index[qoiHash(px)] = px
			case op == qoiOpRGBA:
				if p+4 > end {
					return ErrCorrupt
				}
				px.r, px.g, px.b, px.a = data[p], data[p+1], data[p+2], data[p+3]
				p += 4
				index[qoiHash(px)] = px
			case op&qoiMask2 == qoiOpIndex:
				px = index[op&0x3F]
			case op&qoiMask2 == qoiOpDiff:
				px.r += byte(op>>4&0x03) - 2
				px.g += byte(op>>2&0x03) - 2
				px.b += byte(op&0x03) - 2
				index[qoiHash(px)] = px
			case op&qoiMask2 == qoiOpLuma:
				if p >= end {
					return ErrCorrupt
				}
				b2 := data[p]
				p++
				vg := byte(op&0x3F) - 32
				px.r += vg - 8 + (b2 >> 4 & 0x0F)
				px.g += vg
				px.b += vg - 8 + (b2 & 0x0F)
				index[qoiHash(px)] = px
			default: // qoiOpRun
				run = int(op & 0x3F)
			}
		} else {
			return ErrCorrupt
		}

		dst[i*4] = px.r
		dst[i*4+1] = px.g
		dst[i*4+2] = px.b
		dst[i*4+3] = px.a
		for ; run > 0 && i < n-1; run-- {
			i++
			dst[i*4] = px.r
			dst[i*4+1] = px.g
			dst[i*4+2] = px.b
			dst[i*4+3] = px.a
		}
		if run > 0 {
			// Run length overshot the pixel count
			return ErrCorrupt
		}
	}

	if p != end || [8]byte(data[end:]) != qoiPadding {
		return ErrCorrupt
	}
	return nil
}
