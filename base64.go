package purfectimg

import (
	"encoding/binary"
	"errors"
)

// Decode errors. A failed decoder stays failed until Init is called
// again; no partial output is ever observable after a failure.
var (
	// ErrBadSymbol reports a byte that is not one of the 64 base64
	// symbols or a correctly placed pad character.
	ErrBadSymbol = errors.New("base64: invalid symbol")

	// ErrTruncated reports a stream that ended before a complete final
	// group could be reconstructed.
	ErrTruncated = errors.New("base64: truncated final group")

	// ErrSizeMismatch reports a decoded length that does not match the
	// byte size declared at Init.
	ErrSizeMismatch = errors.New("base64: decoded size mismatch")
)

// base64KeepSize is how much buffer Release retains for the next decode,
// bounding idle memory without reallocating on every use.
const base64KeepSize = 64 * 1024

const (
	b64Pad = 0xFE
	b64Bad = 0xFF
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// base64Reverse maps a symbol byte to its 6-bit value, b64Pad for '=',
// b64Bad for everything else. Statically initialized, read-only.
var base64Reverse = func() (t [256]byte) {
	for i := range t {
		t[i] = b64Bad
	}
	for i := 0; i < len(base64Alphabet); i++ {
		t[base64Alphabet[i]] = byte(i)
	}
	t['='] = b64Pad
	return
}()

// Base64Decoder decodes a bounded base64 stream in place: encoded
// symbols are appended to an internal buffer and decoded bytes are
// written behind the read cursor within the same buffer, so one
// allocation serves both directions.
//
// A decoder instance is not reentrant. Distinct instances may run in
// parallel with no coordination.
type Base64Decoder struct {
	buf      []byte
	written  int  // Symbols appended so far
	consumed int  // Symbols decoded so far; advances on 4-symbol boundaries
	produced int  // Decoded bytes written so far
	expected int  // Declared decoded byte size
	final    bool // A padded final group has been decoded
	ended    bool
	err      error
}

// Init resets the decoder for a payload expected to decode to
// expectedByteSize bytes. The internal buffer is reused when large
// enough and grown otherwise.
func (d *Base64Decoder) Init(expectedByteSize int) {
	need := (expectedByteSize+2)/3*4 + 4
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	} else {
		d.buf = d.buf[:cap(d.buf)]
	}
	d.written = 0
	d.consumed = 0
	d.produced = 0
	d.expected = expectedByteSize
	d.final = false
	d.ended = false
	d.err = nil
}

// Put appends encoded symbols and decodes as many complete 4-symbol
// groups as are available. It fails the instant any byte is invalid;
// after a failure every further call fails until Init is called again.
func (d *Base64Decoder) Put(chunk []byte) error {
	if d.err != nil {
		return d.err
	}
	if len(chunk) == 0 {
		return nil
	}
	if d.ended || d.final {
		// Symbols after the padded final group
		return d.fail(ErrBadSymbol)
	}
	if d.written+len(chunk) > len(d.buf) {
		grown := make([]byte, (d.written+len(chunk))*2)
		copy(grown, d.buf[:d.written])
		d.buf = grown
	}
	for _, c := range chunk {
		if base64Reverse[c] == b64Bad {
			return d.fail(ErrBadSymbol)
		}
		d.buf[d.written] = c
		d.written++
	}
	return d.decodeGroups()
}

// decodeGroups consumes complete 4-symbol groups. Each group is read as
// one little-endian 32-bit word for throughput; the decoded byte output
// is endian-independent.
func (d *Base64Decoder) decodeGroups() error {
	for d.written-d.consumed >= 4 {
		word := binary.LittleEndian.Uint32(d.buf[d.consumed:])
		s0 := base64Reverse[byte(word)]
		s1 := base64Reverse[byte(word>>8)]
		s2 := base64Reverse[byte(word>>16)]
		s3 := base64Reverse[byte(word>>24)]

		if s0 == b64Pad || s1 == b64Pad {
			return d.fail(ErrBadSymbol)
		}
		if s2 == b64Pad {
			// "xx==" - final group, one decoded byte
			if s3 != b64Pad {
				return d.fail(ErrBadSymbol)
			}
			d.buf[d.produced] = s0<<2 | s1>>4
			d.produced++
			d.consumed += 4
			d.final = true
			if d.written != d.consumed {
				return d.fail(ErrBadSymbol)
			}
			return nil
		}
		if s3 == b64Pad {
			// "xxx=" - final group, two decoded bytes
			d.buf[d.produced] = s0<<2 | s1>>4
			d.buf[d.produced+1] = s1<<4 | s2>>2
			d.produced += 2
			d.consumed += 4
			d.final = true
			if d.written != d.consumed {
				return d.fail(ErrBadSymbol)
			}
			return nil
		}

		v := uint32(s0)<<18 | uint32(s1)<<12 | uint32(s2)<<6 | uint32(s3)
		d.buf[d.produced] = byte(v >> 16)
		d.buf[d.produced+1] = byte(v >> 8)
		d.buf[d.produced+2] = byte(v)
		d.produced += 3
		d.consumed += 4
	}
	return nil
}

// End finalizes any trailing 1-3 symbol remainder (unpadded input) and
// verifies the decoded length against the declared byte size.
func (d *Base64Decoder) End() error {
	if d.err != nil {
		return d.err
	}
	d.ended = true
	rem := d.written - d.consumed
	switch rem {
	case 0:
	case 1:
		// A single trailing symbol can never form a byte
		return d.fail(ErrTruncated)
	case 2:
		s0 := base64Reverse[d.buf[d.consumed]]
		s1 := base64Reverse[d.buf[d.consumed+1]]
		if s0 == b64Pad || s1 == b64Pad {
			return d.fail(ErrTruncated)
		}
		d.buf[d.produced] = s0<<2 | s1>>4
		d.produced++
		d.consumed += 2
	case 3:
		s0 := base64Reverse[d.buf[d.consumed]]
		s1 := base64Reverse[d.buf[d.consumed+1]]
		s2 := base64Reverse[d.buf[d.consumed+2]]
		if s0 == b64Pad || s1 == b64Pad || s2 == b64Pad {
			return d.fail(ErrTruncated)
		}
		d.buf[d.produced] = s0<<2 | s1>>4
		d.buf[d.produced+1] = s1<<4 | s2>>2
		d.produced += 2
		d.consumed += 3
	}
	if d.produced != d.expected {
		return d.fail(ErrSizeMismatch)
	}
	return nil
}

// Data returns the decoded byte span. It is only valid after a
// successful End and until the next Init or Release; after a failure it
// returns nil.
func (d *Base64Decoder) Data() []byte {
	if d.err != nil {
		return nil
	}
	return d.buf[:d.produced]
}

// Len returns the number of decoded bytes produced so far.
func (d *Base64Decoder) Len() int {
	if d.err != nil {
		return 0
	}
	return d.produced
}

// Release truncates the internal buffer back toward the keep size once
// decoding finishes. Safe to call at any point, including mid-decode to
// abandon an attempt.
func (d *Base64Decoder) Release() {
	if cap(d.buf) > base64KeepSize {
		d.buf = make([]byte, base64KeepSize)
	}
	d.written = 0
	d.consumed = 0
	d.produced = 0
	d.final = false
}

func (d *Base64Decoder) fail(err error) error {
	d.err = err
	d.produced = 0
	return err
}

// AppendBase64 encodes src with standard padding and appends the
// symbols to dst, returning the extended buffer.
func AppendBase64(dst, src []byte) []byte {
	for len(src) >= 3 {
		v := uint32(src[0])<<16 | uint32(src[1])<<8 | uint32(src[2])
		dst = append(dst,
			base64Alphabet[v>>18&0x3F],
			base64Alphabet[v>>12&0x3F],
			base64Alphabet[v>>6&0x3F],
			base64Alphabet[v&0x3F])
		src = src[3:]
	}
	switch len(src) {
	case 1:
		v := uint32(src[0]) << 16
		dst = append(dst,
			base64Alphabet[v>>18&0x3F],
			base64Alphabet[v>>12&0x3F],
			'=', '=')
	case 2:
		v := uint32(src[0])<<16 | uint32(src[1])<<8
		dst = append(dst,
			base64Alphabet[v>>18&0x3F],
			base64Alphabet[v>>12&0x3F],
			base64Alphabet[v>>6&0x3F],
			'=')
	}
	return dst
}
