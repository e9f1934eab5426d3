package purfectimg

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// headerMarker is the literal that must appear before the first '=' of
// an inline-image announcement.
const headerMarker = "File"

// headerMaxField is the maximum character count of any single key or
// value. Exceeding it aborts the whole parse.
const headerMaxField = 1024

// DimensionMode describes how a requested width or height is expressed.
type DimensionMode int

const (
	DimAuto    DimensionMode = iota // "auto" - derive from pixel size
	DimCells                        // Plain integer - cell count
	DimPixels                       // "Npx"
	DimPercent                      // "N%"
)

// Dimension is a requested display extent: auto, a cell count, a pixel
// count or a percentage of the viewport.
type Dimension struct {
	Mode DimensionMode
	N    int
}

var dimensionRe = regexp.MustCompile(`^(auto|\d+(px|%)?)$`)

// parseDimension applies the size grammar auto | N | Npx | N%.
func parseDimension(s string) (Dimension, bool) {
	if !dimensionRe.MatchString(s) {
		return Dimension{}, false
	}
	if s == "auto" {
		return Dimension{Mode: DimAuto}, true
	}
	mode := DimCells
	switch {
	case s[len(s)-1] == '%':
		mode = DimPercent
		s = s[:len(s)-1]
	case len(s) > 2 && s[len(s)-2] == 'p' && s[len(s)-1] == 'x':
		mode = DimPixels
		s = s[:len(s)-2]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Dimension{}, false
	}
	return Dimension{Mode: mode, N: n}, true
}

// Header is the parsed inline-image announcement preamble. It is scoped
// to one ingestion attempt and discarded on abort or completion.
type Header struct {
	Name                string // Decoded from base64 UTF-8
	Size                int    // Declared payload byte size
	Width               Dimension
	Height              Dimension
	PreserveAspectRatio bool
	Inline              bool

	// Extra holds unrecognized keys verbatim, uninterpreted.
	Extra map[string]string
}

// ParseResult is the outcome of feeding one input fragment.
type ParseResult int

const (
	// ParseNeedMore means the fragment ended before the header did.
	ParseNeedMore ParseResult = iota
	// ParseDone means the header is complete; the returned index points
	// at the first payload byte.
	ParseDone
	// ParseFailed means the parse aborted; the parser stays aborted
	// until Reset.
	ParseFailed
)

type headerState int

const (
	hdrStart headerState = iota // Matching the literal marker
	hdrKey                      // Accumulating a key
	hdrValue                    // Accumulating a value
	hdrEnd                      // Terminal: header complete
	hdrAbort                    // Terminal, absorbing: parse failed
)

// HeaderParser is a character-driven state machine over the preamble
// grammar  File=key1=value1;key2=value2;...:  . Input may arrive in
// arbitrarily small fragments.
type HeaderParser struct {
	state  headerState
	keyBuf []byte
	valBuf []byte
	header Header
}

// NewHeaderParser returns a parser ready for one announcement.
func NewHeaderParser() *HeaderParser {
	p := &HeaderParser{}
	p.Reset()
	return p
}

// Reset prepares the parser for a new announcement, discarding any
// previous state.
func (p *HeaderParser) Reset() {
	p.state = hdrStart
	p.keyBuf = p.keyBuf[:0]
	p.valBuf = p.valBuf[:0]
	p.header = Header{
		// iTerm2 semantics: aspect ratio preserved unless disabled
		PreserveAspectRatio: true,
		Width:               Dimension{Mode: DimAuto},
		Height:              Dimension{Mode: DimAuto},
	}
}

// Header returns the parse result. Only meaningful once Parse has
// returned ParseDone.
func (p *HeaderParser) Header() Header {
	return p.header
}

// Parse scans one fragment. When it returns ParseDone, the int is the
// index within this fragment of the first payload byte. Calling Parse
// again after ParseDone or ParseFailed is a no-op failure.
func (p *HeaderParser) Parse(fragment []byte) (int, ParseResult) {
	if p.state == hdrEnd || p.state == hdrAbort {
		return 0, ParseFailed
	}
	for i, c := range fragment {
		switch p.state {
		case hdrStart:
			if c == '=' {
				if string(p.keyBuf) != headerMarker {
					return 0, p.abort()
				}
				p.keyBuf = p.keyBuf[:0]
				p.state = hdrKey
				continue
			}
			if len(p.keyBuf) >= len(headerMarker) {
				return 0, p.abort()
			}
			p.keyBuf = append(p.keyBuf, c)

		case hdrKey:
			switch c {
			case '=':
				p.state = hdrValue
			case ':':
				// Only legal as "no more fields"
				if len(p.keyBuf) != 0 {
					return 0, p.abort()
				}
				p.state = hdrEnd
				return i + 1, ParseDone
			case ';':
				return 0, p.abort()
			default:
				if len(p.keyBuf) >= headerMaxField {
					return 0, p.abort()
				}
				p.keyBuf = append(p.keyBuf, c)
			}

		case hdrValue:
			switch c {
			case ';':
				if !p.finishField() {
					return 0, p.abort()
				}
				p.state = hdrKey
			case ':':
				if !p.finishField() {
					return 0, p.abort()
				}
				p.state = hdrEnd
				return i + 1, ParseDone
			default:
				if len(p.valBuf) >= headerMaxField {
					return 0, p.abort()
				}
				p.valBuf = append(p.valBuf, c)
			}
		}
	}
	return 0, ParseNeedMore
}

func (p *HeaderParser) abort() ParseResult {
	p.state = hdrAbort
	p.header = Header{}
	return ParseFailed
}

// finishField runs the per-field decoder for the accumulated key/value
// pair and clears the accumulators. Returns false on decode failure.
func (p *HeaderParser) finishField() bool {
	key := string(p.keyBuf)
	value := string(p.valBuf)
	p.keyBuf = p.keyBuf[:0]
	p.valBuf = p.valBuf[:0]

	switch key {
	case "name":
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil || !utf8.Valid(decoded) {
			return false
		}
		p.header.Name = string(decoded)
	case "size":
		n, ok := parseAllDigits(value)
		if !ok {
			return false
		}
		p.header.Size = n
	case "width":
		d, ok := parseDimension(value)
		if !ok {
			return false
		}
		p.header.Width = d
	case "height":
		d, ok := parseDimension(value)
		if !ok {
			return false
		}
		p.header.Height = d
	case "preserveAspectRatio":
		b, ok := parseFlag(value)
		if !ok {
			return false
		}
		p.header.PreserveAspectRatio = b
	case "inline":
		b, ok := parseFlag(value)
		if !ok {
			return false
		}
		p.header.Inline = b
	default:
		if p.header.Extra == nil {
			p.header.Extra = make(map[string]string)
		}
		p.header.Extra[key] = value
	}
	return true
}

// parseAllDigits decodes an unsigned integer, requiring every character
// to be a digit.
func parseAllDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		if n < 0 {
			return 0, false
		}
	}
	return n, true
}

// parseFlag decodes a strict 0/1 flag.
func parseFlag(s string) (bool, bool) {
	switch s {
	case "0":
		return false, true
	case "1":
		return true, true
	}
	return false, false
}
