package purfectimg

import (
	"errors"
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// Ingestion error classes. A protocol error or decode error aborts the
// current attempt only; the engine stays usable for the next one.
var (
	// ErrProtocol covers malformed headers, bad markers, field
	// overflows and declared sizes or dimensions beyond the configured
	// ceilings (aborted before any large allocation).
	ErrProtocol = errors.New("ingest: protocol error")

	// ErrDecode covers illegal base64 input, codec stream corruption
	// and declared-size mismatches.
	ErrDecode = errors.New("ingest: decode error")

	// ErrIngestState reports calls outside the Begin/Feed/Finish order.
	ErrIngestState = errors.New("ingest: invalid state")
)

// Default ceilings. Both are caller-configurable; exceeding either is a
// protocol error raised before decoding allocates anything.
const (
	DefaultPayloadCeiling = 64 * 1024 * 1024
	DefaultPixelCeiling   = 64 * 1024 * 1024 // Pixels, not bytes
)

// IngestStatus is the caller-visible outcome of one Feed call.
type IngestStatus int

const (
	IngestNeedMore IngestStatus = iota
	IngestReady                 // Header parsed, payload streaming
	IngestFailed
)

type ingestPhase int

const (
	phaseIdle ingestPhase = iota
	phaseHeader
	phasePayload
	phaseDone
	phaseFailed
)

// Ingester wires one image transmission end to end: header parsing,
// streaming base64 decode, pixel codec decode and store insertion.
// Payload bytes may arrive in bounded chunks of any size; the host's
// escape parser decides where the payload ends and calls Finish. An
// Ingester is reused across attempts via Begin; it is not reentrant.
type Ingester struct {
	store  *ImageStore
	header *HeaderParser
	b64    Base64Decoder

	phase  ingestPhase
	anchor CellAnchor
	hdr    Header

	payloadCeiling int
	pixelCeiling   int
}

// NewIngester creates an ingester inserting into the given store.
func NewIngester(store *ImageStore) *Ingester {
	return &Ingester{
		store:          store,
		header:         NewHeaderParser(),
		payloadCeiling: DefaultPayloadCeiling,
		pixelCeiling:   DefaultPixelCeiling,
	}
}

// SetPayloadCeiling bounds the declared payload byte size.
func (in *Ingester) SetPayloadCeiling(bytes int) {
	in.payloadCeiling = bytes
}

// SetPixelCeiling bounds the decoded pixel count (width*height).
func (in *Ingester) SetPixelCeiling(pixels int) {
	in.pixelCeiling = pixels
}

// Begin starts a new ingestion attempt anchored at the given cell (the
// grid's cursor position when the announcement arrived).
func (in *Ingester) Begin(anchor CellAnchor) {
	in.header.Reset()
	in.anchor = anchor
	in.hdr = Header{}
	in.phase = phaseHeader
}

// Feed consumes the next chunk of stream bytes. During the header phase
// it advances the header state machine; once the header completes, the
// rest of the chunk and all further chunks stream into the base64
// decoder. On failure the attempt is aborted and its buffers released.
func (in *Ingester) Feed(chunk []byte) (IngestStatus, error) {
	switch in.phase {
	case phaseHeader:
		idx, res := in.header.Parse(chunk)
		switch res {
		case ParseNeedMore:
			return IngestNeedMore, nil
		case ParseFailed:
			return IngestFailed, in.fail(fmt.Errorf("%w: bad header", ErrProtocol))
		}

		in.hdr = in.header.Header()
		if in.hdr.Size <= 0 {
			return IngestFailed, in.fail(fmt.Errorf("%w: missing payload size", ErrProtocol))
		}
		if in.hdr.Size > in.payloadCeiling {
			return IngestFailed, in.fail(fmt.Errorf("%w: declared payload %d exceeds ceiling %d",
				ErrProtocol, in.hdr.Size, in.payloadCeiling))
		}
		in.b64.Init(in.hdr.Size)
		in.phase = phasePayload
		if err := in.b64.Put(chunk[idx:]); err != nil {
			return IngestFailed, in.fail(fmt.Errorf("%w: %v", ErrDecode, err))
		}
		return IngestReady, nil

	case phasePayload:
		if err := in.b64.Put(chunk); err != nil {
			return IngestFailed, in.fail(fmt.Errorf("%w: %v", ErrDecode, err))
		}
		return IngestReady, nil

	default:
		return IngestFailed, ErrIngestState
	}
}

// Finish finalizes the payload, decodes the pixel stream and inserts
// the image at the anchor. On success it returns the new image ID (the
// image may already have been capacity-evicted; that is not an error).
func (in *Ingester) Finish() (ImageID, error) {
	if in.phase != phasePayload {
		return 0, ErrIngestState
	}
	if err := in.b64.End(); err != nil {
		return 0, in.fail(fmt.Errorf("%w: %v", ErrDecode, err))
	}

	data := in.b64.Data()
	width, height, err := qoiReadHeader(data)
	if err != nil {
		return 0, in.fail(fmt.Errorf("%w: %v", ErrDecode, err))
	}
	if width*height > in.pixelCeiling {
		return 0, in.fail(fmt.Errorf("%w: %dx%d exceeds pixel ceiling",
			ErrProtocol, width, height))
	}
	pixels, width, height, err := DecodeQOI(data)
	if err != nil {
		return 0, in.fail(fmt.Errorf("%w: %v", ErrDecode, err))
	}
	in.b64.Release()

	pixels, width, height = fitToRequest(pixels, width, height,
		in.hdr, in.store.grid.Geometry())

	id := in.store.AddImage(pixels, width, height, in.anchor)
	in.phase = phaseDone
	return id, nil
}

// Abort abandons the current attempt at any point, releasing decoder
// buffers. The ingester is ready for the next Begin.
func (in *Ingester) Abort() {
	in.b64.Release()
	in.header.Reset()
	in.phase = phaseIdle
}

func (in *Ingester) fail(err error) error {
	in.b64.Release()
	in.phase = phaseFailed
	return err
}

// fitToRequest scales decoded pixels to the extent the header asked
// for, resolved against the current cell geometry. Auto dimensions keep
// the native pixel size. With preserveAspectRatio the image is fitted
// inside the requested box; otherwise it is stretched to fill it.
func fitToRequest(pixels []byte, width, height int, hdr Header, geom CellGeometry) ([]byte, int, int) {
	targetW := resolveExtent(hdr.Width, width, geom.CellWidth, geom.ViewportWidth())
	targetH := resolveExtent(hdr.Height, height, geom.CellHeight, geom.ViewportHeight())
	if targetW <= 0 || targetH <= 0 || (targetW == width && targetH == height) {
		return pixels, width, height
	}

	src := pixelsToRGBA(pixels, width, height)
	var scaled image.Image
	if hdr.PreserveAspectRatio {
		scaled = resize.Thumbnail(uint(targetW), uint(targetH), src, resize.Lanczos3)
	} else {
		scaled = resize.Resize(uint(targetW), uint(targetH), src, resize.Lanczos3)
	}
	b := scaled.Bounds()
	return imageToPixels(scaled), b.Dx(), b.Dy()
}

// resolveExtent turns one requested dimension into pixels.
func resolveExtent(d Dimension, nativePx, cellPx, viewportPx int) int {
	switch d.Mode {
	case DimCells:
		return d.N * cellPx
	case DimPixels:
		return d.N
	case DimPercent:
		return viewportPx * d.N / 100
	default: // DimAuto
		return nativePx
	}
}
