package purfectimg

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTransmission encodes pixels and wraps them in a complete
// announcement: header fields, then the base64 payload.
func buildTransmission(t *testing.T, pixels []byte, width, height int, fields string) []byte {
	t.Helper()
	encoded, err := EncodeQOI(pixels, width, height)
	require.NoError(t, err)

	out := []byte(fmt.Sprintf("File=size=%d", len(encoded)))
	if fields != "" {
		out = append(out, ';')
		out = append(out, fields...)
	}
	out = append(out, ':')
	return AppendBase64(out, encoded)
}

// feedChunks drives one whole transmission through the ingester in
// fixed-size chunks and finishes it.
func feedChunks(t *testing.T, in *Ingester, stream []byte, chunk int) (ImageID, error) {
	t.Helper()
	for len(stream) > 0 {
		n := chunk
		if n > len(stream) {
			n = len(stream)
		}
		if _, err := in.Feed(stream[:n]); err != nil {
			return 0, err
		}
		stream = stream[n:]
	}
	return in.Finish()
}

func TestIngester_EndToEnd(t *testing.T) {
	s, grid := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	pixels := gradientPixels(20, 40)
	stream := buildTransmission(t, pixels, 20, 40, "inline=1")

	in.Begin(CellAnchor{Col: 3, Row: 2})
	id, err := feedChunks(t, in, stream, 7)
	require.NoError(t, err)
	require.NotZero(t, id)

	img := s.GetImage(id)
	require.NotNil(t, img)
	assert.Equal(t, 20, img.Width)
	assert.Equal(t, 40, img.Height)
	assert.True(t, bytes.Equal(img.Pixels, pixels))

	// 20x40 pixels from anchor (3,2) covers cells (3..4, 2..3)
	assert.Equal(t, id, grid.CellRef(3, 2, false).Image)
	assert.Equal(t, id, grid.CellRef(4, 3, false).Image)
	assert.True(t, grid.CellRef(5, 2, false).IsZero())
}

func TestIngester_SingleFeed(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	stream := buildTransmission(t, solidPixels(8, 8, 1, 1, 1, 255), 8, 8, "")
	in.Begin(CellAnchor{})
	status, err := in.Feed(stream)
	require.NoError(t, err)
	assert.Equal(t, IngestReady, status)

	id, err := in.Finish()
	require.NoError(t, err)
	assert.NotNil(t, s.GetImage(id))
}

func TestIngester_ScalesToRequestedPixels(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	stream := buildTransmission(t, solidPixels(20, 20, 30, 30, 30, 255), 20, 20,
		"width=10px;height=10px")
	in.Begin(CellAnchor{})
	id, err := feedChunks(t, in, stream, 16)
	require.NoError(t, err)

	img := s.GetImage(id)
	require.NotNil(t, img)
	assert.Equal(t, 10, img.Width)
	assert.Equal(t, 10, img.Height)
}

func TestIngester_ScalesToRequestedCells(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	// width=2 on 10-pixel cells is 20 pixels; height stays auto (the
	// native 40), and aspect fitting shrinks the square source to 20x20.
	stream := buildTransmission(t, solidPixels(40, 40, 5, 5, 5, 255), 40, 40, "width=2")
	in.Begin(CellAnchor{})
	id, err := feedChunks(t, in, stream, 64)
	require.NoError(t, err)

	img := s.GetImage(id)
	require.NotNil(t, img)
	assert.Equal(t, 20, img.Width)
	assert.Equal(t, 20, img.Height)
}

func TestIngester_StretchWithoutAspectRatio(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	stream := buildTransmission(t, solidPixels(40, 40, 5, 5, 5, 255), 40, 40,
		"width=30px;height=10px;preserveAspectRatio=0")
	in.Begin(CellAnchor{})
	id, err := feedChunks(t, in, stream, 64)
	require.NoError(t, err)

	img := s.GetImage(id)
	require.NotNil(t, img)
	assert.Equal(t, 30, img.Width)
	assert.Equal(t, 10, img.Height)
}

func TestIngester_HeaderSplitAcrossChunks(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	stream := buildTransmission(t, solidPixels(4, 4, 2, 2, 2, 255), 4, 4, "inline=1")
	in.Begin(CellAnchor{})

	status, err := in.Feed(stream[:3])
	require.NoError(t, err)
	assert.Equal(t, IngestNeedMore, status)

	status, err = in.Feed(stream[3:])
	require.NoError(t, err)
	assert.Equal(t, IngestReady, status)

	_, err = in.Finish()
	require.NoError(t, err)
}

func TestIngester_BadHeader(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	in.Begin(CellAnchor{})
	_, err := in.Feed([]byte("Pile=size=1:xxxx"))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestIngester_MissingSize(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	in.Begin(CellAnchor{})
	_, err := in.Feed([]byte("File=inline=1:QUJD"))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestIngester_PayloadCeiling(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)
	in.SetPayloadCeiling(100)

	in.Begin(CellAnchor{})
	_, err := in.Feed([]byte("File=size=101:"))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestIngester_PixelCeiling(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)
	in.SetPixelCeiling(100)

	// 20x20 declares 400 pixels, over the 100-pixel ceiling; the
	// failure happens before pixel decode.
	stream := buildTransmission(t, solidPixels(20, 20, 1, 1, 1, 255), 20, 20, "")
	in.Begin(CellAnchor{})
	_, err := feedChunks(t, in, stream, 32)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, 0, s.Count())
}

func TestIngester_BadBase64(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	in.Begin(CellAnchor{})
	_, err := in.Feed([]byte("File=size=10:QUJ*"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestIngester_DeclaredSizeMismatch(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	encoded, err := EncodeQOI(solidPixels(4, 4, 1, 1, 1, 255), 4, 4)
	require.NoError(t, err)
	stream := AppendBase64([]byte(fmt.Sprintf("File=size=%d:", len(encoded)+1)), encoded)

	in.Begin(CellAnchor{})
	_, err = feedChunks(t, in, stream, 16)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestIngester_CorruptPixelStream(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	encoded, err := EncodeQOI(gradientPixels(8, 8), 8, 8)
	require.NoError(t, err)
	encoded[len(encoded)-1] = 0 // Break the end marker
	stream := AppendBase64([]byte(fmt.Sprintf("File=size=%d:", len(encoded))), encoded)

	in.Begin(CellAnchor{})
	_, err = feedChunks(t, in, stream, 16)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, 0, s.Count())
}

func TestIngester_FinishBeforePayload(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	_, err := in.Finish()
	assert.ErrorIs(t, err, ErrIngestState)

	in.Begin(CellAnchor{})
	_, err = in.Finish()
	assert.ErrorIs(t, err, ErrIngestState)
}

func TestIngester_FeedAfterFailure(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	in.Begin(CellAnchor{})
	_, err := in.Feed([]byte("File=size=10:***"))
	require.ErrorIs(t, err, ErrDecode)

	_, err = in.Feed([]byte("QUJD"))
	assert.ErrorIs(t, err, ErrIngestState)
}

func TestIngester_ReusableAfterAbortAndFailure(t *testing.T) {
	s, _ := newTestStore(DefaultCapacity, 0)
	in := NewIngester(s)

	// Abort mid-payload
	stream := buildTransmission(t, solidPixels(4, 4, 3, 3, 3, 255), 4, 4, "")
	in.Begin(CellAnchor{})
	_, err := in.Feed(stream[:len(stream)/2])
	require.NoError(t, err)
	in.Abort()

	// Fail a second attempt
	in.Begin(CellAnchor{})
	_, err = in.Feed([]byte("File=size=0:"))
	require.ErrorIs(t, err, ErrProtocol)

	// A fresh attempt still succeeds
	in.Begin(CellAnchor{})
	id, err := feedChunks(t, in, stream, 8)
	require.NoError(t, err)
	assert.NotNil(t, s.GetImage(id))
}
