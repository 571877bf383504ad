package rohc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segTestCompressor(t *testing.T, mrru int) *Compressor {
	cfg := DefaultConfig()
	cfg.MRRU = mrru
	c, err := NewCompressor(cfg)
	require.NoError(t, err)
	return c
}

func TestSegmentRoundTrip(t *testing.T) {
	c := segTestCompressor(t, 2048)
	pkt := make([]byte, 300)
	for i := range pkt {
		pkt[i] = byte(i)
	}
	segs, err := c.Segment(pkt, 100)
	require.NoError(t, err)
	require.True(t, len(segs) >= 3)

	var r reassembler
	for i, seg := range segs {
		unit, status := r.feed(newCursor(seg), 2048)
		if i < len(segs)-1 {
			assert.Equal(t, StatusSegment, status)
			assert.Nil(t, unit)
		} else {
			require.Equal(t, StatusOK, status)
			assert.Equal(t, pkt, unit)
		}
	}
}

func TestSegmentFCSFailure(t *testing.T) {
	c := segTestCompressor(t, 2048)
	pkt := make([]byte, 120)
	segs, err := c.Segment(pkt, 64)
	require.NoError(t, err)

	segs[0][5] ^= 0xff
	var r reassembler
	var status Status
	for _, seg := range segs {
		_, status = r.feed(newCursor(seg), 2048)
	}
	assert.Equal(t, StatusCRCFailure, status)
	assert.False(t, r.partial, "corrupt unit must be discarded")
}

func TestSegmentMRRUEnforced(t *testing.T) {
	c := segTestCompressor(t, 64)
	_, err := c.Segment(make([]byte, 100), 32)
	assert.ErrorIs(t, err, errSegmentTooLarge)

	c0 := segTestCompressor(t, 0)
	_, err = c0.Segment(make([]byte, 10), 32)
	assert.Error(t, err, "MRRU 0 disables segmentation")
}

func TestSegmentInterleaveDiscards(t *testing.T) {
	c := segTestCompressor(t, 2048)
	segs, err := c.Segment(make([]byte, 100), 64)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MRRU = 2048
	d, err := NewDecompressor(nil, cfg)
	require.NoError(t, err)
	res, err := d.Decompress(segs[0])
	require.NoError(t, err)
	require.Equal(t, StatusSegment, res.Status)
	require.True(t, d.reasm.partial)
	// a non-segment packet in between abandons the partial unit
	_, err = d.Decompress([]byte{0x00})
	require.NoError(t, err)
	assert.False(t, d.reasm.partial)
}
