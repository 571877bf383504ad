package rohc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedback1RoundTrip(t *testing.T) {
	buf := appendFeedback1(nil, 3, false, 0x42)
	cur := newCursor(buf)
	fb, err := readFeedback(cur, false)
	require.NoError(t, err)
	assert.True(t, fb.small)
	assert.Equal(t, 3, fb.cid)
	assert.Equal(t, uint16(0x42), fb.sn)
	assert.Equal(t, 0, cur.remaining())
}

func TestFeedback2RoundTrip(t *testing.T) {
	for _, ackType := range []byte{fbAck, fbNack, fbStaticNack} {
		buf := appendFeedback2(nil, 7, false, ackType, ModeO, 0xbeef, true)
		fb, err := readFeedback(newCursor(buf), false)
		require.NoError(t, err)
		assert.Equal(t, ackType, fb.ackType)
		assert.Equal(t, byte(ModeO), fb.mode)
		assert.Equal(t, 7, fb.cid)
		assert.Equal(t, uint16(0xbeef), fb.sn)
	}
}

func TestFeedback2LargeCID(t *testing.T) {
	buf := appendFeedback2(nil, 500, true, fbAck, ModeR, 42, true)
	fb, err := readFeedback(newCursor(buf), true)
	require.NoError(t, err)
	assert.Equal(t, 500, fb.cid)
	assert.Equal(t, uint16(42), fb.sn)
}

func TestFeedback2CRCDetectsCorruption(t *testing.T) {
	buf := appendFeedback2(nil, 1, false, fbAck, ModeU, 99, true)
	buf[3] ^= 0x01 // SN octet inside the CRC-protected element
	_, err := readFeedback(newCursor(buf), false)
	assert.Error(t, err)
}

func TestFeedbackCID0NoPrefix(t *testing.T) {
	buf := appendFeedback1(nil, 0, false, 7)
	// envelope octet then a single SN octet, no Add-CID
	require.Len(t, buf, 2)
	assert.Equal(t, byte(typeFeedback|1), buf[0])
}

func TestFeedbackShortInput(t *testing.T) {
	_, err := readFeedback(newCursor([]byte{typeFeedback | 4, 0x01}), false)
	assert.Error(t, err)
}
