package rohc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDiscriminators(t *testing.T) {
	cases := []struct {
		octet byte
		class pktClass
	}{
		{0x00, pktUO0},
		{0x7f, pktUO0},
		{0x80, pktUO1},
		{0xbf, pktUO1},
		{0xc0, pktUOR2},
		{0xdf, pktUOR2},
		{0xfc, pktIR},
		{0xfd, pktIR},
		{0xf8, pktIRDYN},
		{0xfe, pktSegment},
		{0xff, pktSegment},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.class, classify(tc.octet), "octet %#x", tc.octet)
	}
}

func TestAddCIDOctet(t *testing.T) {
	assert.Empty(t, appendCIDPrefix(nil, 0), "CID 0 has no prefix")
	buf := appendCIDPrefix(nil, 7)
	require.Len(t, buf, 1)
	assert.Equal(t, byte(0xe7), buf[0])
	assert.True(t, isAddCID(buf[0]))
	assert.False(t, isAddCID(typePadding), "0xe0 is padding, not Add-CID")
}

func TestReadPreludeSmallCID(t *testing.T) {
	cid, typ, err := readPrelude(newCursor([]byte{0xe0, 0xe0, 0xe7, 0x45}), false)
	require.NoError(t, err)
	assert.Equal(t, 7, cid)
	assert.Equal(t, byte(0x45), typ)

	cid, typ, err = readPrelude(newCursor([]byte{0x3a}), false)
	require.NoError(t, err)
	assert.Equal(t, 0, cid)
	assert.Equal(t, byte(0x3a), typ)
}

func TestReadPreludeLargeCID(t *testing.T) {
	enc, _ := sdvlAppend([]byte{0xc3}, 500)
	cid, typ, err := readPrelude(newCursor(enc), true)
	require.NoError(t, err)
	assert.Equal(t, 500, cid)
	assert.Equal(t, byte(0xc3), typ)
}

func TestReadPreludeShort(t *testing.T) {
	_, _, err := readPrelude(newCursor([]byte{0xe0}), false)
	assert.Error(t, err)

	_, _, err = readPrelude(newCursor([]byte{0xe7}), false)
	assert.Error(t, err, "Add-CID with no type octet")
}
