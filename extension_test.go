package rohc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExt0RoundTrip(t *testing.T) {
	buf := appendExt0(nil, 0x5, 0x3)
	typ, _, sn, tb, _, err := readExtension(newCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, byte(extType0), typ)
	assert.Equal(t, byte(0x5), sn)
	assert.Equal(t, uint16(0x3), tb)
}

func TestExt1RoundTrip(t *testing.T) {
	buf := appendExt1(nil, 0x2, 0x7, 0xab)
	typ, _, sn, tb, mt, err := readExtension(newCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, byte(extType1), typ)
	assert.Equal(t, byte(0x2), sn)
	assert.Equal(t, uint16(0x7), tb)
	assert.Equal(t, byte(0xab), mt)
}

func TestExt2RoundTrip(t *testing.T) {
	buf := appendExt2(nil, 0x1, 0x5aa, 0x33)
	typ, _, sn, tb, mt, err := readExtension(newCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, byte(extType2), typ)
	assert.Equal(t, byte(0x1), sn)
	assert.Equal(t, uint16(0x5aa), tb)
	assert.Equal(t, byte(0x33), mt)
}

func TestExt3RoundTripRTP(t *testing.T) {
	in := &ext3{
		s:   true,
		rts: true,
		tsc: true,
		i:   true,
		rtp: true,
		sn:  0x9c,
		ts:  1234,
		inner: ext3IPFlags{
			tosSet: true, tos: 0xb8,
			ttlSet: true, ttl: 63,
			nbo: true,
		},
		mode:     ModeO,
		ptSet:    true,
		pt:       96,
		mSet:     true,
		m:        true,
		tssSet:   true,
		tsStride: 160,
	}
	buf, err := appendExt3(nil, in)
	require.NoError(t, err)

	typ, out, _, _, _, err := readExtension(newCursor(buf))
	require.NoError(t, err)
	require.Equal(t, byte(extType3), typ)
	require.NotNil(t, out)

	assert.True(t, out.s)
	assert.Equal(t, byte(0x9c), out.sn)
	assert.True(t, out.rts)
	assert.Equal(t, uint32(1234), out.ts)
	assert.True(t, out.tsc)
	assert.True(t, out.inner.ipidSet)
	assert.True(t, out.inner.tosSet)
	assert.Equal(t, byte(0xb8), out.inner.tos)
	assert.Equal(t, byte(63), out.inner.ttl)
	assert.True(t, out.inner.nbo)
	assert.Equal(t, byte(ModeO), out.mode)
	assert.Equal(t, byte(96), out.pt)
	assert.True(t, out.m)
	assert.Equal(t, uint32(160), out.tsStride)
}

func TestExt3TwoIPHeaders(t *testing.T) {
	in := &ext3{
		ip2: true,
		inner: ext3IPFlags{
			ttlSet: true, ttl: 64, nbo: true,
		},
		outer: ext3IPFlags{
			tosSet: true, tos: 0x20,
			ipidSet: true, ipid: 0xcafe,
		},
	}
	buf, err := appendExt3(nil, in)
	require.NoError(t, err)

	_, out, _, _, _, err := readExtension(newCursor(buf))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.ip2)
	assert.Equal(t, byte(64), out.inner.ttl)
	assert.Equal(t, byte(0x20), out.outer.tos)
	assert.True(t, out.outer.ipidSet)
	assert.Equal(t, uint16(0xcafe), out.outer.ipid)
}

func TestExt3Truncated(t *testing.T) {
	in := &ext3{s: true, rts: true, sn: 1, ts: 100000}
	buf, err := appendExt3(nil, in)
	require.NoError(t, err)
	for n := 0; n < len(buf); n++ {
		_, _, _, _, _, err := readExtension(newCursor(buf[:n]))
		if n == 0 {
			require.Error(t, err)
			continue
		}
		assert.Error(t, err, "truncation at %d must fail", n)
	}
}
