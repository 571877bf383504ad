package rohc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
)

func TestDissectRTP(t *testing.T) {
	pkt := buildRTPPacket(t, 100, rtpSpec{ssrc: 0xdeadbeef, seq: 1, ts: 160, pt: 96}, []byte("voice"))
	info, err := dissect(pkt, defaultRTPDetect)
	require.NoError(t, err)
	assert.Nil(t, info.outerIP)
	assert.False(t, info.innerV6)
	require.NotNil(t, info.udp)
	require.NotNil(t, info.rtp)
	assert.Equal(t, uint32(0xdeadbeef), rtpHdr(info.rtp).ssrc())
	assert.Equal(t, []byte("voice"), info.payload)
	assert.Equal(t, ipv4MinLen+udpLen+rtpMinLen, info.hdrLen)
}

func TestDissectUDPOddPortNotRTP(t *testing.T) {
	pkt := buildUDPPacket(t, 1, 9999, 9999, []byte{0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	info, err := dissect(pkt, defaultRTPDetect)
	require.NoError(t, err)
	assert.Nil(t, info.rtp, "odd destination port must not classify as RTP")
}

func TestDissectESPAndTCP(t *testing.T) {
	esp := buildESPPacket(t, 5, 0x11223344, 9, []byte("x"))
	info, err := dissect(esp, defaultRTPDetect)
	require.NoError(t, err)
	require.NotNil(t, info.esp)
	assert.Equal(t, uint32(0x11223344), espHdr(info.esp).spi())

	tcp := buildTCPPacket(t, 6, 1000, 2000, 512, []byte("y"))
	info, err = dissect(tcp, defaultRTPDetect)
	require.NoError(t, err)
	require.NotNil(t, info.tcp)
	assert.Equal(t, uint32(1000), tcpHdr(info.tcp).seq())
}

func TestDissectRejectsFragments(t *testing.T) {
	pkt := buildUDPPacket(t, 1, 1000, 2000, []byte("z"))
	pkt[6] = 0x20 // more-fragments
	pkt[7] = 0x01
	_, err := dissect(pkt, defaultRTPDetect)
	assert.ErrorIs(t, err, errNotCompressible)
}

func TestDissectIPv6(t *testing.T) {
	pkt := buildIPv6UDPPacket(t, 4000, 4002, []byte("six"))
	info, err := dissect(pkt, func(*pktInfo) bool { return false })
	require.NoError(t, err)
	assert.True(t, info.innerV6)
	require.NotNil(t, info.udp)
	assert.Equal(t, uint16(4002), udpHdr(info.udp).dstPort())
}

func TestIPv4ChecksumMatchesStack(t *testing.T) {
	pkt := buildUDPPacket(t, 42, 1234, 5678, []byte("check"))
	hdr, err := ipv4.ParseHeader(pkt)
	require.NoError(t, err)
	assert.Equal(t, 42, hdr.ID)

	// recompute with the checksum field skipped; must match what gopacket produced
	want := ipv4Hdr(pkt).id()
	assert.Equal(t, uint16(42), want)
	sum := ipv4Checksum(pkt[:ipv4MinLen])
	assert.Equal(t, uint16(pkt[10])<<8|uint16(pkt[11]), sum)
}

func TestIPIDNBOAccess(t *testing.T) {
	pkt := buildUDPPacket(t, 0x1234, 1, 2, nil)
	h := ipv4Hdr(pkt)
	assert.Equal(t, uint16(0x1234), h.idNBO(true))
	assert.Equal(t, uint16(0x3412), h.idNBO(false))
}

func TestTrimToUDPCoverage(t *testing.T) {
	pkt := buildRTPPacket(t, 7, rtpSpec{ssrc: 1, seq: 2, ts: 3, pt: 8}, []byte("pay"))
	info, err := dissect(pkt, defaultRTPDetect)
	require.NoError(t, err)

	trimmed := info.trimTo(udpProfile)
	assert.Nil(t, trimmed.rtp)
	assert.Equal(t, ipv4MinLen+udpLen, trimmed.hdrLen)
	assert.True(t, bytes.HasSuffix(trimmed.raw, trimmed.payload))
	assert.Equal(t, rtpMinLen+len("pay"), len(trimmed.payload))
}
