package rohc

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// Test traffic builders.  IP/UDP/TCP framing comes from gopacket so lengths
// and checksums are independently computed; RTP/ESP/UDP-Lite headers are
// assembled by hand.

type rtpSpec struct {
	ssrc   uint32
	seq    uint16
	ts     uint32
	marker bool
	pt     byte
	csrc   []uint32
}

func rtpHeader(s rtpSpec) []byte {
	hdr := make([]byte, rtpMinLen+4*len(s.csrc))
	hdr[0] = 0x80 | byte(len(s.csrc))
	hdr[1] = s.pt & 0x7f
	if s.marker {
		hdr[1] |= 0x80
	}
	binary.BigEndian.PutUint16(hdr[2:], s.seq)
	binary.BigEndian.PutUint32(hdr[4:], s.ts)
	binary.BigEndian.PutUint32(hdr[8:], s.ssrc)
	for i, cs := range s.csrc {
		binary.BigEndian.PutUint32(hdr[rtpMinLen+4*i:], cs)
	}
	return hdr
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return append([]byte(nil), buf.Bytes()...)
}

func ipv4Layer(id uint16, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       id,
		Flags:    layers.IPv4DontFragment,
		Protocol: proto,
		SrcIP:    net.IP{192, 168, 1, 10},
		DstIP:    net.IP{192, 168, 1, 20},
	}
}

func buildRTPPacket(t *testing.T, id uint16, s rtpSpec, payload []byte) []byte {
	ip := ipv4Layer(id, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5004, DstPort: 5004}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	body := append(rtpHeader(s), payload...)
	return serialize(t, ip, udp, gopacket.Payload(body))
}

func buildUDPPacket(t *testing.T, id uint16, sport, dport uint16, payload []byte) []byte {
	ip := ipv4Layer(id, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ip, udp, gopacket.Payload(payload))
}

func buildIPv6UDPPacket(t *testing.T, sport, dport uint16, payload []byte) []byte {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ip, udp, gopacket.Payload(payload))
}

func buildIPOnlyPacket(t *testing.T, id uint16, payload []byte) []byte {
	ip := ipv4Layer(id, layers.IPProtocolGRE)
	return serialize(t, ip, gopacket.Payload(payload))
}

func buildESPPacket(t *testing.T, id uint16, spi, sn uint32, payload []byte) []byte {
	esp := make([]byte, espMinLen)
	binary.BigEndian.PutUint32(esp, spi)
	binary.BigEndian.PutUint32(esp[4:], sn)
	ip := ipv4Layer(id, layers.IPProtocolESP)
	return serialize(t, ip, gopacket.Payload(append(esp, payload...)))
}

func buildUDPLitePacket(t *testing.T, id uint16, sport, dport, coverage uint16, payload []byte) []byte {
	lite := make([]byte, udpLen)
	binary.BigEndian.PutUint16(lite, sport)
	binary.BigEndian.PutUint16(lite[2:], dport)
	binary.BigEndian.PutUint16(lite[4:], coverage)
	binary.BigEndian.PutUint16(lite[6:], 0xbeef) // checksum carried verbatim
	ip := ipv4Layer(id, layers.IPProtocol(ipProtoUDPLite))
	return serialize(t, ip, gopacket.Payload(append(lite, payload...)))
}

func buildTCPPacket(t *testing.T, id uint16, seq, ack uint32, window uint16, payload []byte) []byte {
	ip := ipv4Layer(id, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: 443,
		DstPort: 51000,
		Seq:     seq,
		Ack:     ack,
		ACK:     true,
		Window:  window,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ip, tcp, gopacket.Payload(payload))
}
