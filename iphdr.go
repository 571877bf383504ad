package rohc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Views over the uncompressed headers the profiles cover.  Each view is a
// byte slice with checked accessors; the caller validates the length once and
// field access stays allocation free.

const (
	ipv4MinLen     = 20
	ipv6Len        = 40
	udpLen         = 8
	rtpMinLen      = 12
	espMinLen      = 8
	tcpMinLen      = 20
	ipProtoIPIP    = 4
	ipProtoTCP     = 6
	ipProtoUDP     = 17
	ipProtoIPv6    = 41
	ipProtoESP     = 50
	ipProtoUDPLite = 136
)

var errNotCompressible = errors.New("rohc: packet not compressible")

type ipv4Hdr []byte

func (h ipv4Hdr) version() byte     { return h[0] >> 4 }
func (h ipv4Hdr) ihl() int          { return int(h[0]&0x0f) * 4 }
func (h ipv4Hdr) tos() byte         { return h[1] }
func (h ipv4Hdr) totalLen() uint16  { return binary.BigEndian.Uint16(h[2:]) }
func (h ipv4Hdr) id() uint16        { return binary.BigEndian.Uint16(h[4:]) }
func (h ipv4Hdr) flagsFrag() uint16 { return binary.BigEndian.Uint16(h[6:]) }
func (h ipv4Hdr) df() bool          { return h[6]&0x40 != 0 }
func (h ipv4Hdr) ttl() byte         { return h[8] }
func (h ipv4Hdr) protocol() byte    { return h[9] }
func (h ipv4Hdr) src() []byte       { return h[12:16] }
func (h ipv4Hdr) dst() []byte       { return h[16:20] }

// fragmented reports whether MF is set or a fragment offset is present.
// Fragments are never compressed (RFC 3095 section 5.7).
func (h ipv4Hdr) fragmented() bool { return h.flagsFrag()&0x3fff != 0 }

// idNBO returns the IP-ID in network byte order semantics: when the sender
// stores it little endian (NBO=0) the octets are swapped before offset
// encoding.
func (h ipv4Hdr) idNBO(nbo bool) uint16 {
	id := h.id()
	if !nbo {
		id = id<<8 | id>>8
	}
	return id
}

type ipv6Hdr []byte

func (h ipv6Hdr) version() byte      { return h[0] >> 4 }
func (h ipv6Hdr) trafficClass() byte { return h[0]<<4 | h[1]>>4 }
func (h ipv6Hdr) flowLabel() uint32 {
	return uint32(h[1]&0x0f)<<16 | uint32(h[2])<<8 | uint32(h[3])
}
func (h ipv6Hdr) payloadLen() uint16 { return binary.BigEndian.Uint16(h[4:]) }
func (h ipv6Hdr) nextHeader() byte   { return h[6] }
func (h ipv6Hdr) hopLimit() byte     { return h[7] }
func (h ipv6Hdr) src() []byte        { return h[8:24] }
func (h ipv6Hdr) dst() []byte        { return h[24:40] }

type udpHdr []byte

func (h udpHdr) srcPort() uint16  { return binary.BigEndian.Uint16(h[0:]) }
func (h udpHdr) dstPort() uint16  { return binary.BigEndian.Uint16(h[2:]) }
func (h udpHdr) length() uint16   { return binary.BigEndian.Uint16(h[4:]) }
func (h udpHdr) checksum() uint16 { return binary.BigEndian.Uint16(h[6:]) }

// udpHdr doubles as the UDP-Lite view; octets 4..5 carry the checksum
// coverage there instead of the datagram length.
func (h udpHdr) coverage() uint16 { return binary.BigEndian.Uint16(h[4:]) }

type rtpHdr []byte

func (h rtpHdr) version() byte     { return h[0] >> 6 }
func (h rtpHdr) padding() bool     { return h[0]&0x20 != 0 }
func (h rtpHdr) extension() bool   { return h[0]&0x10 != 0 }
func (h rtpHdr) csrcCount() int    { return int(h[0] & 0x0f) }
func (h rtpHdr) marker() bool      { return h[1]&0x80 != 0 }
func (h rtpHdr) payloadType() byte { return h[1] & 0x7f }
func (h rtpHdr) seq() uint16       { return binary.BigEndian.Uint16(h[2:]) }
func (h rtpHdr) timestamp() uint32 { return binary.BigEndian.Uint32(h[4:]) }
func (h rtpHdr) ssrc() uint32      { return binary.BigEndian.Uint32(h[8:]) }
func (h rtpHdr) hdrLen() int       { return rtpMinLen + 4*h.csrcCount() }
func (h rtpHdr) csrc(i int) uint32 {
	return binary.BigEndian.Uint32(h[rtpMinLen+4*i:])
}

type espHdr []byte

func (h espHdr) spi() uint32 { return binary.BigEndian.Uint32(h[0:]) }
func (h espHdr) sn() uint32  { return binary.BigEndian.Uint32(h[4:]) }

type tcpHdr []byte

func (h tcpHdr) srcPort() uint16   { return binary.BigEndian.Uint16(h[0:]) }
func (h tcpHdr) dstPort() uint16   { return binary.BigEndian.Uint16(h[2:]) }
func (h tcpHdr) seq() uint32       { return binary.BigEndian.Uint32(h[4:]) }
func (h tcpHdr) ack() uint32       { return binary.BigEndian.Uint32(h[8:]) }
func (h tcpHdr) dataOffset() int   { return int(h[12]>>4) * 4 }
func (h tcpHdr) flags() byte       { return h[13] }
func (h tcpHdr) window() uint16    { return binary.BigEndian.Uint16(h[14:]) }
func (h tcpHdr) checksum() uint16  { return binary.BigEndian.Uint16(h[16:]) }
func (h tcpHdr) urgent() uint16    { return binary.BigEndian.Uint16(h[18:]) }
func (h tcpHdr) options() []byte   { return h[tcpMinLen:h.dataOffset()] }

// pktInfo is the dissected form of an uncompressed packet offered to the
// compressor.  outerIP is set only for IP-in-IP flows; innerIP always refers
// to the header directly above the transport.
type pktInfo struct {
	raw     []byte
	outerIP []byte // nil when not tunneled
	outerV6 bool
	innerIP []byte
	innerV6 bool
	proto   byte // protocol above the inner IP header
	udp     []byte
	rtp     []byte
	esp     []byte
	tcp     []byte
	hdrLen  int // bytes covered by compression
	payload []byte
	udpLite bool
}

// dissect walks an uncompressed packet the way the profiles classify it.
// Anything the generic profiles cannot express (fragments, IPv4 options,
// IPv6 extension headers) fails with errNotCompressible and falls back to
// the Uncompressed profile.
func dissect(pkt []byte, rtpDetect func(pkt *pktInfo) bool) (*pktInfo, error) {
	info := &pktInfo{raw: pkt}
	if len(pkt) < 1 {
		return nil, errPacketTooShort
	}

	ip, v6, err := checkIPHeader(pkt)
	if err != nil {
		return nil, err
	}
	info.innerIP, info.innerV6 = ip, v6

	proto := ipNextProto(ip, v6)
	rest := pkt[len(ip):]

	// one level of IP-in-IP tunneling
	if proto == ipProtoIPIP || proto == ipProtoIPv6 {
		inner, innerV6, err := checkIPHeader(rest)
		if err != nil {
			return nil, err
		}
		info.outerIP, info.outerV6 = info.innerIP, info.innerV6
		info.innerIP, info.innerV6 = inner, innerV6
		proto = ipNextProto(inner, innerV6)
		rest = rest[len(inner):]
	}
	info.proto = proto

	switch proto {
	case ipProtoUDP, ipProtoUDPLite:
		if len(rest) < udpLen {
			return nil, errNotCompressible
		}
		info.udp = rest[:udpLen]
		info.udpLite = proto == ipProtoUDPLite
		rest = rest[udpLen:]
		if proto == ipProtoUDP && len(rest) >= rtpMinLen {
			probe := *info
			probe.rtp = rest
			if rtpHdr(rest).version() == 2 && rtpDetect != nil && rtpDetect(&probe) {
				r := rtpHdr(rest)
				if len(rest) < r.hdrLen() {
					return nil, errNotCompressible
				}
				info.rtp = rest[:r.hdrLen()]
				rest = rest[r.hdrLen():]
			}
		}
	case ipProtoESP:
		if len(rest) < espMinLen {
			return nil, errNotCompressible
		}
		info.esp = rest[:espMinLen]
		rest = rest[espMinLen:]
	case ipProtoTCP:
		if len(rest) < tcpMinLen {
			return nil, errNotCompressible
		}
		th := tcpHdr(rest)
		off := th.dataOffset()
		if off < tcpMinLen || len(rest) < off {
			return nil, errNotCompressible
		}
		info.tcp = rest[:off]
		rest = rest[off:]
	default:
		// IP-only profile: header chain stops at the IP layer
	}

	info.payload = rest
	info.hdrLen = len(pkt) - len(rest)
	return info, nil
}

// trimTo narrows the dissection to the layers a profile covers, pushing the
// rest into the payload.  A UDP-profile context compressing an RTP-bearing
// flow treats the RTP header as opaque payload.
func (info *pktInfo) trimTo(p *profile) *pktInfo {
	cp := *info
	switch {
	case p.hasRTP:
	case p.hasUDP:
		cp.rtp = nil
	case p.hasESP:
		cp.rtp, cp.udp = nil, nil
	case p.hasTCP:
		cp.rtp, cp.udp, cp.esp = nil, nil, nil
	default:
		cp.rtp, cp.udp, cp.esp, cp.tcp = nil, nil, nil, nil
	}

	end := offsetIn(cp.raw, cp.innerIP) + len(cp.innerIP)
	for _, layer := range [][]byte{cp.udp, cp.esp, cp.tcp, cp.rtp} {
		if layer != nil {
			end = offsetIn(cp.raw, layer) + len(layer)
		}
	}
	cp.hdrLen = end
	cp.payload = cp.raw[end:]
	return &cp
}

func checkIPHeader(pkt []byte) (hdr []byte, v6 bool, err error) {
	if len(pkt) < 1 {
		return nil, false, errPacketTooShort
	}
	switch pkt[0] >> 4 {
	case 4:
		if len(pkt) < ipv4MinLen {
			return nil, false, errPacketTooShort
		}
		h := ipv4Hdr(pkt)
		if h.ihl() != ipv4MinLen {
			// IPv4 options are outside the generic chains
			return nil, false, errNotCompressible
		}
		if h.fragmented() || h.flagsFrag()&0x8000 != 0 {
			// fragments, and the reserved flag no chain can carry
			return nil, false, errNotCompressible
		}
		return pkt[:ipv4MinLen], false, nil
	case 6:
		if len(pkt) < ipv6Len {
			return nil, false, errPacketTooShort
		}
		switch ipv6Hdr(pkt).nextHeader() {
		case 0, 43, 44, 60: // hop-by-hop, routing, fragment, dst options
			return nil, false, errNotCompressible
		}
		return pkt[:ipv6Len], true, nil
	default:
		return nil, false, errNotCompressible
	}
}

func ipNextProto(hdr []byte, v6 bool) byte {
	if v6 {
		return ipv6Hdr(hdr).nextHeader()
	}
	return ipv4Hdr(hdr).protocol()
}

// ipv4Checksum computes the RFC 791 header checksum with the checksum field
// treated as zero.
func ipv4Checksum(hdr []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(hdr); i += 2 {
		if i == 10 { // checksum field itself
			continue
		}
		sum += uint32(binary.BigEndian.Uint16(hdr[i:]))
	}
	for sum > 0xffff {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// defaultRTPDetect is the classifier heuristic used when the caller installs
// no detector: RTP version 2 over an even, non-well-known destination port.
func defaultRTPDetect(p *pktInfo) bool {
	dport := udpHdr(p.udp).dstPort()
	return dport >= 1024 && dport%2 == 0
}
