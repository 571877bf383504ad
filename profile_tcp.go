package rohc

import "encoding/binary"

// TCP profile 0x0006, RFC 6846.  Staged implementation: IR/IR-DYN carry the
// full header chain, and a single CRC-7-protected compressed format encodes
// the master sequence number with W-LSB while changed TCP fields travel
// verbatim behind a presence octet.  The TCP checksum covers the payload and
// is never inferred.

const (
	tcpCoSeq   = 0x80
	tcpCoAck   = 0x40
	tcpCoWin   = 0x20
	tcpCoIPID  = 0x10
	tcpCoFlags = 0x08
	tcpCoUrg   = 0x04
)

var tcpProfile = &profile{
	id:          ProfileTCP,
	hasTCP:      true,
	generatedSN: true,
	classify: func(info *pktInfo) bool {
		return info.tcp != nil
	},
	staticChain: func(dst []byte, info *pktInfo) []byte {
		dst = ipStaticChain(dst, info)
		t := tcpHdr(info.tcp)
		return append(dst,
			byte(t.srcPort()>>8), byte(t.srcPort()),
			byte(t.dstPort()>>8), byte(t.dstPort()))
	},
	dynamicChain: func(dst []byte, c *compContext, info *pktInfo) []byte {
		dst = ipDynamicChain(dst, c, info)
		dst = append(dst, byte(c.sn>>8), byte(c.sn))
		dst = append(dst, byte(len(info.tcp)))
		return append(dst, info.tcp...)
	},
	parseStaticChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsStatic(cur, d); err != nil {
			return err
		}
		ports, err := cur.read(4)
		if err != nil {
			return err
		}
		d.transOff = len(d.template)
		hdr := make([]byte, tcpMinLen)
		copy(hdr, ports)
		hdr[12] = 5 << 4
		d.template = append(d.template, hdr...)
		d.rtpOff = -1
		return nil
	},
	parseDynamicChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsDynamic(cur, d); err != nil {
			return err
		}
		sn, err := cur.readUint16()
		if err != nil {
			return err
		}
		hlen, err := cur.readByte()
		if err != nil {
			return err
		}
		if int(hlen) < tcpMinLen || hlen%4 != 0 {
			return errPacketTooShort
		}
		raw, err := cur.read(int(hlen))
		if err != nil {
			return err
		}
		// the verbatim header replaces the template's TCP layer wholesale
		d.template = append(d.template[:d.transOff], raw...)
		th := tcpHdr(raw)
		d.tcpSeq = th.seq()
		d.tcpAck = th.ack()
		d.refSN = sn
		d.sn = sn
		return nil
	},
}

// tcpChanges computes the presence octet for a compressed TCP packet.
func tcpChanges(last, cur tcpHdr, lastID, curID uint16, innerV4 bool) byte {
	var fl byte
	if cur.seq() != last.seq() {
		fl |= tcpCoSeq
	}
	if cur.ack() != last.ack() {
		fl |= tcpCoAck
	}
	if cur.window() != last.window() {
		fl |= tcpCoWin
	}
	if innerV4 && curID != lastID {
		fl |= tcpCoIPID
	}
	if cur.flags() != last.flags() {
		fl |= tcpCoFlags
	}
	if cur.urgent() != last.urgent() {
		fl |= tcpCoUrg
	}
	return fl
}

// appendTCPCo emits the compressed TCP packet body after the UOR-2 style
// base: presence octet, checksum, then the announced fields.
func appendTCPCo(dst []byte, fl byte, cur tcpHdr, innerID uint16) []byte {
	dst = append(dst, fl)
	dst = append(dst, byte(cur.checksum()>>8), byte(cur.checksum()))
	if fl&tcpCoSeq != 0 {
		v := cur.seq()
		dst = append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	if fl&tcpCoAck != 0 {
		v := cur.ack()
		dst = append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	if fl&tcpCoWin != 0 {
		v := cur.window()
		dst = append(dst, byte(v>>8), byte(v))
	}
	if fl&tcpCoIPID != 0 {
		dst = append(dst, byte(innerID>>8), byte(innerID))
	}
	if fl&tcpCoFlags != 0 {
		dst = append(dst, cur.flags())
	}
	if fl&tcpCoUrg != 0 {
		v := cur.urgent()
		dst = append(dst, byte(v>>8), byte(v))
	}
	return dst
}

// readTCPCo parses the compressed TCP body, patching the announced fields
// into hdr (a TCP header slice).
func readTCPCo(cur *cursor, hdr []byte) (ipid uint16, ipidSet bool, err error) {
	fl, err := cur.readByte()
	if err != nil {
		return 0, false, err
	}
	ck, err := cur.readUint16()
	if err != nil {
		return 0, false, err
	}
	binary.BigEndian.PutUint16(hdr[16:], ck)
	if fl&tcpCoSeq != 0 {
		v, err := cur.readUint32()
		if err != nil {
			return 0, false, err
		}
		binary.BigEndian.PutUint32(hdr[4:], v)
	}
	if fl&tcpCoAck != 0 {
		v, err := cur.readUint32()
		if err != nil {
			return 0, false, err
		}
		binary.BigEndian.PutUint32(hdr[8:], v)
	}
	if fl&tcpCoWin != 0 {
		v, err := cur.readUint16()
		if err != nil {
			return 0, false, err
		}
		binary.BigEndian.PutUint16(hdr[14:], v)
	}
	if fl&tcpCoIPID != 0 {
		ipid, err = cur.readUint16()
		if err != nil {
			return 0, false, err
		}
		ipidSet = true
	}
	if fl&tcpCoFlags != 0 {
		b, err := cur.readByte()
		if err != nil {
			return 0, false, err
		}
		hdr[13] = b
	}
	if fl&tcpCoUrg != 0 {
		v, err := cur.readUint16()
		if err != nil {
			return 0, false, err
		}
		binary.BigEndian.PutUint16(hdr[18:], v)
	}
	return ipid, ipidSet, nil
}
