package rohc

// UDP profile 0x0002, RFC 3095 section 5.11.  Like IP-only with a UDP
// header in the static chain; the checksum travels verbatim in every
// compressed packet while the flow uses it.

var udpProfile = &profile{
	id:          ProfileUDP,
	hasUDP:      true,
	generatedSN: true,
	classify: func(info *pktInfo) bool {
		return info.udp != nil && !info.udpLite
	},
	staticChain: func(dst []byte, info *pktInfo) []byte {
		dst = ipStaticChain(dst, info)
		u := udpHdr(info.udp)
		return append(dst,
			byte(u.srcPort()>>8), byte(u.srcPort()),
			byte(u.dstPort()>>8), byte(u.dstPort()))
	},
	dynamicChain: func(dst []byte, c *compContext, info *pktInfo) []byte {
		dst = ipDynamicChain(dst, c, info)
		ck := udpHdr(info.udp).checksum()
		dst = append(dst, byte(ck>>8), byte(ck))
		return append(dst, byte(c.sn>>8), byte(c.sn))
	},
	parseStaticChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsStatic(cur, d); err != nil {
			return err
		}
		return parseUDPStatic(cur, d)
	},
	parseDynamicChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsDynamic(cur, d); err != nil {
			return err
		}
		if err := parseUDPDynamic(cur, d); err != nil {
			return err
		}
		sn, err := cur.readUint16()
		if err != nil {
			return err
		}
		d.refSN = sn
		d.sn = sn
		return nil
	},
}

func parseUDPStatic(cur *cursor, d *decompContext) error {
	raw, err := cur.read(4)
	if err != nil {
		return err
	}
	d.transOff = len(d.template)
	hdr := make([]byte, udpLen)
	copy(hdr, raw)
	d.template = append(d.template, hdr...)
	d.rtpOff = -1
	return nil
}

func parseUDPDynamic(cur *cursor, d *decompContext) error {
	ck, err := cur.readUint16()
	if err != nil {
		return err
	}
	d.udpChecksumUsed = ck != 0
	patchUDP(d.template[d.transOff:], 0, ck)
	return nil
}
