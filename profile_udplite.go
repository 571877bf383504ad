package rohc

// UDP-Lite profile, RFC 4019.  The checksum coverage replaces the length
// field and may vary per packet, so coverage and checksum both travel in
// every compressed packet.

var udpLiteProfile = &profile{
	id:          ProfileUDPLite,
	hasUDP:      true,
	udpLite:     true,
	generatedSN: true,
	classify: func(info *pktInfo) bool {
		return info.udp != nil && info.udpLite
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
		u := udpHdr(info.udp)
		dst = append(dst,
			byte(u.coverage()>>8), byte(u.coverage()),
			byte(u.checksum()>>8), byte(u.checksum()))
		return append(dst, byte(c.sn>>8), byte(c.sn))
	},
	parseStaticChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsStatic(cur, d); err != nil {
			return err
		}
		if err := parseUDPStatic(cur, d); err != nil {
			return err
		}
		d.udpLite = true
		return nil
	},
	parseDynamicChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsDynamic(cur, d); err != nil {
			return err
		}
		cov, err := cur.readUint16()
		if err != nil {
			return err
		}
		ck, err := cur.readUint16()
		if err != nil {
			return err
		}
		patchUDPLite(d.template[d.transOff:], cov, ck)
		sn, err := cur.readUint16()
		if err != nil {
			return err
		}
		d.refSN = sn
		d.sn = sn
		return nil
	},
}
