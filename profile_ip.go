package rohc

// IP-only profile 0x0004, RFC 3843.  Covers bare IP flows (and protocols no
// richer profile understands).  The sequence number is generated by the
// compressor and exists only to drive W-LSB and IP-ID offset encoding.

var ipOnlyProfile = &profile{
	id:          ProfileIP,
	generatedSN: true,
	classify: func(info *pktInfo) bool {
		return info.innerIP != nil
	},
	staticChain: ipStaticChain,
	dynamicChain: func(dst []byte, c *compContext, info *pktInfo) []byte {
		dst = ipDynamicChain(dst, c, info)
		return append(dst, byte(c.sn>>8), byte(c.sn))
	},
	parseStaticChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsStatic(cur, d); err != nil {
			return err
		}
		d.transOff = -1
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
		d.refSN = sn
		d.sn = sn
		return nil
	},
}
