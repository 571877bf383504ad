package rohc

// ESP profile 0x0003, RFC 3095 section 5.12.  Assumes NULL encryption so the
// sequence number is visible; the 32-bit ESP SN drives the engine, its low
// 16 bits acting as master SN.

var espProfile = &profile{
	id:     ProfileESP,
	hasESP: true,
	classify: func(info *pktInfo) bool {
		return info.esp != nil
	},
	staticChain: func(dst []byte, info *pktInfo) []byte {
		dst = ipStaticChain(dst, info)
		spi := espHdr(info.esp).spi()
		return append(dst, byte(spi>>24), byte(spi>>16), byte(spi>>8), byte(spi))
	},
	dynamicChain: func(dst []byte, c *compContext, info *pktInfo) []byte {
		dst = ipDynamicChain(dst, c, info)
		sn := espHdr(info.esp).sn()
		return append(dst, byte(sn>>24), byte(sn>>16), byte(sn>>8), byte(sn))
	},
	parseStaticChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsStatic(cur, d); err != nil {
			return err
		}
		spi, err := cur.readUint32()
		if err != nil {
			return err
		}
		d.transOff = len(d.template)
		hdr := make([]byte, espMinLen)
		hdr[0] = byte(spi >> 24)
		hdr[1] = byte(spi >> 16)
		hdr[2] = byte(spi >> 8)
		hdr[3] = byte(spi)
		d.template = append(d.template, hdr...)
		d.rtpOff = -1
		return nil
	},
	parseDynamicChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsDynamic(cur, d); err != nil {
			return err
		}
		sn, err := cur.readUint32()
		if err != nil {
			return err
		}
		d.espSN = sn
		d.refSN = uint16(sn)
		d.sn = uint16(sn)
		patchESP(d.template[d.transOff:], sn)
		return nil
	},
}
