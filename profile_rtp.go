package rohc

// RTP profile 0x0001, RFC 3095 section 5.7.  The richest profile: the RTP
// sequence number is the master SN, the timestamp compresses through the
// scaled-TS scheme and the marker bit rides in the UO-1/UOR-2 formats.

var rtpProfile = &profile{
	id:     ProfileRTP,
	hasRTP: true,
	hasUDP: true,
	classify: func(info *pktInfo) bool {
		return info.rtp != nil
	},
	staticChain: func(dst []byte, info *pktInfo) []byte {
		dst = ipStaticChain(dst, info)
		u := udpHdr(info.udp)
		dst = append(dst,
			byte(u.srcPort()>>8), byte(u.srcPort()),
			byte(u.dstPort()>>8), byte(u.dstPort()))
		ssrc := rtpHdr(info.rtp).ssrc()
		return append(dst, byte(ssrc>>24), byte(ssrc>>16), byte(ssrc>>8), byte(ssrc))
	},
	dynamicChain: func(dst []byte, c *compContext, info *pktInfo) []byte {
		dst = ipDynamicChain(dst, c, info)

		u := udpHdr(info.udp)
		ck := u.checksum()
		dst = append(dst, byte(ck>>8), byte(ck))

		r := rtpHdr(info.rtp)
		dst = append(dst, info.rtp[0], info.rtp[1]) // V|P|X|CC and M|PT verbatim
		dst = append(dst, byte(r.seq()>>8), byte(r.seq()))
		ts := r.timestamp()
		dst = append(dst, byte(ts>>24), byte(ts>>16), byte(ts>>8), byte(ts))
		for i := 0; i < r.csrcCount(); i++ {
			cs := r.csrc(i)
			dst = append(dst, byte(cs>>24), byte(cs>>16), byte(cs>>8), byte(cs))
		}

		// TS_STRIDE, zero while unestablished
		var stride uint32
		if c.ts.scaled {
			stride = c.ts.stride
		}
		dst, _ = sdvlAppend(dst, stride)
		return dst
	},
	parseStaticChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsStatic(cur, d); err != nil {
			return err
		}
		if err := parseUDPStatic(cur, d); err != nil {
			return err
		}
		ssrc, err := cur.readUint32()
		if err != nil {
			return err
		}
		d.rtpOff = len(d.template)
		hdr := make([]byte, rtpMinLen)
		hdr[0] = 0x80
		hdr[8] = byte(ssrc >> 24)
		hdr[9] = byte(ssrc >> 16)
		hdr[10] = byte(ssrc >> 8)
		hdr[11] = byte(ssrc)
		d.template = append(d.template, hdr...)
		return nil
	},
	parseDynamicChain: func(cur *cursor, d *decompContext) error {
		if err := parseIPChainsDynamic(cur, d); err != nil {
			return err
		}
		if err := parseUDPDynamic(cur, d); err != nil {
			return err
		}

		b01, err := cur.read(2)
		if err != nil {
			return err
		}
		sn, err := cur.readUint16()
		if err != nil {
			return err
		}
		ts, err := cur.readUint32()
		if err != nil {
			return err
		}

		cc := int(b01[0] & 0x0f)
		csrcs, err := cur.read(4 * cc)
		if err != nil {
			return err
		}

		stride, err := sdvlRead(cur)
		if err != nil {
			return err
		}

		// the template's RTP header grows with the CSRC list
		d.template = append(d.template[:d.rtpOff+rtpMinLen], csrcs...)
		hdr := d.template[d.rtpOff:]
		hdr[0] = b01[0]
		hdr[1] = b01[1]
		patchRTP(hdr, b01[1]&0x80 != 0, sn, ts)

		d.refSN = sn
		d.sn = sn
		d.refTS = ts
		d.tsStride = stride
		d.tsScaled = stride != 0
		if d.tsScaled {
			d.tsOffset = ts % stride
		}
		return nil
	},
}
